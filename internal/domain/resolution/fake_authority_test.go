package resolution

import (
	"context"
	"sync"
	"time"
)

// fakeAuthority answers from a fixed entry list and records every call.
type fakeAuthority struct {
	mu       sync.Mutex
	entries  []Entry
	err      error
	delay    time.Duration
	calls    int
	batches  [][]string
	inFlight int
	maxSeen  int
}

func newFakeAuthority(entries ...Entry) *fakeAuthority {
	return &fakeAuthority{entries: entries}
}

// scenarioAuthority knows P12345 (formerly Q99895) and the split of P0CG05
// into P0DOY2 and P0DOY3.
func scenarioAuthority() *fakeAuthority {
	return newFakeAuthority(
		Entry{Primary: "P12345", Secondary: []string{"Q99895"}},
		Entry{Primary: "P0DOY2", Secondary: []string{"P0CG05"}},
		Entry{Primary: "P0DOY3", Secondary: []string{"P0CG05"}},
	)
}

func (f *fakeAuthority) Name() string { return "fake" }

func (f *fakeAuthority) Lookup(ctx context.Context, ids []string) ([]Entry, error) {
	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), ids...))
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	delay, err := f.delay, f.err
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Entry
	for _, e := range f.entries {
		if _, ok := want[e.Primary]; ok {
			out = append(out, e)
			continue
		}
		for _, s := range e.Secondary {
			if _, ok := want[s]; ok {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAuthority) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

//Personal.AI order the ending
