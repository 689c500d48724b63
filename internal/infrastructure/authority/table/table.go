// Package table is a resolution.Authority answering from a local YAML
// lookup table, for offline runs and pinned authority snapshots.
//
//	name: uniprot-2024_01
//	entries:
//	  - primary: P0DOY2
//	    secondary: [P0CG05]
//	  - primary: P0DOY3
//	    secondary: [P0CG05]
package table

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/pkg/errors"
)

type document struct {
	Name    string             `yaml:"name"`
	Entries []resolution.Entry `yaml:"entries"`
}

// Authority serves lookups from memory.  Reload swaps the table atomically.
type Authority struct {
	mu          sync.RWMutex
	path        string
	name        string
	entries     []resolution.Entry
	byPrimary   map[string]int
	bySecondary map[string][]int
}

var _ resolution.Authority = (*Authority)(nil)

// Load reads the table at path.
func Load(path string) (*Authority, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "open lookup table").WithDetail(path)
	}
	defer f.Close()
	a, err := Parse(f)
	if err != nil {
		return nil, err
	}
	a.path = path
	return a, nil
}

// Parse reads a table from r.
func Parse(r io.Reader) (*Authority, error) {
	a := &Authority{}
	if err := a.load(r); err != nil {
		return nil, err
	}
	return a, nil
}

// New builds a table from entries.
func New(name string, entries []resolution.Entry) (*Authority, error) {
	a := &Authority{}
	if err := a.install(document{Name: name, Entries: entries}); err != nil {
		return nil, err
	}
	return a, nil
}

// Reload re-reads the file the table was loaded from.  On error the current
// table stays in place.
func (a *Authority) Reload() error {
	a.mu.RLock()
	path := a.path
	a.mu.RUnlock()
	if path == "" {
		return errors.Configuration("lookup table was not loaded from a file")
	}
	return a.ReloadFrom(path)
}

// ReloadFrom replaces the table with the one at path, which becomes the file
// later Reload calls read.  On error nothing changes.
func (a *Authority) ReloadFrom(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfiguration, "open lookup table").WithDetail(path)
	}
	defer f.Close()
	if err := a.load(f); err != nil {
		return err
	}
	a.mu.Lock()
	a.path = path
	a.mu.Unlock()
	return nil
}

// Path returns the file the table was loaded from, if any.
func (a *Authority) Path() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.path
}

func (a *Authority) load(r io.Reader) error {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.ErrCodeConfiguration, "parse lookup table")
	}
	return a.install(doc)
}

func (a *Authority) install(doc document) error {
	byPrimary := make(map[string]int, len(doc.Entries))
	bySecondary := make(map[string][]int)
	entries := make([]resolution.Entry, 0, len(doc.Entries))

	for _, e := range doc.Entries {
		e.Primary = strings.TrimSpace(e.Primary)
		if e.Primary == "" {
			return errors.Configuration("lookup table entry without primary")
		}
		if _, dup := byPrimary[e.Primary]; dup {
			return errors.Configuration("duplicate primary in lookup table").WithDetail(e.Primary)
		}
		idx := len(entries)
		byPrimary[e.Primary] = idx
		for _, s := range e.Secondary {
			bySecondary[s] = append(bySecondary[s], idx)
		}
		entries = append(entries, e)
	}

	name := doc.Name
	if name == "" {
		name = "table"
	}

	a.mu.Lock()
	a.name, a.entries, a.byPrimary, a.bySecondary = name, entries, byPrimary, bySecondary
	a.mu.Unlock()
	return nil
}

func (a *Authority) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// Len returns the number of entries.
func (a *Authority) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// IDs returns every primary and secondary id in the table, once each.
func (a *Authority) IDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.byPrimary)+len(a.bySecondary))
	for id := range a.byPrimary {
		out = append(out, id)
	}
	for id := range a.bySecondary {
		if _, dup := a.byPrimary[id]; !dup {
			out = append(out, id)
		}
	}
	return out
}

// Lookup returns each entry naming one of ids as primary or secondary, once,
// in table order.
func (a *Authority) Lookup(ctx context.Context, ids []string) ([]resolution.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResolutionTimeout, "lookup table query cancelled")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	hit := make(map[int]bool)
	for _, id := range ids {
		if idx, ok := a.byPrimary[id]; ok {
			hit[idx] = true
		}
		for _, idx := range a.bySecondary[id] {
			hit[idx] = true
		}
	}

	out := make([]resolution.Entry, 0, len(hit))
	for idx, e := range a.entries {
		if hit[idx] {
			out = append(out, resolution.Entry{Primary: e.Primary, Secondary: append([]string(nil), e.Secondary...)})
		}
	}
	return out, nil
}

//Personal.AI order the ending
