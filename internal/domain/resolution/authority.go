// Package resolution implements the historical resolver: it classifies
// identifiers against an external authority (UniProt-style history service,
// a local lookup table, a test double) as primary, secondary, demerged or
// obsolete, batching lookups, retrying failures with backoff, short-circuiting
// through a circuit breaker and caching successful verdicts.
package resolution

import (
	"context"

	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Authority contract
// ─────────────────────────────────────────────────────────────────────────────

// Entry is one current authoritative record returned by an Authority: its
// primary identifier and the secondary (alternate, retired) identifiers that
// now point at it.
type Entry struct {
	Primary   string   `json:"primary" yaml:"primary"`
	Secondary []string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
}

// Authority answers a single batched lookup carrying both the primary and
// the secondary search clause for every id.  Returned entries may be in any
// order and may include entries unrelated to ids.  Implementations map
// deadline expiry to a ResolutionTimeout error and any other failure to a
// ResolutionTransport (or AuthorityRateLimited) error.
type Authority interface {
	Name() string
	Lookup(ctx context.Context, ids []string) ([]Entry, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Classification
// ─────────────────────────────────────────────────────────────────────────────

// Classify decides the resolution of id against entries:
//
//   - id is the primary of an entry: primary, [id]
//   - id is a secondary of exactly one distinct primary: secondary, [primary]
//   - id is a secondary of several distinct primaries: demerged, primaries in
//     order of first appearance
//   - otherwise: obsolete, no ids, confidence 0
//
// A primary hit wins over any secondary listing.  Confidence comes from
// scorer.
func Classify(id string, entries []Entry, scorer *matching.Scorer) mapping.ResolutionRecord {
	if scorer == nil {
		scorer = matching.DefaultScorer()
	}

	var primaries []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.Primary == id {
			return record(id, []string{id}, mapping.ResolutionPrimary, scorer)
		}
		for _, s := range e.Secondary {
			if s != id {
				continue
			}
			if _, dup := seen[e.Primary]; !dup && e.Primary != "" {
				seen[e.Primary] = struct{}{}
				primaries = append(primaries, e.Primary)
			}
			break
		}
	}

	switch len(primaries) {
	case 0:
		return record(id, nil, mapping.ResolutionObsolete, scorer)
	case 1:
		return record(id, primaries, mapping.ResolutionSecondary, scorer)
	default:
		return record(id, primaries, mapping.ResolutionDemerged, scorer)
	}
}

// ClassifyAll classifies every id against the same response.
func ClassifyAll(ids []string, entries []Entry, scorer *matching.Scorer) map[string]mapping.ResolutionRecord {
	out := make(map[string]mapping.ResolutionRecord, len(ids))
	for _, id := range ids {
		out[id] = Classify(id, entries, scorer)
	}
	return out
}

// FailedRecord is the degraded verdict for an id whose batch could not be
// resolved.
func FailedRecord(id, diagnostic string) mapping.ResolutionRecord {
	return mapping.ResolutionRecord{
		InputID:          id,
		ResolvedIDs:      []string{},
		Type:             mapping.ResolutionObsolete,
		Confidence:       0,
		ResolutionFailed: true,
		Diagnostic:       diagnostic,
	}
}

func record(id string, resolved []string, t mapping.ResolutionType, scorer *matching.Scorer) mapping.ResolutionRecord {
	if resolved == nil {
		resolved = []string{}
	}
	return mapping.ResolutionRecord{
		InputID:     id,
		ResolvedIDs: resolved,
		Type:        t,
		Confidence:  scorer.ForResolution(t),
	}
}

//Personal.AI order the ending
