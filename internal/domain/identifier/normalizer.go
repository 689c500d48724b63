// Package identifier normalizes raw identifier strings and parses composite
// values (several identifiers joined by a delimiter, e.g. "Q14213_Q8NEV9")
// into their parts.  Normalization is deterministic for a given raw value and
// Config; composite parsing is never applied implicitly and must be requested
// through NormalizeComposite by the matching stage that wants it.
package identifier

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// DefaultDelimiter joins the parts of a composite identifier.
const DefaultDelimiter = "_"

var (
	isoformSuffix = regexp.MustCompile(`-\d+$`)
	versionSuffix = regexp.MustCompile(`\.\d+$`)
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls normalization.  Every rewrite is opt-in.
type Config struct {
	// StripPrefixes lists namespace prefixes ("UniProtKB:", "uniprot:") removed
	// when StripPrefix is set.  Matching is case-insensitive.
	StripPrefixes []string `mapstructure:"strip_prefixes" yaml:"strip_prefixes"`
	StripPrefix   bool     `mapstructure:"strip_prefix" yaml:"strip_prefix"`

	// RemoveIsoforms strips a trailing "-N" isoform marker.
	RemoveIsoforms bool `mapstructure:"remove_isoforms" yaml:"remove_isoforms"`

	// StripVersion strips a trailing ".N" version marker.
	StripVersion bool `mapstructure:"strip_version" yaml:"strip_version"`

	UpperCase   bool `mapstructure:"upper_case" yaml:"upper_case"`
	FoldUnicode bool `mapstructure:"fold_unicode" yaml:"fold_unicode"`

	CompositeDelimiter string `mapstructure:"composite_delimiter" yaml:"composite_delimiter"`
}

// DefaultConfig returns a Config that only trims whitespace and uses "_" as
// the composite delimiter.
func DefaultConfig() Config {
	return Config{
		StripPrefixes:      []string{"UniProtKB:", "uniprot:"},
		CompositeDelimiter: DefaultDelimiter,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalizer
// ─────────────────────────────────────────────────────────────────────────────

// Normalizer applies a Config to raw identifier strings.  It is immutable and
// safe for concurrent use.
type Normalizer struct {
	cfg    Config
	logger logging.Logger
}

// NewNormalizer returns a Normalizer for cfg.  An empty delimiter falls back
// to DefaultDelimiter.
func NewNormalizer(cfg Config, logger logging.Logger) *Normalizer {
	if cfg.CompositeDelimiter == "" {
		cfg.CompositeDelimiter = DefaultDelimiter
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cfg.StripPrefixes = append([]string(nil), cfg.StripPrefixes...)
	return &Normalizer{cfg: cfg, logger: logger}
}

// Delimiter returns the composite delimiter in effect.
func (n *Normalizer) Delimiter() string { return n.cfg.CompositeDelimiter }

// Normalize canonicalizes raw as a single token.  The delimiter is never
// interpreted here.
func (n *Normalizer) Normalize(raw, dataset string) (mapping.Identifier, error) {
	value, err := n.normalizeToken(raw)
	if err != nil {
		return mapping.Identifier{}, err
	}
	return mapping.Identifier{Raw: raw, Normalized: value, SourceDataset: dataset}, nil
}

// NormalizeComposite splits raw on the configured delimiter, normalizes each
// part and joins them back, so that JoinComposite(CompositeParts) equals
// Normalized.  A value with a single surviving part is returned without
// CompositeParts.
func (n *Normalizer) NormalizeComposite(raw, dataset string) (mapping.Identifier, error) {
	parts, err := SplitComposite(raw, n.cfg.CompositeDelimiter)
	if err != nil {
		return mapping.Identifier{}, err
	}

	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		v, err := n.normalizeToken(p)
		if err != nil {
			n.logger.Debug("dropping empty composite part", logging.String("raw", raw), logging.String("part", p))
			continue
		}
		normalized = append(normalized, v)
	}
	if len(normalized) == 0 {
		return mapping.Identifier{}, errors.MalformedIdentifier("composite identifier has no usable parts").
			WithDetail("raw=" + quote(raw))
	}

	id := mapping.Identifier{
		Raw:           raw,
		Normalized:    JoinComposite(normalized, n.cfg.CompositeDelimiter),
		SourceDataset: dataset,
	}
	if len(normalized) > 1 {
		id.CompositeParts = normalized
	}
	return id, nil
}

// NormalizeAll normalizes every raw value, logging and skipping malformed
// ones.  Duplicate raw values are kept once, in first-seen order.
func (n *Normalizer) NormalizeAll(raws []string, dataset string) ([]mapping.Identifier, int) {
	out := make([]mapping.Identifier, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	skipped := 0
	for _, raw := range raws {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		id, err := n.Normalize(raw, dataset)
		if err != nil {
			skipped++
			n.logger.Warn("skipping malformed identifier",
				logging.String("dataset", dataset), logging.String("raw", raw), logging.Err(err))
			continue
		}
		out = append(out, id)
	}
	return out, skipped
}

func (n *Normalizer) normalizeToken(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if n.cfg.FoldUnicode {
		v = strings.TrimSpace(norm.NFKC.String(v))
	}
	if n.cfg.StripPrefix {
		v = stripPrefix(v, n.cfg.StripPrefixes)
	}
	if n.cfg.StripVersion {
		v = versionSuffix.ReplaceAllString(v, "")
	}
	if n.cfg.RemoveIsoforms {
		v = isoformSuffix.ReplaceAllString(v, "")
	}
	if n.cfg.UpperCase {
		v = strings.ToUpper(v)
	}
	v = strings.TrimFunc(v, unicode.IsSpace)
	if v == "" {
		return "", errors.MalformedIdentifier("identifier is empty after normalization").
			WithDetail("raw=" + quote(raw))
	}
	return v, nil
}

func stripPrefix(v string, prefixes []string) string {
	for _, p := range prefixes {
		if p == "" || len(v) < len(p) {
			continue
		}
		if strings.EqualFold(v[:len(p)], p) {
			return strings.TrimSpace(v[len(p):])
		}
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// Composite helpers
// ─────────────────────────────────────────────────────────────────────────────

// SplitComposite splits raw on delim, trims every segment and drops empty
// segments.  An empty result is a MalformedIdentifier error; an empty delim is
// a configuration error.
func SplitComposite(raw, delim string) ([]string, error) {
	if delim == "" {
		return nil, errors.Configuration("composite delimiter must not be empty")
	}
	segments := strings.Split(raw, delim)
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, errors.MalformedIdentifier("composite identifier is empty after trimming").
			WithDetail("raw=" + quote(raw))
	}
	return parts, nil
}

// JoinComposite is the inverse of SplitComposite for parts that are non-empty,
// already trimmed and free of delim.
func JoinComposite(parts []string, delim string) string {
	return strings.Join(parts, delim)
}

func quote(s string) string { return "'" + s + "'" }

//Personal.AI order the ending
