// Package uniprot is a resolution.Authority backed by the UniProtKB REST
// search endpoint.  One Lookup issues a single query that asks for every id
// both as a primary and as a secondary accession.
package uniprot

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
)

const (
	DefaultBaseURL  = "https://rest.uniprot.org"
	DefaultPageSize = 500
	DefaultMaxPages = 20

	searchPath = "/uniprotkb/search"
	userAgent  = "biomapper"
)

// Config configures the client.
type Config struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
	MaxPages int           `mapstructure:"max_pages" yaml:"max_pages"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	PrimaryAccession    string   `json:"primaryAccession"`
	SecondaryAccessions []string `json:"secondaryAccessions"`
}

// Client queries UniProtKB.
type Client struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	logger     logging.Logger
}

var _ resolution.Authority = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("uniprot")
		}
	}
}

// New creates a client.  The HTTP timeout is a backstop; the resolver's
// per-batch context deadline normally fires first.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid uniprot base_url")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:    base,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "uniprot" }

// Lookup returns every entry whose primary or secondary accession is one of
// ids.  Result pages are followed through the Link header.
func (c *Client) Lookup(ctx context.Context, ids []string) ([]resolution.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", BuildQuery(ids))
	params.Set("fields", "accession,sec_acc")
	params.Set("format", "json")
	params.Set("size", strconv.Itoa(c.pageSize))
	next := c.baseURL + searchPath + "?" + params.Encode()

	var entries []resolution.Entry
	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			return nil, errors.New(errors.ErrCodeAuthorityResponseInvalid, "uniprot result exceeds page limit").
				WithDetail(strconv.Itoa(c.maxPages))
		}
		results, link, err := c.fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.PrimaryAccession == "" {
				continue
			}
			entries = append(entries, resolution.Entry{Primary: r.PrimaryAccession, Secondary: r.SecondaryAccessions})
		}
		next = link
	}

	c.logger.Debug("uniprot lookup complete", logging.Int("ids", len(ids)), logging.Int("entries", len(entries)))
	return entries, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]searchResult, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeResolutionTransport, "build uniprot request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", errors.New(errors.ErrCodeAuthorityRateLimited, "uniprot rate limit").
			WithDetail("retry-after=" + resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		return nil, "", errors.Newf(errors.ErrCodeResolutionTransport, "uniprot returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", errors.Newf(errors.ErrCodeAuthorityResponseInvalid, "uniprot returned %d", resp.StatusCode).
			WithDetail(strings.TrimSpace(string(body)))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return nil, "", classifyTransportError(ctx, err)
		}
		return nil, "", errors.Wrap(err, errors.ErrCodeAuthorityResponseInvalid, "decode uniprot response")
	}

	c.logger.Debug("uniprot page fetched",
		logging.Int("results", len(payload.Results)),
		logging.Duration("latency", time.Since(start)))
	return payload.Results, nextLink(resp.Header.Get("Link")), nil
}

// BuildQuery renders the combined primary/secondary clause for ids.  Ids
// outside the accession alphabet are sent as quoted phrases, so a stray
// prefix or space yields no hit for that id instead of a rejected query.
func BuildQuery(ids []string) string {
	clauses := make([]string, len(ids))
	for i, id := range ids {
		term := queryTerm(id)
		clauses[i] = fmt.Sprintf("(accession:%s OR sec_acc:%s)", term, term)
	}
	return strings.Join(clauses, " OR ")
}

var plainTerm = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

var phraseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func queryTerm(id string) string {
	if plainTerm.MatchString(id) {
		return id
	}
	return `"` + phraseEscaper.Replace(id) + `"`
}

var linkNext = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

func nextLink(header string) string {
	if m := linkNext.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(err, errors.ErrCodeResolutionTimeout, "uniprot request timed out")
	}
	return errors.Wrap(err, errors.ErrCodeResolutionTransport, "uniprot request failed")
}

//Personal.AI order the ending
