// Package connector defines the uniform interface every job source implements and the
// helpers shared by the source implementations.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	DefaultTimeout         = 15 * time.Second
	DefaultMaxKeywords     = 3
	DefaultPerSourceFactor = 20
	DefaultMinCap          = 200
)

var (
	ErrNoConnectors = errors.New("no connectors configured")
	// ErrParse marks a response that could not be read as the expected format.
	ErrParse = errors.New("unexpected response format")
)

// Connector adapts one external job source.
// Zero matches are reported as an empty slice, never as an error.
type Connector interface {
	Name() string
	Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error)
}

type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindParse       Kind = "parse"
)

// SourceError is the only error a connector returns.
type SourceError struct {
	Source string
	Kind   Kind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err and classifies it. An existing SourceError is returned as is.
func NewSourceError(source string, err error) *SourceError {
	var serr *SourceError
	if errors.As(err, &serr) {
		if serr.Source == "" {
			return &SourceError{Source: source, Kind: serr.Kind, Err: err}
		}
		return serr
	}
	return &SourceError{Source: source, Kind: Classify(err), Err: err}
}

// KindOf returns the kind of a SourceError in err's chain.
func KindOf(err error) (Kind, bool) {
	var serr *SourceError
	if errors.As(err, &serr) {
		return serr.Kind, true
	}
	return "", false
}

// Classify maps transport and decoding errors onto a Kind.
func Classify(err error) Kind {
	switch httpx.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimited
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrParse) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindParse
	}

	return KindUnavailable
}

// Options bound the work of a single connector.
type Options struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxKeywords     int           `mapstructure:"max_keywords"`
	PerSourceFactor int           `mapstructure:"per_source_factor"`
	MinCap          int           `mapstructure:"min_cap"`
}

func DefaultOptions() Options {
	return Options{
		Timeout:         DefaultTimeout,
		MaxKeywords:     DefaultMaxKeywords,
		PerSourceFactor: DefaultPerSourceFactor,
		MinCap:          DefaultMinCap,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.MaxKeywords <= 0 {
		o.MaxKeywords = def.MaxKeywords
	}
	if o.PerSourceFactor <= 0 {
		o.PerSourceFactor = def.PerSourceFactor
	}
	if o.MinCap <= 0 {
		o.MinCap = def.MinCap
	}
	return o
}

// Cap is the maximum number of listings a connector may return for a limit.
func (o Options) Cap(limit int) int {
	o = o.withDefaults()
	return max(o.MinCap, limit*o.PerSourceFactor)
}

// Queries builds the search strings sent to a source: one per keyword, plus the keyword
// with a job type hint for internship and junior searches.
func Queries(c listing.SearchCriteria, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	keywords := c.Keywords
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	var hint string
	switch c.JobType {
	case listing.JobTypeInternship:
		hint = "internship"
	case listing.JobTypeJunior:
		hint = "junior"
	}

	seen := make(map[string]struct{})
	queries := make([]string, 0, len(keywords)*2)
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := listing.Fold(q)
		if q == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	for _, kw := range keywords {
		add(kw)
		if hint != "" && !listing.ContainsWord(kw, hint) {
			add(kw + " " + hint)
		}
	}
	return queries
}

// QueryFunc fetches at most max listings for a single query.
type QueryFunc func(ctx context.Context, query string, max int) ([]*listing.JobListing, error)

// Run executes fn for every query derived from c inside the connector timeout, normalizes
// and stamps the listings and caps the output. A failure after some listings were
// collected keeps the partial result.
func Run(ctx context.Context, name string, opts Options, c listing.SearchCriteria, fn QueryFunc) ([]*listing.JobListing, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	limit := opts.Cap(c.ResultLimit)
	result := make([]*listing.JobListing, 0)

	for _, query := range Queries(c, opts.MaxKeywords) {
		if len(result) >= limit {
			break
		}

		items, err := fn(ctx, query, limit-len(result))
		if err != nil {
			if len(result) > 0 {
				break
			}
			return nil, NewSourceError(name, fmt.Errorf("query %q: %w", query, err))
		}

		for _, item := range items {
			if item == nil || strings.TrimSpace(item.Title) == "" {
				continue
			}
			item.Normalize(name)
			result = append(result, item)
		}
	}

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// WithBackupKey calls fn with the primary key and, when the source rejects it for
// authentication or rate limiting, once more with the backup key.
func WithBackupKey[T any](ctx context.Context, keys []string, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T

	usable := make([]string, 0, 2)
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			usable = append(usable, key)
		}
		if len(usable) == 2 {
			break
		}
	}
	if len(usable) == 0 {
		return zero, &SourceError{Kind: KindAuth, Err: errors.New("no api key configured")}
	}

	var lastErr error
	for _, key := range usable {
		result, err := fn(ctx, key)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := Classify(err)
		if kind != KindAuth && kind != KindRateLimited {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
