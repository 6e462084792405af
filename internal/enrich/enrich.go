// Package enrich replaces the snippets of the best listings with the full text of
// their pages.
package enrich

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/concurrency"
	"github.com/spigell/job-harvester/internal/contacts"
	"github.com/spigell/job-harvester/internal/fetch"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/sources"
)

const (
	DefaultMargin        = 5
	DefaultWorkers       = 5
	DefaultTimeout       = 10 * time.Second
	DefaultMinTextLength = 200
)

type Options struct {
	// Margin is added to the requested limit: enrichment can reveal a reason to drop a listing.
	Margin        int           `mapstructure:"margin"`
	Workers       int           `mapstructure:"workers"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MinTextLength int           `mapstructure:"min_text_length"`
}

func (o Options) withDefaults() Options {
	if o.Margin < 0 {
		o.Margin = 0
	} else if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = DefaultMinTextLength
	}
	return o
}

// ContactSink receives the contacts found on fetched pages. Offer must not block.
type ContactSink interface {
	Offer(c contacts.Contact) bool
}

type Stats struct {
	Candidates int
	Enriched   int
	Skipped    int
	Failed     int
}

type Enricher struct {
	fetcher fetch.Fetcher
	sink    ContactSink
	opts    Options
	logger  *zap.Logger
}

// New builds an Enricher. sink may be nil.
func New(fetcher fetch.Fetcher, sink ContactSink, opts Options, log *zap.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		sink:    sink,
		opts:    opts.withDefaults(),
		logger:  logger.ForStage(log, "enrich"),
	}
}

type outcome int

const (
	failed outcome = iota
	enriched
	skipped
)

// Enrich fetches the pages of the limit+margin best listings by MatchScore and
// updates them in place. Every listing gets one attempt at most; a failure leaves
// it untouched with Enriched false.
func (e *Enricher) Enrich(ctx context.Context, listings []*listing.JobListing, limit int) Stats {
	candidates := top(listings, limit+e.opts.Margin)
	stats := Stats{Candidates: len(candidates)}
	if len(candidates) == 0 || e.fetcher == nil {
		return stats
	}

	results, errs := concurrency.ProcessParallel(ctx, candidates, concurrency.ParallelOptions{MaxWorkers: e.opts.Workers},
		func(ctx context.Context, _ int, l *listing.JobListing) (outcome, error) {
			return e.enrichOne(ctx, l), nil
		})

	for i, result := range results {
		switch {
		case errs[i] != nil:
			stats.Failed++
		case result == enriched:
			stats.Enriched++
		case result == skipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	e.logger.Info("enrichment finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("enriched", stats.Enriched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats
}

func (e *Enricher) enrichOne(ctx context.Context, l *listing.JobListing) outcome {
	log := logger.WithFields(e.logger, logger.ListingFields(l)...)
	if alreadyRich(l) {
		return skipped
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	page, err := e.fetcher.Fetch(ctx, l.URL)
	if err != nil {
		log.Debug("listing not enriched", zap.Error(err))
		return failed
	}
	if utf8.RuneCountInString(page.Text) < e.opts.MinTextLength {
		log.Debug("page text too short", zap.Int("length", utf8.RuneCountInString(page.Text)))
		return failed
	}

	l.Description = page.Text
	l.RequiredSkills = listing.ExtractSkills(page.Text)
	if years, ok := listing.ParseExperience(page.Text); ok {
		l.RequiredExperience = years
	}
	l.Enriched = true

	e.offerContact(l, page)
	log.Debug("listing enriched", zap.Int("skills", l.RequiredSkills.Len()), zap.Int("experience", l.RequiredExperience))
	return enriched
}

func (e *Enricher) offerContact(l *listing.JobListing, page *fetch.Page) {
	if len(page.Emails) > 0 && l.ApplyEmail == "" {
		l.ApplyEmail = page.Emails[0]
	}
	if e.sink == nil || contacts.Anonymous(l.Company) {
		return
	}

	c := contacts.Contact{
		Company: l.Company,
		Website: fetch.CompanyWebsite(page.Links, l.Company),
		Emails:  page.Emails,
		Source:  l.URL,
	}
	if c.Usable() {
		e.sink.Offer(c)
	}
}

// alreadyRich reports listings whose source returns the full description.
func alreadyRich(l *listing.JobListing) bool {
	if l.Source == sources.JSearchName {
		return true
	}
	host := l.Host()
	return host == sources.JobBankHost || strings.HasSuffix(host, "."+sources.JobBankHost)
}

// top returns the n best listings by MatchScore, ties in input order.
func top(listings []*listing.JobListing, n int) []*listing.JobListing {
	ranked := make([]*listing.JobListing, 0, len(listings))
	for _, l := range listings {
		if l != nil && strings.TrimSpace(l.URL) != "" {
			ranked = append(ranked, l)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].MatchScore > ranked[j].MatchScore })
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
