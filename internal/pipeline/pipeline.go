// Package pipeline wires the search stages together: criteria extraction, fan-out
// to the connectors, deduplication, scoring, enrichment and the final ranking.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/criteria"
	"github.com/spigell/job-harvester/internal/dedup"
	"github.com/spigell/job-harvester/internal/dispatch"
	"github.com/spigell/job-harvester/internal/enrich"
	"github.com/spigell/job-harvester/internal/filtering"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/scoring"
	"github.com/spigell/job-harvester/internal/sources"
)

// Extractor produces the criteria and the profile of a search.
type Extractor interface {
	Extract(ctx context.Context, query, resume string, limit int) (criteria.Result, error)
}

// Enricher replaces snippets with full descriptions for the best listings.
type Enricher interface {
	Enrich(ctx context.Context, listings []*listing.JobListing, limit int) enrich.Stats
}

// Deps are the collaborators of a pipeline. Only Registry is required.
type Deps struct {
	Logger    *zap.Logger
	Registry  *connector.Registry
	Extractor Extractor
	Scorer    *scoring.Scorer
	Enricher  Enricher
	Judge     ai.Judge
	History   filtering.History
}

type Config struct {
	DefaultLocation string           `mapstructure:"default_location"`
	Dispatch        dispatch.Options `mapstructure:"dispatch"`
	Filtering       filtering.Config `mapstructure:"filtering"`

	// SearchLinks returns search-page placeholders when nothing survives the ranking.
	SearchLinks bool `mapstructure:"search_links"`
	// IncludeSeen keeps listings the history already knows.
	IncludeSeen bool `mapstructure:"include_seen"`

	// Disabled lists filter steps to skip by name.
	Disabled []string `mapstructure:"disabled_filters"`
}

// Result is everything a search produced. Listings is what Search returns.
type Result struct {
	Criteria listing.SearchCriteria
	Profile  listing.CandidateProfile
	Fallback bool

	Listings   []*listing.JobListing
	Report     dispatch.Report
	Dedup      dedup.Stats
	Enrichment enrich.Stats
	Filters    []filtering.Status
	Duration   time.Duration
}

type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New checks the deployment: a pipeline without connectors is a configuration mistake.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Registry == nil || deps.Registry.Len() == 0 {
		return nil, connector.ErrNoConnectors
	}
	if deps.Extractor == nil {
		deps.Extractor = criteria.New(nil, cfg.DefaultLocation, deps.Logger)
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.New()
	}

	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: logger.ForStage(deps.Logger, "pipeline"),
	}, nil
}

// Search returns at most limit listings ordered by MatchScore, without duplicate
// identity keys. Zero results is not an error.
func (p *Pipeline) Search(ctx context.Context, query, resume string, limit int) ([]*listing.JobListing, error) {
	result, err := p.Run(ctx, query, resume, limit)
	if err != nil {
		return nil, err
	}
	return result.Listings, nil
}

// Run is Search with the details of every stage.
func (p *Pipeline) Run(ctx context.Context, query, resume string, limit int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	started := time.Now()

	extracted, err := p.deps.Extractor.Extract(ctx, query, resume, limit)
	if err != nil {
		return Result{}, fmt.Errorf("building search criteria: %w", err)
	}
	c := extracted.Criteria
	limit = c.ResultLimit

	result := Result{Criteria: c, Profile: extracted.Profile, Fallback: extracted.Fallback}

	connectors := p.deps.Registry.ForLocation(c.Location)
	p.logger.Info("search started",
		zap.String("query", c.Query()),
		zap.String("location", c.Location),
		zap.Strings("connectors", names(connectors)),
	)

	gathered, report := dispatch.GatherAll(ctx, connectors, c, p.cfg.Dispatch, p.deps.Logger)
	result.Report = report

	unique, stats := dedup.DeduplicateWithStats(gathered)
	result.Dedup = stats
	p.logger.Info("deduplicated", stats.Fields()...)

	p.deps.Scorer.ScoreAll(extracted.Profile, unique)

	if p.deps.Enricher != nil {
		result.Enrichment = p.deps.Enricher.Enrich(ctx, unique, limit)
	}

	steps := filtering.DefaultSteps(p.cfg.IncludeSeen)
	for _, name := range p.cfg.Disabled {
		filtering.DisableByName(steps, name, "disabled in config")
	}
	deps := filtering.Deps{
		Logger:   logger.ForStage(p.deps.Logger, "filtering"),
		Criteria: c,
		Profile:  extracted.Profile,
		Scorer:   p.deps.Scorer,
		Judge:    p.deps.Judge,
		History:  p.deps.History,
	}

	ranked, err := filtering.Rank(ctx, &p.cfg.Filtering, deps, steps, unique, limit)
	if err != nil {
		return Result{}, fmt.Errorf("ranking listings: %w", err)
	}
	result.Filters = filtering.Describe(steps)

	if len(ranked) == 0 && p.cfg.SearchLinks {
		ranked = p.searchLinks(ctx, c, extracted.Profile)
	}

	result.Listings = ranked
	result.Duration = time.Since(started)

	p.logger.Info("search finished",
		zap.Int("gathered", len(gathered)),
		zap.Int("unique", len(unique)),
		zap.Int("returned", len(ranked)),
		zap.Int("failed_sources", len(report.Failed())),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// searchLinks gives the user somewhere to look when every source came back empty.
func (p *Pipeline) searchLinks(ctx context.Context, c listing.SearchCriteria, profile listing.CandidateProfile) []*listing.JobListing {
	links, err := sources.NewSearchLink().Search(ctx, c)
	if err != nil {
		p.logger.Warn("search links unavailable", zap.Error(err))
		return nil
	}
	p.deps.Scorer.ScoreAll(profile, links)
	if len(links) > c.ResultLimit {
		links = links[:c.ResultLimit]
	}
	p.logger.Info("nothing matched, returning search links", zap.Int("links", len(links)))
	return links
}

func names(connectors []connector.Connector) []string {
	result := make([]string, 0, len(connectors))
	for _, c := range connectors {
		result = append(result, c.Name())
	}
	return result
}
