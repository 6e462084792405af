// Package recruiters looks for the people who hire at a company. A language model
// with web search and a plain web search race each other; the first one with a
// usable answer wins.
package recruiters

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/dispatch"
	"github.com/spigell/job-harvester/internal/jsonx"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/sources"
)

const (
	DefaultLimit = 5

	ModelStrategy  = "model"
	SearchStrategy = "search"

	profileMarker = "linkedin.com/in/"
	searchResults = 10
	maxLogLength  = 300
)

//go:embed prompt.md
var promptTemplate string

var (
	titleParts    = regexp.MustCompile(`\s+(?:-|–|—|\|)\s+`)
	linkedinTitle = regexp.MustCompile(`(?i)\s*[|\-–]\s*linkedin\s*$`)
)

// Person is a hiring contact found for a company.
type Person struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	LinkedInURL string `json:"linkedin_url"`
}

// Searcher runs a web search. sources.WebSearch implements it.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]sources.SearchResult, error)
}

type Options struct {
	Limit int              `mapstructure:"limit"`
	Race  dispatch.Options `mapstructure:"race"`
}

type Finder struct {
	generator ai.Generator
	search    Searcher
	opts      Options
	logger    *zap.Logger
}

// New creates a Finder. Either collaborator may be nil; with both nil Find
// returns nothing.
func New(generator ai.Generator, search Searcher, opts Options, log *zap.Logger) *Finder {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Finder{
		generator: generator,
		search:    search,
		opts:      opts,
		logger:    logger.ForStage(log, "recruiters"),
	}
}

// Find returns at most Limit people for company. Failures of both strategies
// give an empty result.
func (f *Finder) Find(ctx context.Context, company string) []Person {
	company = strings.Join(strings.Fields(company), " ")
	if company == "" {
		f.logger.Warn("recruiter search without a company")
		return nil
	}

	var strategies []dispatch.Strategy[Person]
	if f.generator != nil {
		strategies = append(strategies, dispatch.Strategy[Person]{
			Name: ModelStrategy,
			Run:  func(ctx context.Context) ([]Person, error) { return f.fromModel(ctx, company) },
		})
	}
	if f.search != nil {
		strategies = append(strategies, dispatch.Strategy[Person]{
			Name: SearchStrategy,
			Run:  func(ctx context.Context) ([]Person, error) { return f.fromSearch(ctx, company) },
		})
	}

	outcome := dispatch.RaceFirst(ctx, strategies, f.opts.Race, f.logger)
	people := unique(outcome.Items, f.opts.Limit)

	f.logger.Info("recruiter search finished",
		zap.String("company", company),
		zap.String("winner", outcome.Winner),
		zap.Int("people", len(people)),
	)
	return people
}

func (f *Finder) fromModel(ctx context.Context, company string) ([]Person, error) {
	raw, err := f.generator.GenerateContent(ctx, strings.ReplaceAll(promptTemplate, "{{COMPANY}}", company))
	if err != nil {
		return nil, fmt.Errorf("recruiter model: %w", err)
	}

	people := ParseModelAnswer(raw)
	if len(people) == 0 {
		f.logger.Debug("model found nobody", logger.Preview("response", raw, maxLogLength)...)
	}
	return people, nil
}

func (f *Finder) fromSearch(ctx context.Context, company string) ([]Person, error) {
	results, err := f.search.Search(ctx, SearchQuery(company), searchResults)
	if err != nil {
		return nil, fmt.Errorf("recruiter search: %w", err)
	}

	var people []Person
	for _, r := range results {
		if p, ok := personFromResult(r); ok {
			people = append(people, p)
		}
	}
	return people, nil
}

// SearchQuery builds the web search for public profiles of hiring staff.
func SearchQuery(company string) string {
	return fmt.Sprintf(`site:linkedin.com/in "%s" (HR OR recruiter OR "talent acquisition" OR recruteur OR RH)`, company)
}

// ParseModelAnswer reads the JSON array of the model. When the array is broken
// the individual objects are salvaged.
func ParseModelAnswer(raw string) []Person {
	var objects []map[string]any
	if items, err := jsonx.ExtractArray(raw); err == nil {
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				objects = append(objects, obj)
			}
		}
	} else if errors.Is(err, jsonx.ErrNoJSON) {
		objects = jsonx.ExtractFlatObjects(raw, "name", "linkedin_url")
	}

	var people []Person
	for _, obj := range objects {
		p := Person{
			Name:        jsonx.String(obj["name"]),
			Role:        jsonx.String(obj["role"]),
			LinkedInURL: jsonx.String(obj["linkedin_url"]),
		}
		if p.valid() {
			people = append(people, p)
		}
	}
	return people
}

// personFromResult reads "Jane Doe - Talent Acquisition - Acme | LinkedIn" titles.
func personFromResult(r sources.SearchResult) (Person, bool) {
	title := linkedinTitle.ReplaceAllString(strings.TrimSpace(r.Title), "")
	parts := titleParts.Split(title, 3)

	p := Person{Name: strings.TrimSpace(parts[0]), LinkedInURL: strings.TrimSpace(r.Link)}
	if len(parts) > 1 {
		p.Role = strings.TrimSpace(parts[1])
	}
	return p, p.valid()
}

func (p Person) valid() bool {
	return p.Name != "" && strings.Contains(strings.ToLower(p.LinkedInURL), profileMarker)
}

func unique(people []Person, limit int) []Person {
	seen := make(map[string]struct{}, len(people))
	var result []Person
	for _, p := range people {
		key, ok := listing.NormalizeURL(p.LinkedInURL)
		if !ok {
			key = strings.ToLower(p.LinkedInURL)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, p)
		if len(result) == limit {
			break
		}
	}
	return result
}
