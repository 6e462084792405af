package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/scoring"
)

const includeSeenMsg = "include-seen flag is set"

type rescoreFilter struct {
	toggle
}

// NewRescore creates the step that scores listings again after enrichment.
func NewRescore() Filter {
	return &rescoreFilter{}
}

func (f *rescoreFilter) Name() string { return "rescore" }

func (f *rescoreFilter) Validate(*Config) error { return nil }

func (f *rescoreFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	scorer := deps.Scorer
	if scorer == nil {
		scorer = scoring.New()
	}
	scorer.ScoreAll(deps.Profile, v.Items)

	return v, Step{Initial: v.Len(), Left: v.Len()}, nil
}

type exclusionsFilter struct {
	toggle
}

// NewExclusions creates a filter that removes listings mentioning an excluded term.
func NewExclusions() Filter {
	return &exclusionsFilter{}
}

func (f *exclusionsFilter) Name() string { return "exclusions" }

func (f *exclusionsFilter) Validate(*Config) error { return nil }

func (f *exclusionsFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	terms := deps.Criteria.Exclude
	if len(terms) == 0 {
		return v, Step{Initial: v.Len(), Left: v.Len()}, nil
	}

	info := drop(v, deps, "excluding listings by excluded terms", func(l *listing.JobListing) bool {
		for _, term := range terms {
			if listing.ContainsWord(l.Title, term) || listing.ContainsWord(l.Description, term) {
				return true
			}
		}
		return false
	})
	return v, info, nil
}

type companiesFilter struct {
	toggle
	companies map[string]struct{}
}

// NewCompanies creates a filter that removes listings of companies configured in the config.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = make(map[string]struct{})
	if cfg != nil {
		for _, company := range cfg.Companies {
			if key := listing.Fold(company); key != "" {
				f.companies[key] = struct{}{}
			}
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	if len(f.companies) == 0 {
		return v, Step{Initial: v.Len(), Left: v.Len()}, nil
	}

	info := drop(v, deps, "excluding listings by companies", func(l *listing.JobListing) bool {
		_, ok := f.companies[listing.Fold(l.Company)]
		return ok
	})
	return v, info, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strconv.Itoa(len(f.companies))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes listings contained in a previous dump.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	initial := v.Len()
	if f.path == "" {
		return v, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := listing.ReadFile(f.path)
	if err != nil {
		return v, Step{}, fmt.Errorf("getting excluded listings from file: %w", err)
	}

	removed := v.Exclude(excluded.IdentityKeys())
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding listings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_listings", removed),
			zap.Int("listings_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type seenFilter struct {
	toggle
	ignore bool
}

// NewSeen creates a filter that removes listings already reported to the owner.
func NewSeen(includeSeen bool) Filter {
	return &seenFilter{ignore: includeSeen}
}

func (f *seenFilter) Name() string { return "seen" }

func (f *seenFilter) Validate(*Config) error { return nil }

func (f *seenFilter) Apply(ctx context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	initial := v.Len()
	if f.ignore || deps.History == nil {
		if f.ignore && deps.Logger != nil {
			deps.Logger.Info("keeping already seen listings", zap.String("reason", includeSeenMsg))
		}
		return v, Step{Initial: initial, Left: initial}, nil
	}

	seen, err := deps.History.Seen(ctx, v.IdentityKeys())
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("seen history unavailable, keeping every listing", zap.Error(err))
		}
		return v, Step{Initial: initial, Left: initial}, nil
	}

	removed := v.Exclude(seen)
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding listings seen before",
			zap.Strings("excluded_listings", removed),
			zap.Int("listings_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(removed), Left: v.Len()}, nil
}

func (f *seenFilter) Status() Status {
	details := map[string]string{
		"exclude_seen": strconv.FormatBool(!f.ignore),
	}
	reason := f.reason
	if f.ignore {
		reason = "skip requested via flag"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: reason, Details: details}
}

type reachableFilter struct {
	toggle
}

// NewReachable creates a filter that removes listings nobody can apply to: no url and no e-mail.
func NewReachable() Filter {
	return &reachableFilter{}
}

func (f *reachableFilter) Name() string { return "reachable" }

func (f *reachableFilter) Validate(*Config) error { return nil }

func (f *reachableFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	info := drop(v, deps, "excluding listings without a way to apply", func(l *listing.JobListing) bool {
		return strings.TrimSpace(l.URL) == "" && strings.TrimSpace(l.ApplyEmail) == ""
	})
	return v, info, nil
}

type minScoreFilter struct {
	toggle
	threshold int
}

// NewMinScore creates the final filter that removes listings without any match.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	f.threshold = 1
	if cfg != nil && cfg.MinScore > f.threshold {
		f.threshold = cfg.MinScore
	}
	if f.threshold > 100 {
		return fmt.Errorf("minimum score %d is above 100", f.threshold)
	}
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	info := drop(v, deps, "excluding listings under the minimum score", func(l *listing.JobListing) bool {
		return l.MatchScore < f.threshold
	})
	return v, info, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"threshold": strconv.Itoa(f.threshold)},
	}
}
