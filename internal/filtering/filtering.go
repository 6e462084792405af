package filtering

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/scoring"
)

// MaxResults caps the ranked output whatever limit was requested.
const MaxResults = 200

// Filter represents a single filtering step applied to listings.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error)
}

// History remembers listings already shown to the owner.
type History interface {
	Seen(ctx context.Context, keys []string) ([]string, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger   *zap.Logger
	Criteria listing.SearchCriteria
	Profile  listing.CandidateProfile
	Scorer   *scoring.Scorer
	Judge    ai.Judge
	History  History
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinScore    int          `mapstructure:"min_score"`
	Companies   []string     `mapstructure:"exclude_companies"`
	ExcludeFile string       `mapstructure:"exclude_file"`
	Judge       *JudgeConfig `mapstructure:"judge"`
}

// JudgeConfig stores the settings of the judge pass.
type JudgeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BatchSize   int           `mapstructure:"batch_size"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DefaultSteps returns the filters of a search in execution order.
func DefaultSteps(includeSeen bool) []Filter {
	return []Filter{
		NewRescore(),
		NewExclusions(),
		NewCompanies(),
		NewExcludeFile(),
		NewSeen(includeSeen),
		NewSeniority(),
		NewEntryLevel(),
		NewReachable(),
		NewJudge(),
		NewMinScore(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the remaining listings.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, v *listing.Listings) (*listing.Listings, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		v = next
	}

	return v, nil
}

// Rank runs the filters, sorts the survivors by MatchScore keeping the input
// order of equal scores, and truncates to limit.
func Rank(ctx context.Context, cfg *Config, deps Deps, steps []Filter, items []*listing.JobListing, limit int) ([]*listing.JobListing, error) {
	v, err := Run(ctx, cfg, deps, steps, &listing.Listings{Items: items})
	if err != nil {
		return nil, err
	}

	ranked := v.Items
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].MatchScore > ranked[j].MatchScore })

	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func drop(v *listing.Listings, deps Deps, message string, pred func(*listing.JobListing) bool) Step {
	initial := v.Len()
	dropped := v.DropIf(pred)
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info(message,
			zap.Strings("excluded_listings", dropped),
			zap.Int("listings_left", v.Len()),
		)
	}
	return Step{Initial: initial, Dropped: len(dropped), Left: v.Len()}
}
