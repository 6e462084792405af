// Package schedule runs saved searches on cron schedules and reports only the
// listings the owner has not seen yet.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
)

var validate = validator.New()

// SavedSearch is one scheduled search from the config file.
type SavedSearch struct {
	Name       string `mapstructure:"name" validate:"required"`
	Cron       string `mapstructure:"cron" validate:"required"`
	Query      string `mapstructure:"query" validate:"required_without=ResumeFile"`
	ResumeFile string `mapstructure:"resume_file"`
	Limit      int    `mapstructure:"limit" validate:"gte=0"`
}

// Searcher is the pipeline as the scheduler sees it.
type Searcher interface {
	Search(ctx context.Context, query, resume string, limit int) ([]*listing.JobListing, error)
}

// Run is the outcome of one execution of a saved search.
type Run struct {
	Search   SavedSearch
	Listings []*listing.JobListing
	Started  time.Time
	Duration time.Duration
	Err      error
}

// ReportFunc receives every finished run.
type ReportFunc func(ctx context.Context, run Run)

type Scheduler struct {
	cron     *cron.Cron
	searcher Searcher
	seen     SeenSet
	searches []SavedSearch
	report   ReportFunc
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Scheduler)

func WithReport(fn ReportFunc) Option {
	return func(s *Scheduler) { s.report = fn }
}

// WithTimeout bounds a single run. The default is five minutes.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Scheduler. seen may be nil; every run then reports everything found.
func New(searcher Searcher, seen SeenSet, searches []SavedSearch, log *zap.Logger, opts ...Option) (*Scheduler, error) {
	if searcher == nil {
		return nil, errors.New("scheduler requires a searcher")
	}
	for i, s := range searches {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("saved search %d: %w", i, err)
		}
	}

	log = logger.ForStage(log, "schedule")
	cronLog := cronLogger{log.Sugar()}

	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		searcher: searcher,
		seen:     seen,
		searches: searches,
		timeout:  5 * time.Minute,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers every saved search and starts the cron loop. Runs use ctx, so
// cancelling it aborts them.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.searches) == 0 {
		return errors.New("no saved searches configured")
	}

	for _, search := range s.searches {
		if _, err := s.cron.AddFunc(search.Cron, func() { s.RunOnce(ctx, search) }); err != nil {
			return fmt.Errorf("scheduling %q: %w", search.Name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("searches", len(s.searches)))
	return nil
}

// Stop stops the cron loop and waits for the running searches.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Entries returns the number of registered searches.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunOnce executes search and marks the returned listings as seen. Listings seen
// before are removed by the pipeline through the same set.
func (s *Scheduler) RunOnce(ctx context.Context, search SavedSearch) (run Run) {
	log := s.logger.With(zap.String("search", search.Name))
	run = Run{Search: search, Started: time.Now()}
	defer func() {
		run.Duration = time.Since(run.Started)
		if s.report != nil {
			s.report(ctx, run)
		}
	}()

	resume, err := readResume(search.ResumeFile)
	if err != nil {
		run.Err = err
		log.Error("saved search skipped", zap.Error(err))
		return run
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	found, err := s.searcher.Search(runCtx, search.Query, resume, search.Limit)
	if err != nil {
		run.Err = err
		log.Error("saved search failed", zap.Error(err))
		return run
	}
	run.Listings = found

	if s.seen != nil && len(found) > 0 {
		v := &listing.Listings{Items: found}
		if err := s.seen.Mark(runCtx, v.IdentityKeys()); err != nil {
			log.Warn("listings not marked as seen", zap.Error(err))
		}
	}

	log.Info("saved search finished", zap.Int("listings", len(found)))
	return run
}

func readResume(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	return string(data), nil
}

// cronLogger routes cron messages to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
