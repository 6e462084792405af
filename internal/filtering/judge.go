package filtering

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	MaxJudgeBatch       = 25
	defaultJudgeWorkers = 3
	defaultJudgeTimeout = time.Minute
)

type judgeFilter struct {
	toggle
	config JudgeConfig
}

// NewJudge creates the step that lets the judge service overwrite heuristic scores.
func NewJudge() Filter {
	return &judgeFilter{}
}

func (f *judgeFilter) Name() string { return "judge" }

func (f *judgeFilter) Validate(cfg *Config) error {
	if cfg == nil || cfg.Judge == nil || !cfg.Judge.Enabled {
		f.Disable("not enabled in config")
		return nil
	}

	f.config = *cfg.Judge
	if f.config.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative")
	}
	if f.config.BatchSize == 0 || f.config.BatchSize > MaxJudgeBatch {
		f.config.BatchSize = MaxJudgeBatch
	}
	if f.config.Concurrency <= 0 {
		f.config.Concurrency = defaultJudgeWorkers
	}
	if f.config.Timeout <= 0 {
		f.config.Timeout = defaultJudgeTimeout
	}
	return nil
}

func (f *judgeFilter) Apply(ctx context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	initial := v.Len()
	if deps.Judge == nil {
		if deps.Logger != nil {
			deps.Logger.Info("judge is not configured; keeping heuristic scores")
		}
		return v, Step{Initial: initial, Left: initial}, nil
	}

	batches := split(v.Items, f.config.BatchSize)
	var judged, failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(f.config.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			batchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
			defer cancel()

			verdicts, err := deps.Judge.Judge(batchCtx, deps.Profile, batch)
			if err != nil {
				failed.Add(1)
				if deps.Logger != nil {
					deps.Logger.Warn("judge batch failed, heuristic scores kept",
						zap.Int("batch", i),
						zap.Int("size", len(batch)),
						zap.Error(err),
					)
				}
				return nil
			}
			judged.Add(int32(applyVerdicts(batch, verdicts)))
			return nil
		})
	}
	_ = g.Wait()

	if deps.Logger != nil {
		deps.Logger.Info("judge pass finished",
			zap.Int("batches", len(batches)),
			zap.Int32("failed_batches", failed.Load()),
			zap.Int32("judged", judged.Load()),
		)
	}

	return v, Step{Initial: initial, Left: v.Len()}, nil
}

func (f *judgeFilter) Status() Status {
	details := map[string]string{}
	if f.IsEnabled() {
		details["batch_size"] = strconv.Itoa(f.config.BatchSize)
		details["concurrency"] = strconv.Itoa(f.config.Concurrency)
		details["timeout"] = f.config.Timeout.String()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// applyVerdicts overwrites the scores of the batch members the verdicts point to.
// Verdicts outside the batch or without a usable score are ignored.
func applyVerdicts(batch []*listing.JobListing, verdicts []ai.Verdict) int {
	applied := 0
	for _, verdict := range verdicts {
		if verdict.Index < 0 || verdict.Index >= len(batch) || math.IsNaN(verdict.Score) {
			continue
		}
		l := batch[verdict.Index]
		l.MatchScore = int(math.Round(math.Max(0, math.Min(100, verdict.Score))))
		l.JudgeReason = verdict.Reason
		applied++
	}
	return applied
}

func split(items []*listing.JobListing, size int) [][]*listing.JobListing {
	var batches [][]*listing.JobListing
	for start := 0; start < len(items); start += size {
		batches = append(batches, items[start:min(start+size, len(items))])
	}
	return batches
}
