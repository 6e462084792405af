package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/logger"
)

// Strategy is one way of producing a result in a race.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) ([]T, error)
}

// Outcome is the result of RaceFirst. Winner is empty when nobody produced anything.
type Outcome[T any] struct {
	Items  []T
	Winner string
}

type finished[T any] struct {
	index int
	items []T
	err   error
}

// RaceFirst starts every strategy and returns the first non-empty result. When
// nothing wins within FirstWindow the remaining strategies get SecondWindow more.
// Results available in the same wait cycle are ranked by submission order. The
// shared context is cancelled once a winner is picked.
func RaceFirst[T any](ctx context.Context, strategies []Strategy[T], opts Options, log *zap.Logger) Outcome[T] {
	opts = opts.withDefaults()
	log = logger.ForStage(log, "race")
	if len(strategies) == 0 {
		return Outcome[T]{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan finished[T], len(strategies))
	for i, s := range strategies {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- finished[T]{index: i, err: fmt.Errorf("panic: %v", r)}
				}
			}()
			items, err := s.Run(ctx)
			done <- finished[T]{index: i, items: items, err: err}
		}()
	}

	timer := time.NewTimer(opts.FirstWindow)
	defer timer.Stop()

	pending := len(strategies)
	extended := false
	for pending > 0 {
		select {
		case f := <-done:
			batch := []finished[T]{f}
			pending--
			for drained := false; !drained && pending > 0; {
				select {
				case next := <-done:
					batch = append(batch, next)
					pending--
				default:
					drained = true
				}
			}

			if w, ok := firstNonEmpty(batch); ok {
				cancel()
				log.Debug("strategy won", zap.String("strategy", strategies[w.index].Name), zap.Int("items", len(w.items)))
				return Outcome[T]{Items: w.items, Winner: strategies[w.index].Name}
			}
			for _, r := range batch {
				log.Debug("strategy produced nothing", zap.String("strategy", strategies[r.index].Name), zap.Error(r.err))
			}
		case <-timer.C:
			if extended {
				log.Info("race gave up", zap.Int("pending", pending))
				return Outcome[T]{}
			}
			extended = true
			timer.Reset(opts.SecondWindow)
		case <-ctx.Done():
			return Outcome[T]{}
		}
	}

	return Outcome[T]{}
}

// firstNonEmpty picks the lowest submission index with a usable result.
func firstNonEmpty[T any](batch []finished[T]) (finished[T], bool) {
	sort.Slice(batch, func(i, j int) bool { return batch[i].index < batch[j].index })
	for _, r := range batch {
		if r.err == nil && len(r.items) > 0 {
			return r, true
		}
	}
	return finished[T]{}, false
}
