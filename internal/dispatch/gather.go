// Package dispatch runs several connectors or strategies concurrently.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
)

const (
	DefaultCeiling       = 45 * time.Second
	DefaultSourceTimeout = connector.DefaultTimeout + 5*time.Second
	DefaultFirstWindow   = 15 * time.Second
	DefaultSecondWindow  = 5 * time.Second
)

type Options struct {
	// Ceiling bounds a whole GatherAll call.
	Ceiling time.Duration `mapstructure:"ceiling"`
	// SourceTimeout bounds one connector on top of its own timeout.
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	FirstWindow   time.Duration `mapstructure:"first_window"`
	SecondWindow  time.Duration `mapstructure:"second_window"`
}

func DefaultOptions() Options {
	return Options{
		Ceiling:       DefaultCeiling,
		SourceTimeout: DefaultSourceTimeout,
		FirstWindow:   DefaultFirstWindow,
		SecondWindow:  DefaultSecondWindow,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Ceiling <= 0 {
		o.Ceiling = d.Ceiling
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = d.SourceTimeout
	}
	if o.FirstWindow <= 0 {
		o.FirstWindow = d.FirstWindow
	}
	if o.SecondWindow <= 0 {
		o.SecondWindow = d.SecondWindow
	}
	return o
}

// SourceReport describes what one connector did during GatherAll.
type SourceReport struct {
	Source   string
	Count    int
	Stamped  int
	Duration time.Duration
	Err      error
}

// Report lists the connectors in dispatch order.
type Report struct {
	Sources  []SourceReport
	Total    int
	Duration time.Duration
}

// Failed returns the reports of connectors that produced an error.
func (r Report) Failed() []SourceReport {
	var failed []SourceReport
	for _, s := range r.Sources {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

type sourceResult struct {
	index    int
	listings []*listing.JobListing
	report   SourceReport
}

// GatherAll runs every connector against c and concatenates the results in
// dispatch order. Connector failures, panics and timeouts are logged and leave an
// empty slot. Results arriving after the ceiling are discarded.
func GatherAll(ctx context.Context, connectors []connector.Connector, c listing.SearchCriteria, opts Options, log *zap.Logger) ([]*listing.JobListing, Report) {
	opts = opts.withDefaults()
	log = logger.ForStage(log, "gather")
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Ceiling)
	defer cancel()

	slots := make([]*sourceResult, len(connectors))
	results := make(chan sourceResult, len(connectors))

	// Sources never return an error to the group: a failing source must not
	// cancel its siblings. Failures travel in the result slots instead.
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range connectors {
		g.Go(func() error {
			results <- runSource(gctx, i, conn, c, opts.SourceTimeout, log)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

collect:
	for {
		select {
		case r, ok := <-results:
			if !ok {
				break collect
			}
			slots[r.index] = &r
		case <-ctx.Done():
			log.Warn("fan-out ceiling reached, late sources discarded", zap.Duration("ceiling", opts.Ceiling))
			break collect
		}
	}

	report := Report{Sources: make([]SourceReport, len(connectors))}
	var all []*listing.JobListing
	for i, slot := range slots {
		if slot == nil {
			report.Sources[i] = SourceReport{Source: name(connectors[i]), Err: fmt.Errorf("no answer before ceiling: %w", ctx.Err())}
			continue
		}
		report.Sources[i] = slot.report
		all = append(all, slot.listings...)
	}
	report.Total = len(all)
	report.Duration = time.Since(started)

	log.Info("fan-out finished",
		zap.Int("sources", len(connectors)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("listings", report.Total),
		zap.Duration("duration", report.Duration),
	)

	return all, report
}

func runSource(ctx context.Context, index int, conn connector.Connector, c listing.SearchCriteria, timeout time.Duration, log *zap.Logger) (result sourceResult) {
	source := name(conn)
	log = logger.WithFields(log, logger.SourceFields(source)...)
	started := time.Now()

	result = sourceResult{index: index, report: SourceReport{Source: source}}
	defer func() {
		if r := recover(); r != nil {
			err := connector.NewSourceError(source, fmt.Errorf("panic: %v", r))
			log.Error("connector panicked", zap.Any("panic", r))
			result = sourceResult{index: index, report: SourceReport{Source: source, Err: err, Duration: time.Since(started)}}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := conn.Search(ctx, c)
	result.report.Duration = time.Since(started)
	if err != nil {
		err = connector.NewSourceError(source, err)
		kind, _ := connector.KindOf(err)
		log.Warn("connector failed", zap.String("kind", string(kind)), zap.Error(err))
		result.report.Err = err
		return result
	}

	listings := make([]*listing.JobListing, 0, len(found))
	for _, l := range found {
		if l == nil {
			continue
		}
		if l.Source != source {
			log.Debug("listing source stamped", zap.String("reported", l.Source), zap.String("id", l.ID))
			l.Source = source
			result.report.Stamped++
		}
		listings = append(listings, l)
	}

	result.listings = listings
	result.report.Count = len(listings)
	log.Debug("connector finished", zap.Int("listings", len(listings)), zap.Duration("duration", result.report.Duration))
	return result
}

func name(conn connector.Connector) string {
	if conn == nil {
		return "unknown"
	}
	return conn.Name()
}
