// Package prefetch keeps the region detail archive warm for a configured
// set of regions and prunes entries past their retention.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wasco/mapcore/internal/metrics"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scenario"
)

// Refresher fetches a payload upstream and archives it.
//
// *regiondata.ArchiveFetcher satisfies this.
type Refresher interface {
	Refresh(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error)
}

// Pruner deletes archived payloads fetched before a cutoff.
//
// *sqlcgen.Queries satisfies this.
type Pruner interface {
	DeleteRegionDetailsOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type Worker struct {
	log        zerolog.Logger
	refresher  Refresher
	pruner     Pruner
	requests   []regiondata.Request
	interval   time.Duration
	retryBase  time.Duration
	firstDelay time.Duration
	retention  time.Duration
	maxRuntime time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Options struct {
	// Regions are warmed for the past mode and for every scenario.
	Regions   []int
	Scenarios []string
	// Interval separates successful runs.
	Interval time.Duration
	// RetryBase is the first delay after a failed run; it doubles up to
	// Interval.
	RetryBase    time.Duration
	InitialDelay time.Duration
	// Retention of zero disables pruning.
	Retention  time.Duration
	MaxRuntime time.Duration
}

func New(log zerolog.Logger, r Refresher, p Pruner, opts Options, m *metrics.Metrics) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = 30 * time.Second
	}
	if retryBase > interval {
		retryBase = interval
	}
	firstDelay := opts.InitialDelay
	if firstDelay <= 0 {
		firstDelay = 5 * time.Second
	}
	maxRuntime := opts.MaxRuntime
	if maxRuntime <= 0 {
		maxRuntime = 10 * time.Minute
	}
	retention := opts.Retention
	if retention < 0 {
		retention = 0
	}

	return &Worker{
		log:        log,
		refresher:  r,
		pruner:     p,
		requests:   Requests(opts.Regions, opts.Scenarios),
		interval:   interval,
		retryBase:  retryBase,
		firstDelay: firstDelay,
		retention:  retention,
		maxRuntime: maxRuntime,
		metrics:    m,
		now:        time.Now,
	}
}

// Requests expands regions into one past request each plus one future
// request per scenario.
func Requests(regions []int, scenarios []string) []regiondata.Request {
	out := make([]regiondata.Request, 0, len(regions)*(1+len(scenarios)))
	for _, id := range regions {
		out = append(out, regiondata.Request{Mode: scenario.ModePast, RegionID: id})
		for _, sid := range scenarios {
			out = append(out, regiondata.Request{Mode: scenario.ModeFuture, ScenarioID: sid, RegionID: id})
		}
	}
	return out
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.refresher == nil {
		return
	}
	if len(w.requests) == 0 && (w.pruner == nil || w.retention == 0) {
		return
	}

	timer := time.NewTimer(w.firstDelay)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.runOnce(ctx); err != nil {
			consecutiveFailures++
			w.log.Warn().Err(err).Int("consecutive_failures", consecutiveFailures).Msg("archive warm run failed")
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(w.nextDelay(consecutiveFailures))
	}
}

func (w *Worker) nextDelay(failures int) time.Duration {
	if failures <= 0 {
		return w.interval
	}
	return backoffDuration(w.retryBase, w.interval, failures)
}

func backoffDuration(base, limit time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if failures <= 0 {
		return base
	}
	if failures > 10 {
		failures = 10
	}
	d := base * time.Duration(1<<(failures-1))
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// runOnce refreshes every configured request and prunes the archive. A run
// fails when every refresh failed or pruning failed.
func (w *Worker) runOnce(ctx context.Context) error {
	w.metrics.IncWarmRun()
	start := time.Now()
	defer func() {
		w.metrics.ObserveWarmRunDuration(time.Since(start))
	}()

	execCtx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	var refreshed, failed int
	var lastErr error
	for _, req := range w.requests {
		if execCtx.Err() != nil {
			break
		}
		p, err := w.refresher.Refresh(execCtx, req)
		switch {
		case err != nil:
			failed++
			lastErr = err
			w.log.Warn().
				Err(err).
				Str("scenario_key", req.Key().String()).
				Int("region_id", req.RegionID).
				Msg("archive warm fetch failed")
		case p.Empty():
			failed++
			lastErr = regiondata.ErrEmptyPayload
		default:
			refreshed++
		}
	}

	var errs []error
	if len(w.requests) > 0 && refreshed == 0 {
		if lastErr == nil {
			lastErr = execCtx.Err()
		}
		errs = append(errs, fmt.Errorf("no region refreshed: %w", lastErr))
	}

	if w.pruner != nil && w.retention > 0 {
		cutoff := w.now().Add(-w.retention)
		n, err := w.pruner.DeleteRegionDetailsOlderThan(execCtx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune archive: %w", err))
		} else if n > 0 {
			w.log.Info().Int64("deleted", n).Time("before", cutoff).Msg("pruned region archive")
		}
	}

	w.log.Info().
		Int("refreshed", refreshed).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("archive warm run finished")
	return errors.Join(errs...)
}
