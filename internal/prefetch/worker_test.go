package prefetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scenario"
)

type fakeRefresher struct {
	mu        sync.Mutex
	refreshFn func(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error)
	seen      []regiondata.Request
}

func (f *fakeRefresher) Refresh(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	return f.refreshFn(ctx, req)
}

type fakePruner struct {
	deleteFn func(ctx context.Context, before time.Time) (int64, error)
}

func (f *fakePruner) DeleteRegionDetailsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return f.deleteFn(ctx, before)
}

func okPayload(context.Context, regiondata.Request) (*regiondata.Payload, error) {
	return &regiondata.Payload{Rivers: geojson.NewFeatureCollection()}, nil
}

func TestRequests_ExpandsScenarios(t *testing.T) {
	reqs := Requests([]int{1, 2}, []string{"a"})
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	if reqs[0].Mode != scenario.ModePast || reqs[0].RegionID != 1 {
		t.Fatalf("unexpected first request %+v", reqs[0])
	}
	if reqs[1].Mode != scenario.ModeFuture || reqs[1].ScenarioID != "a" || reqs[1].RegionID != 1 {
		t.Fatalf("unexpected second request %+v", reqs[1])
	}
}

func TestRunOnce_RefreshesAndPrunes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeRefresher{refreshFn: okPayload}
	var cutoff time.Time
	p := &fakePruner{deleteFn: func(ctx context.Context, before time.Time) (int64, error) {
		cutoff = before
		return 3, nil
	}}

	w := New(zerolog.Nop(), r, p, Options{Regions: []int{10, 11}, Retention: 24 * time.Hour}, nil)
	w.now = func() time.Time { return now }

	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.seen) != 2 {
		t.Fatalf("expected 2 refreshes, got %d", len(r.seen))
	}
	if !cutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", cutoff)
	}
}

func TestRunOnce_PartialFailureSucceeds(t *testing.T) {
	r := &fakeRefresher{refreshFn: func(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error) {
		if req.RegionID == 1 {
			return nil, errors.New("boom")
		}
		return okPayload(ctx, req)
	}}
	w := New(zerolog.Nop(), r, nil, Options{Regions: []int{1, 2}}, nil)
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
}

func TestRunOnce_AllFailuresError(t *testing.T) {
	r := &fakeRefresher{refreshFn: func(context.Context, regiondata.Request) (*regiondata.Payload, error) {
		return &regiondata.Payload{}, nil
	}}
	w := New(zerolog.Nop(), r, nil, Options{Regions: []int{1}}, nil)
	err := w.runOnce(context.Background())
	if !errors.Is(err, regiondata.ErrEmptyPayload) {
		t.Fatalf("expected empty payload error, got %v", err)
	}
}

func TestRunOnce_PruneErrorFails(t *testing.T) {
	r := &fakeRefresher{refreshFn: okPayload}
	p := &fakePruner{deleteFn: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}}
	w := New(zerolog.Nop(), r, p, Options{Regions: []int{1}, Retention: time.Hour}, nil)
	if err := w.runOnce(context.Background()); err == nil {
		t.Fatalf("expected prune error")
	}
}

func TestBackoffDuration(t *testing.T) {
	base := 30 * time.Second
	if got := backoffDuration(base, time.Hour, 1); got != base {
		t.Fatalf("expected %s, got %s", base, got)
	}
	if got := backoffDuration(base, time.Hour, 3); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	if got := backoffDuration(base, time.Hour, 50); got != time.Hour {
		t.Fatalf("expected cap, got %s", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	calls := make(chan struct{}, 8)
	r := &fakeRefresher{refreshFn: func(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error) {
		calls <- struct{}{}
		return okPayload(ctx, req)
	}}
	w := New(zerolog.Nop(), r, nil, Options{
		Regions:      []int{1},
		InitialDelay: time.Millisecond,
		Interval:     time.Hour,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a warm run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestRun_NilWorkerNoop(t *testing.T) {
	var w *Worker
	w.Run(context.Background())
}
