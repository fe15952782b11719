package regiondata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wasco/mapcore/internal/metrics"
	"wasco/mapcore/internal/scenario"
)

// ErrEmptyPayload marks a fetch that succeeded without any detail.
var ErrEmptyPayload = errors.New("empty region payload")

// Result describes a settled fetch. Payload is set only when it was stored.
type Result struct {
	Key     scenario.Key
	Request Request
	Payload *Payload
	Err     error
}

type Options struct {
	Fetcher Fetcher
	Log     zerolog.Logger
	Metrics *metrics.Metrics
	// Timeout bounds a single fetch; zero leaves it unbounded.
	Timeout time.Duration
}

// Cache maps scenario keys to fetched payloads and tracks in-flight
// fetches so each key has at most one outstanding request.
//
// Entries never expire; a failed fetch leaves the key absent until Ensure
// is called for it again.
type Cache struct {
	fetcher Fetcher
	log     zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu      sync.Mutex
	entries map[scenario.Key]*Payload
	pending map[scenario.Key]struct{}
	// inflight counts fetches whose callback has not returned yet.
	inflight int
	idle     *sync.Cond
}

func NewCache(opts Options) *Cache {
	c := &Cache{
		fetcher: opts.Fetcher,
		log:     opts.Log,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
		entries: make(map[scenario.Key]*Payload),
		pending: make(map[scenario.Key]struct{}),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Ensure starts a fetch for key unless one is already in flight. The key
// joins the pending set before the fetch starts and leaves it exactly once
// when the fetch settles, after which done is called (if non-nil) from the
// fetch goroutine. Ensure reports whether a fetch was started.
//
// The fetch outlives ctx cancellation; only ctx values are inherited.
func (c *Cache) Ensure(ctx context.Context, key scenario.Key, req Request, done func(Result)) bool {
	c.mu.Lock()
	if _, inFlight := c.pending[key]; inFlight {
		c.mu.Unlock()
		return false
	}
	c.pending[key] = struct{}{}
	c.inflight++
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	go c.run(fetchCtx, key, req, done)
	return true
}

func (c *Cache) run(ctx context.Context, key scenario.Key, req Request, done func(Result)) {
	defer c.settle()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	p, err := c.fetch(ctx, req)
	if err == nil && p.Empty() {
		err = ErrEmptyPayload
	}

	res := Result{Key: key, Request: req, Err: err}
	c.mu.Lock()
	delete(c.pending, key)
	if err == nil {
		c.entries[key] = p
		res.Payload = p
	}
	c.mu.Unlock()

	outcome := metrics.FetchOK
	switch {
	case errors.Is(err, ErrEmptyPayload):
		outcome = metrics.FetchEmpty
	case err != nil:
		outcome = metrics.FetchError
	}
	c.metrics.ObserveRegionFetch(outcome, time.Since(started))

	if err != nil {
		c.log.Warn().
			Err(err).
			Str("scenario_key", key.String()).
			Int("region_id", req.RegionID).
			Msg("region detail fetch failed")
	} else {
		c.log.Debug().
			Str("scenario_key", key.String()).
			Int("region_id", req.RegionID).
			Dur("duration", time.Since(started)).
			Msg("region detail cached")
	}

	if done != nil {
		done(res)
	}
}

func (c *Cache) fetch(ctx context.Context, req Request) (p *Payload, err error) {
	if c.fetcher == nil {
		return nil, errors.New("no region detail fetcher configured")
	}
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = errors.New("region detail fetcher panicked")
		}
	}()
	return c.fetcher.Fetch(ctx, req)
}

// Get returns the stored payload for key.
func (c *Cache) Get(key scenario.Key) (*Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok
}

// Pending reports whether a fetch for key is in flight.
func (c *Cache) Pending(key scenario.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Len returns the number of stored payloads.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) settle() {
	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
}

// Wait blocks until every in-flight fetch has settled and its callback
// returned. Fetches started by those callbacks are waited for too. Ensure
// may be called concurrently with Wait.
func (c *Cache) Wait() {
	c.mu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}
