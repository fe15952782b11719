package regiondata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasco/mapcore/internal/scenario"
)

func samplePayload() *Payload {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{24.9, 60.2}))
	return &Payload{Places: fc}
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	result  func(Request) (*Payload, error)
}

func newGatedFetcher(result func(Request) (*Payload, error)) *gatedFetcher {
	return &gatedFetcher{release: make(chan struct{}), result: result}
}

func (f *gatedFetcher) Fetch(_ context.Context, req Request) (*Payload, error) {
	f.calls.Add(1)
	<-f.release
	return f.result(req)
}

func newTestCache(f Fetcher) *Cache {
	return NewCache(Options{Fetcher: f, Log: zerolog.Nop()})
}

func TestEnsure_ConcurrentCallsIssueOneFetch(t *testing.T) {
	f := newGatedFetcher(func(Request) (*Payload, error) { return samplePayload(), nil })
	c := newTestCache(f)
	req := Request{Mode: scenario.ModePast, RegionID: 7}
	key := req.Key()

	var started atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Ensure(context.Background(), key, req, nil) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.True(t, c.Pending(key))
	close(f.release)
	c.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(1), f.calls.Load())
	assert.False(t, c.Pending(key))
	_, ok := c.Get(key)
	assert.True(t, ok)
}

func TestEnsure_StoredPayloadIsStable(t *testing.T) {
	p := samplePayload()
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) { return p, nil }))
	req := Request{Mode: scenario.ModePast, RegionID: 1}

	var got Result
	c.Ensure(context.Background(), req.Key(), req, func(r Result) { got = r })
	c.Wait()

	require.NoError(t, got.Err)
	assert.Same(t, p, got.Payload)
	for range 3 {
		stored, ok := c.Get(req.Key())
		require.True(t, ok)
		assert.Same(t, p, stored)
	}
}

func TestEnsure_RefetchReplacesEntry(t *testing.T) {
	var n atomic.Int32
	first, second := samplePayload(), samplePayload()
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) {
		if n.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}))
	req := Request{Mode: scenario.ModePast, RegionID: 3}

	c.Ensure(context.Background(), req.Key(), req, nil)
	c.Wait()
	c.Ensure(context.Background(), req.Key(), req, nil)
	c.Wait()

	stored, ok := c.Get(req.Key())
	require.True(t, ok)
	assert.Same(t, second, stored)
}

func TestEnsure_FailureLeavesEntryAbsent(t *testing.T) {
	var n atomic.Int32
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) {
		if n.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return samplePayload(), nil
	}))
	req := Request{Mode: scenario.ModeFuture, ScenarioID: "s1", RegionID: 9}
	key := req.Key()

	var res Result
	c.Ensure(context.Background(), key, req, func(r Result) { res = r })
	c.Wait()

	assert.Error(t, res.Err)
	assert.Nil(t, res.Payload)
	assert.False(t, c.Pending(key))
	_, ok := c.Get(key)
	assert.False(t, ok)

	// No automatic retry, but a later Ensure fetches again.
	assert.True(t, c.Ensure(context.Background(), key, req, nil))
	c.Wait()
	_, ok = c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, int32(2), n.Load())
}

func TestEnsure_EmptyPayloadNotStored(t *testing.T) {
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) { return &Payload{}, nil }))
	req := Request{Mode: scenario.ModePast, RegionID: 4}

	var res Result
	c.Ensure(context.Background(), req.Key(), req, func(r Result) { res = r })
	c.Wait()

	assert.ErrorIs(t, res.Err, ErrEmptyPayload)
	assert.Equal(t, 0, c.Len())
}

func TestEnsure_PanickingFetcherIsAbsorbed(t *testing.T) {
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) { panic("bad") }))
	req := Request{Mode: scenario.ModePast, RegionID: 5}

	var res Result
	c.Ensure(context.Background(), req.Key(), req, func(r Result) { res = r })
	c.Wait()

	assert.Error(t, res.Err)
	assert.False(t, c.Pending(req.Key()))
}

func TestEnsure_SurvivesCallerCancellation(t *testing.T) {
	f := newGatedFetcher(func(Request) (*Payload, error) { return samplePayload(), nil })
	c := newTestCache(f)
	req := Request{Mode: scenario.ModePast, RegionID: 11}

	ctx, cancel := context.WithCancel(context.Background())
	c.Ensure(ctx, req.Key(), req, nil)
	cancel()
	close(f.release)
	c.Wait()

	_, ok := c.Get(req.Key())
	assert.True(t, ok)
}

func TestEnsure_DistinctKeysFetchIndependently(t *testing.T) {
	f := newGatedFetcher(func(Request) (*Payload, error) { return samplePayload(), nil })
	c := newTestCache(f)
	a := Request{Mode: scenario.ModePast, RegionID: 1}
	b := Request{Mode: scenario.ModePast, RegionID: 2}

	assert.True(t, c.Ensure(context.Background(), a.Key(), a, nil))
	assert.True(t, c.Ensure(context.Background(), b.Key(), b, nil))
	close(f.release)
	c.Wait()

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestWait_ConcurrentWithEnsure(t *testing.T) {
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) { return samplePayload(), nil }))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := Request{Mode: scenario.ModePast, RegionID: i}
			c.Ensure(context.Background(), req.Key(), req, nil)
		}()
		go func() {
			defer wg.Done()
			c.Wait()
		}()
	}
	wg.Wait()
	c.Wait()

	assert.Equal(t, 50, c.Len())
}

func TestWait_CoversFetchesStartedFromCallbacks(t *testing.T) {
	c := newTestCache(FetcherFunc(func(context.Context, Request) (*Payload, error) { return samplePayload(), nil }))
	first := Request{Mode: scenario.ModePast, RegionID: 1}
	second := Request{Mode: scenario.ModePast, RegionID: 2}

	c.Ensure(context.Background(), first.Key(), first, func(Result) {
		c.Ensure(context.Background(), second.Key(), second, nil)
	})
	c.Wait()

	_, ok := c.Get(second.Key())
	assert.True(t, ok)
	assert.False(t, c.Pending(second.Key()))
}
