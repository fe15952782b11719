package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wasco/mapcore/internal/scenario"
	"wasco/mapcore/internal/source"
)

type LoaderOptions struct {
	WorldLandURL          string
	WaterRegionsURL       string
	WorldRegionsURL       string
	HistoricalDataURL     string
	FutureDataURLTemplate string
	Client                *http.Client
}

// Loader fetches base geometry and statistics from configured URLs.
type Loader struct {
	opts LoaderOptions
	log  zerolog.Logger
}

func NewLoader(log zerolog.Logger, opts LoaderOptions) *Loader {
	if opts.Client == nil {
		opts.Client = source.NewHTTPClient(0)
	}
	return &Loader{opts: opts, log: log}
}

// LoadBase fetches land, water regions and world regions concurrently.
// World regions are optional; the others are required.
func (l *Loader) LoadBase(ctx context.Context) (*Base, error) {
	if l.opts.WorldLandURL == "" || l.opts.WaterRegionsURL == "" {
		return nil, errors.New("world land and water region urls are required")
	}

	started := time.Now()
	var base Base
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		land, err := load(gctx, l.opts.Client, l.opts.WorldLandURL, DecodeLand)
		base.Land = land
		return err
	})
	g.Go(func() error {
		regions, err := load(gctx, l.opts.Client, l.opts.WaterRegionsURL, DecodeWaterRegions)
		base.WaterRegions = regions
		return err
	})
	if l.opts.WorldRegionsURL != "" {
		g.Go(func() error {
			regions, err := load(gctx, l.opts.Client, l.opts.WorldRegionsURL, DecodeWorldRegions)
			base.WorldRegions = regions
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.log.Info().
		Int("water_regions", base.WaterRegions.Len()).
		Int("world_regions", len(base.WorldRegions)).
		Dur("duration", time.Since(started)).
		Msg("base geometry loaded")
	return &base, nil
}

// LoadStats fetches the statistics for mode. Future mode expands the
// scenario into the URL template.
func (l *Loader) LoadStats(ctx context.Context, mode scenario.AppMode, fs scenario.FutureScenario) ([]TimeAggregate, error) {
	switch mode {
	case scenario.ModeFuture:
		if l.opts.FutureDataURLTemplate == "" {
			return nil, errors.New("future data url template is not configured")
		}
		return load(ctx, l.opts.Client, fs.Expand(l.opts.FutureDataURLTemplate), DecodeFuture)
	default:
		if l.opts.HistoricalDataURL == "" {
			return nil, errors.New("historical data url is not configured")
		}
		return load(ctx, l.opts.Client, l.opts.HistoricalDataURL, DecodeHistorical)
	}
}

func load[T any](ctx context.Context, client *http.Client, rawURL string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := source.Open(ctx, client, rawURL)
	if err != nil {
		return zero, fmt.Errorf("load %s: %w", rawURL, err)
	}
	defer rc.Close()
	v, err := decode(rc)
	if err != nil {
		return zero, fmt.Errorf("load %s: %w", rawURL, err)
	}
	return v, nil
}
