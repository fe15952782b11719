package regiondata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wasco/mapcore/internal/scenario"
	"wasco/mapcore/internal/source"
)

// Request identifies the detail payload to fetch.
type Request struct {
	Mode       scenario.AppMode
	ScenarioID string
	RegionID   int
}

// Key is the cache key for the request.
func (r Request) Key() scenario.Key {
	return scenario.Resolve(r.Mode, r.ScenarioID, r.RegionID)
}

// Fetcher loads one region detail payload.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (*Payload, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Payload, error) {
	return f(ctx, req)
}

// HTTPFetcher reads payloads from a URL template containing {regionId}
// and optionally {scenarioId}.
type HTTPFetcher struct {
	template string
	client   *http.Client
}

func NewHTTPFetcher(template string, client *http.Client) (*HTTPFetcher, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, errors.New("region detail url template is required")
	}
	if !strings.Contains(template, "{regionId}") {
		return nil, fmt.Errorf("region detail url template %q has no {regionId} placeholder", template)
	}
	if client == nil {
		client = source.NewHTTPClient(0)
	}
	return &HTTPFetcher{template: template, client: client}, nil
}

// URL expands the template for req.
func (f *HTTPFetcher) URL(req Request) string {
	sid := strings.TrimSpace(req.ScenarioID)
	if !req.Mode.HasScenarios() || sid == "" {
		sid = scenario.PlaceholderScenario
	}
	return strings.NewReplacer(
		"{regionId}", strconv.Itoa(req.RegionID),
		"{scenarioId}", url.PathEscape(sid),
	).Replace(f.template)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Payload, error) {
	var p Payload
	if err := source.DecodeJSON(ctx, f.client, f.URL(req), &p); err != nil {
		return nil, fmt.Errorf("fetch region %d: %w", req.RegionID, err)
	}
	return &p, nil
}
