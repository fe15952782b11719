package regiondata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasco/mapcore/internal/scenario"
)

func TestNewHTTPFetcher_ValidatesTemplate(t *testing.T) {
	_, err := NewHTTPFetcher("", nil)
	assert.Error(t, err)
	_, err = NewHTTPFetcher("https://example.com/region.json", nil)
	assert.Error(t, err)
}

func TestHTTPFetcher_URL(t *testing.T) {
	f, err := NewHTTPFetcher("https://cdn.example.com/{scenarioId}/{regionId}.json", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/default/5.json", f.URL(Request{Mode: scenario.ModePast, ScenarioID: "ignored", RegionID: 5}))
	assert.Equal(t, "https://cdn.example.com/a%2Fb/5.json", f.URL(Request{Mode: scenario.ModeFuture, ScenarioID: "a/b", RegionID: 5}))
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/regions/8.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayloadJSON))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/regions/{regionId}.json", srv.Client())
	require.NoError(t, err)

	p, err := f.Fetch(context.Background(), Request{Mode: scenario.ModePast, RegionID: 8})
	require.NoError(t, err)
	assert.Len(t, p.Grid, 2)

	_, err = f.Fetch(context.Background(), Request{Mode: scenario.ModePast, RegionID: 9})
	assert.Error(t, err)
}
