package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"wasco/mapcore/internal/db"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scenario"
	"wasco/mapcore/migrations"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Letters, digits and underscores only; used unquoted.
	return fmt.Sprintf("mapcore_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	adminURL := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	pool, err := db.Open(ctx, testDBURL)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)

	applied, err := pool.Migrate(ctx, migrations.FS)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) == 0 {
		t.Fatalf("expected migrations to be applied")
	}
	again, err := pool.Migrate(ctx, migrations.FS)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected second migrate to be a no-op, got %v, %v", again, err)
	}
	return pool
}

func TestHandler_Postgres_ArchiveRoundTrip(t *testing.T) {
	pool := openTestPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, _ := newTestHandler(t, 0)
	h = NewHandler(NewLogger("error"), pool, Options{Sessions: h.sessions})
	router := h.Router()

	rrReady := httptest.NewRecorder()
	router.ServeHTTP(rrReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}
	if !strings.Contains(rrReady.Body.String(), `"archive":true`) {
		t.Fatalf("expected archive=true, got %s", rrReady.Body.String())
	}

	upstreamCalls := 0
	upstream := regiondata.FetcherFunc(func(ctx context.Context, req regiondata.Request) (*regiondata.Payload, error) {
		upstreamCalls++
		return fakeFetcher().Fetch(ctx, req)
	})
	archive := regiondata.NewArchiveFetcher(pool.Queries(), upstream, NewLogger("error"))

	for _, req := range []regiondata.Request{
		{Mode: scenario.ModePast, RegionID: 7},
		{Mode: scenario.ModeFuture, ScenarioID: "ssp2-rcp45", RegionID: 7},
	} {
		if _, err := archive.Fetch(ctx, req); err != nil {
			t.Fatalf("fetch %v: %v", req, err)
		}
	}
	if _, err := archive.Fetch(ctx, regiondata.Request{Mode: scenario.ModePast, RegionID: 7}); err != nil {
		t.Fatalf("archived fetch: %v", err)
	}
	if upstreamCalls != 2 {
		t.Fatalf("expected archived payload to be reused, upstream calls=%d", upstreamCalls)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/archive/regions?limit=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rows []archivedRegion
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 archived regions, got %d", len(rows))
	}
	keys := []string{rows[0].ScenarioKey, rows[1].ScenarioKey}
	sort.Strings(keys)
	if keys[0] != "future/ssp2-rcp45/7" || keys[1] != "past/default/7" {
		t.Fatalf("unexpected archived keys %v", keys)
	}
	for _, r := range rows {
		if r.RegionID != 7 || r.SizeBytes <= 0 {
			t.Fatalf("unexpected archived row %+v", r)
		}
	}

	deleted, err := pool.Queries().DeleteRegionDetailsOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", deleted)
	}
}
