package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeJSON_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.json":
			_, _ = w.Write([]byte(`{"name":"nile"}`))
		case "/broken.json":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(context.Background(), srv.Client(), srv.URL+"/ok.json", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "nile" {
		t.Fatalf("expected nile, got %q", out.Name)
	}

	err := DecodeJSON(context.Background(), srv.Client(), srv.URL+"/missing.json", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := DecodeJSON(context.Background(), srv.Client(), srv.URL+"/broken.json", &out); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestDecodeJSON_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.json")
	if err := os.WriteFile(path, []byte(`[1,2,3]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out []int
	if err := DecodeJSON(context.Background(), nil, "file://"+path, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 values, got %v", out)
	}

	out = nil
	if err := DecodeJSON(context.Background(), nil, path, &out); err != nil {
		t.Fatalf("bare path: unexpected error: %v", err)
	}

	if err := DecodeJSON(context.Background(), nil, filepath.Join(dir, "nope.json"), &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := DecodeJSON(context.Background(), nil, "ftp://example.com/x", &out); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}
