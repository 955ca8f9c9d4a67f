package server

import (
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexjoedt/docstore"
	"github.com/alexjoedt/docstore/internal/config"
	"github.com/rs/zerolog"
)

func TestOpenStore(t *testing.T) {
	cfg := config.Default()

	store, err := OpenStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*docstore.MemoryStore); !ok {
		t.Errorf("expected *docstore.MemoryStore, got %T", store)
	}

	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.DataDir = t.TempDir()
	store, err = OpenStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*docstore.FileStore); !ok {
		t.Errorf("expected *docstore.FileStore, got %T", store)
	}

	cfg.Storage.Backend = "bogus"
	if _, err := OpenStore(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestFeaturesFor(t *testing.T) {
	mem := FeaturesFor(config.BackendMemory)
	if !mem.DecodeKeys || !mem.AllRoute || !mem.AutoKey || !mem.ListKeysOnMiss {
		t.Errorf("memory backend should enable every feature, got %+v", mem)
	}
	if file := FeaturesFor(config.BackendFile); file != (Features{}) {
		t.Errorf("file backend should disable every feature, got %+v", file)
	}
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Addr = freeAddr(t)
	cfg.Server.ShutdownTimeout = 5 * time.Second

	srv, err := New(cfg, docstore.NewMemoryStore(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Post(base+"/data/acme", "application/json", strings.NewReader(`{"x":1}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}

	// The metrics listener starts right after the API listener.
	var metrics string
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + cfg.Metrics.Addr + "/metrics")
		if err == nil {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			metrics = string(data)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics endpoint not reachable: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	for _, want := range []string{
		`docstore_requests_count{code="200",method="post",route="put"} 1`,
		`docstore_documents_written_count 1`,
		`docstore_documents_stored 1`,
	} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_Gzip(t *testing.T) {
	cfg := config.Default()
	srv, err := New(cfg, docstore.NewMemoryStore(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// Large enough to pass the compression size threshold.
	big := `{"text":"` + strings.Repeat("lorem ipsum ", 500) + `"}`
	if res := do(t, srv.Handler(), http.MethodPost, "/data/big", big); res.code != http.StatusOK {
		t.Fatalf("POST status = %d", res.code)
	}

	req := httptest.NewRequest(http.MethodGet, "/data/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	assertCORS(t, rec.Header())

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(plain), "lorem ipsum") {
		t.Errorf("unexpected decompressed body: %.80s", plain)
	}
}
