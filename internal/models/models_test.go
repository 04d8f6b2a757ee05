package models

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obiente/whisperbridge/internal/apperr"
)

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("GGML model bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadStoresModel(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	dir := filepath.Join(t.TempDir(), "cache")
	r := NewResolver(dir, srv.URL, false, 5)

	path, err := r.Download(context.Background(), "tiny")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "ggml-tiny.bin") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "GGML model bytes" {
		t.Fatalf("cached file = %q, %v", data, err)
	}
	assertNoTemp(t, dir)

	if _, err := r.Download(context.Background(), "tiny"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temporary file %s left behind", e.Name())
		}
	}
}

// gatedServer sends half of body, then waits until a second request has
// arrived (or a short grace period passed) before sending the rest.
func gatedServer(t *testing.T, body []byte, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	second := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 2 {
			close(second)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		half := len(body) / 2
		w.Write(body[:half])
		w.(http.Flusher).Flush()
		select {
		case <-second:
		case <-time.After(300 * time.Millisecond):
		}
		w.Write(body[half:])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func modelBytes() []byte {
	body := make([]byte, 64<<10)
	for i := range body {
		body[i] = byte(i%251 + 1)
	}
	return body
}

func TestConcurrentFetchesDoNotShareTempFile(t *testing.T) {
	body := modelBytes()
	var hits atomic.Int32
	srv := gatedServer(t, body, &hits)
	dir := t.TempDir()
	dst := filepath.Join(dir, "ggml-tiny.bin")
	c := NewClient(srv.URL, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Fetch(context.Background(), "tiny", dst)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	got, err := os.ReadFile(dst)
	if err != nil || !bytes.Equal(got, body) {
		t.Fatalf("cached model corrupted: %d bytes, %v", len(got), err)
	}
	assertNoTemp(t, dir)
}

func TestConcurrentDownloadsFetchOnce(t *testing.T) {
	body := modelBytes()
	var hits atomic.Int32
	srv := gatedServer(t, body, &hits)
	r := NewResolver(t.TempDir(), srv.URL, true, 5)

	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = r.Resolve(context.Background(), "tiny")
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil || paths[i] != r.Path("tiny") {
			t.Fatalf("resolve %d: %q, %v", i, paths[i], err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("server hit %d times, want 1", n)
	}
	got, _ := os.ReadFile(r.Path("tiny"))
	if !bytes.Equal(got, body) {
		t.Fatal("cached model corrupted")
	}
}

func TestDownloadErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	r := NewResolver(t.TempDir(), srv.URL, false, 5)

	_, err := r.Download(context.Background(), "enormous")
	if !errors.Is(err, apperr.ErrDownload) || !strings.Contains(err.Error(), "large-v3-turbo") {
		t.Fatalf("unknown name: err = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("unknown name reached the server")
	}

	_, err = r.Download(context.Background(), "base")
	if !errors.Is(err, apperr.ErrDownload) || !strings.Contains(err.Error(), "404") {
		t.Fatalf("404: err = %v", err)
	}
	if _, err := os.Stat(r.Path("base")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("failed download left a model file")
	}
}

func TestResolve(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	dir := t.TempDir()
	ctx := context.Background()

	local := filepath.Join(dir, "custom.bin")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(filepath.Join(dir, "cache"), srv.URL, false, 5)
	if got, err := r.Resolve(ctx, local); err != nil || got != local {
		t.Fatalf("path: %q, %v", got, err)
	}
	if _, err := r.Resolve(ctx, filepath.Join(dir, "missing.bin")); !errors.Is(err, apperr.ErrModelNotFound) {
		t.Fatalf("missing path: err = %v", err)
	}
	if _, err := r.Resolve(ctx, "tiny"); !errors.Is(err, apperr.ErrModelNotFound) {
		t.Fatalf("uncached name without auto download: err = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("resolver downloaded without permission")
	}

	r.AutoDownload = true
	got, err := r.Resolve(ctx, "tiny")
	if err != nil || got != r.Path("tiny") {
		t.Fatalf("auto download: %q, %v", got, err)
	}
}

func TestResolveCachedStaysInDir(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	root := t.TempDir()
	dir := filepath.Join(root, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(root, "secret.bin")
	inside := filepath.Join(dir, "custom.bin")
	for _, p := range []string{outside, inside} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	r := NewResolver(dir, srv.URL, true, 5)
	ctx := context.Background()

	if got, err := r.ResolveCached(ctx, "custom.bin"); err != nil || got != inside {
		t.Fatalf("file in dir: %q, %v", got, err)
	}
	if got, err := r.ResolveCached(ctx, "tiny"); err != nil || got != r.Path("tiny") {
		t.Fatalf("registry name: %q, %v", got, err)
	}
	for _, model := range []string{outside, "../secret.bin", "/etc/passwd", `..\secret.bin`, "notes.txt"} {
		if _, err := r.ResolveCached(ctx, model); !errors.Is(err, apperr.ErrInitialization) {
			t.Errorf("ResolveCached(%q) err = %v", model, err)
		}
	}
	if _, err := r.ResolveCached(ctx, "other.bin"); !errors.Is(err, apperr.ErrModelNotFound) {
		t.Fatalf("missing file: err = %v", err)
	}
}

func TestDownloadedAndAvailable(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(filepath.Join(dir, "none"), "", false, 0)
	if got, err := r.Downloaded(); err != nil || len(got) != 0 {
		t.Fatalf("missing dir: %v, %v", got, err)
	}

	r.Dir = dir
	for _, name := range []string{"ggml-small.bin", "ggml-base.bin", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Downloaded()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"ggml-base.bin", "ggml-small.bin"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Downloaded = %v", got)
	}

	avail := r.Available()
	avail[0] = "mutated"
	if Names[0] == "mutated" {
		t.Fatal("Available exposed the registry")
	}
}

func TestClientURL(t *testing.T) {
	c := NewClient("https://example.com/models/", 0)
	if got := c.URL("base.en"); got != "https://example.com/models/ggml-base.en.bin" {
		t.Fatalf("URL = %q", got)
	}
	if got := NewClient("", 0).URL("tiny"); got != DefaultBaseURL+"/ggml-tiny.bin" {
		t.Fatalf("default URL = %q", got)
	}
}
