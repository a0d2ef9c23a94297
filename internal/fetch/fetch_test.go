package fetch

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sha512hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

func testOptions() Options {
	return Options{
		Concurrency: 2,
		Retries:     3,
		Backoff:     time.Millisecond,
		Timeout:     5 * time.Second,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile %s: %v", path, err)
	}
	return string(data)
}

func TestRunPlacesVerifiedDownloads(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jarbytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	var progress []Progress
	var mu sync.Mutex

	opts := testOptions()
	opts.OnProgress = func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}

	jobs := []Job{
		{Path: "mods/a.jar", URLs: []string{srv.URL + "/a.jar"},
			Hashes: map[string]string{"sha512": sha512hex("jarbytes")}},
		{Path: "mods/b.jar", URLs: []string{srv.URL + "/b.jar"},
			Hashes: map[string]string{"sha512": sha512hex("jarbytes")}},
	}

	results := Run(context.Background(), jobs, root, opts)

	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("job %s failed: %v", res.Job.Path, res.Err)
		}
		if res.Source == "" {
			t.Fatalf("job %s missing source", res.Job.Path)
		}
	}
	if got := readFile(t, filepath.Join(root, "mods", "a.jar")); got != "jarbytes" {
		t.Fatalf("placed content=%q", got)
	}

	if len(progress) != 2 || progress[len(progress)-1].Completed != 2 || progress[0].Total != 2 {
		t.Fatalf("unexpected progress reports: %+v", progress)
	}
}

func TestRunHashMismatchNeverPlaces(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	root := t.TempDir()
	jobs := []Job{{
		Path:   "mods/a.jar",
		URLs:   []string{srv.URL + "/a.jar"},
		Hashes: map[string]string{"sha512": sha512hex("expected")},
	}}

	results := Run(context.Background(), jobs, root, testOptions())

	if !errors.Is(results[0].Err, ErrHashMismatch) {
		t.Fatalf("error=%v, want ErrHashMismatch", results[0].Err)
	}
	if results[0].Source != srv.URL+"/a.jar" {
		t.Fatalf("Source=%q", results[0].Source)
	}

	mu.Lock()
	gotHits := hits
	mu.Unlock()
	if gotHits != 3 {
		t.Fatalf("source tried %d times, want the full retry budget of 3", gotHits)
	}

	if _, err := os.Stat(filepath.Join(root, "mods", "a.jar")); !os.IsNotExist(err) {
		t.Fatalf("mismatched file was placed")
	}
	if _, err := os.Stat(filepath.Join(root, "mods", "a.jar.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file survived a mismatch")
	}
}

func TestRunFallsBackAcrossSources(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	primaryHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/primary/a.jar":
			mu.Lock()
			primaryHits++
			mu.Unlock()
			http.Error(w, "mirror down", http.StatusInternalServerError)
		case "/mirror/a.jar":
			w.Write([]byte("jarbytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	opts := testOptions()
	opts.Retries = 2

	jobs := []Job{{
		Path:   "mods/a.jar",
		URLs:   []string{srv.URL + "/primary/a.jar", srv.URL + "/mirror/a.jar"},
		Hashes: map[string]string{"sha512": sha512hex("jarbytes")},
	}}

	results := Run(context.Background(), jobs, root, opts)

	if results[0].Err != nil {
		t.Fatalf("job failed: %v", results[0].Err)
	}
	if results[0].Source != srv.URL+"/mirror/a.jar" {
		t.Fatalf("Source=%q, want the mirror", results[0].Source)
	}

	mu.Lock()
	gotPrimary := primaryHits
	mu.Unlock()
	if gotPrimary != 2 {
		t.Fatalf("primary tried %d times, want its full budget of 2", gotPrimary)
	}

	if got := readFile(t, filepath.Join(root, "mods", "a.jar")); got != "jarbytes" {
		t.Fatalf("placed content=%q", got)
	}
}

func TestRunNotFoundSkipsToNextSource(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	primaryHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone/a.jar" {
			mu.Lock()
			primaryHits++
			mu.Unlock()
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jarbytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	jobs := []Job{{
		Path: "mods/a.jar",
		URLs: []string{srv.URL + "/gone/a.jar", srv.URL + "/ok/a.jar"},
	}}

	results := Run(context.Background(), jobs, root, testOptions())

	if results[0].Err != nil {
		t.Fatalf("job failed: %v", results[0].Err)
	}

	mu.Lock()
	gotPrimary := primaryHits
	mu.Unlock()
	if gotPrimary != 1 {
		t.Fatalf("404 source tried %d times, want exactly 1", gotPrimary)
	}
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	current, peak := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()

		w.Write([]byte("jarbytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = Job{
			Path: fmt.Sprintf("mods/%c.jar", 'a'+i),
			URLs: []string{srv.URL + "/file"},
		}
	}

	results := Run(context.Background(), jobs, root, testOptions())

	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("job %s failed: %v", res.Job.Path, res.Err)
		}
	}

	mu.Lock()
	gotPeak := peak
	mu.Unlock()
	if gotPeak > 2 {
		t.Fatalf("observed %d concurrent downloads, limit is 2", gotPeak)
	}
}

func TestRunArchiveJob(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	jobs := []Job{{
		Path: "config/deep/nested/server.toml",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("key = 1")), nil
		},
	}}

	results := Run(context.Background(), jobs, root, testOptions())

	if results[0].Err != nil {
		t.Fatalf("archive job failed: %v", results[0].Err)
	}
	if results[0].Source != "archive" {
		t.Fatalf("Source=%q, want archive", results[0].Source)
	}
	if got := readFile(t, filepath.Join(root, "config", "deep", "nested", "server.toml")); got != "key = 1" {
		t.Fatalf("placed content=%q", got)
	}
}

func TestRunRejectsDuplicateTargets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
	}))
	defer srv.Close()

	root := t.TempDir()
	jobs := []Job{
		{Path: "mods/a.jar", URLs: []string{srv.URL + "/one"}},
		{Path: "mods/a.jar", URLs: []string{srv.URL + "/two"}},
	}

	results := Run(context.Background(), jobs, root, testOptions())

	if results[0].Err != nil {
		t.Fatalf("first claim failed: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, errDuplicatePath) {
		t.Fatalf("second claim error=%v, want duplicate path", results[1].Err)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jar" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jarbytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	jobs := []Job{
		{Path: "mods/bad.jar", URLs: []string{srv.URL + "/bad.jar"}},
		{Path: "mods/good.jar", URLs: []string{srv.URL + "/good.jar"}},
	}

	results := Run(context.Background(), jobs, root, testOptions())

	if results[0].Err == nil {
		t.Fatalf("expected failure for bad.jar")
	}
	if results[1].Err != nil {
		t.Fatalf("good.jar failed: %v", results[1].Err)
	}
	if got := readFile(t, filepath.Join(root, "mods", "good.jar")); got != "jarbytes" {
		t.Fatalf("good.jar content=%q", got)
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	jobs := []Job{
		{Path: "mods/a.jar", URLs: []string{"http://127.0.0.1:0/unreachable"}},
		{Path: "mods/b.jar", URLs: []string{"http://127.0.0.1:0/unreachable"}},
	}

	results := Run(ctx, jobs, root, testOptions())

	for _, res := range results {
		if res.Err == nil {
			t.Fatalf("job %s succeeded under a cancelled context", res.Job.Path)
		}
	}
}
