// Package fetch places install targets on disk. Remote targets go through
// a bounded worker pool with per-source retries and checksum verification;
// archive-backed targets are streamed out of the pack. Every placement
// writes to a temp file and renames into place, so a final path either
// holds verified complete content or whatever was there before.
package fetch

import (
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Turbootzz/mrpack-installer/internal/logging"
)

// OpenFunc supplies file content from the pack archive instead of a URL.
type OpenFunc func() (io.ReadCloser, error)

// Job is one file to place, addressed relative to the run's root
// directory. Remote jobs carry source URLs tried in order plus expected
// hashes; archive jobs carry Open and are placed without verification.
type Job struct {
	Path   string
	URLs   []string
	Hashes map[string]string
	Size   int64
	Open   OpenFunc
}

// Result pairs a job with its outcome. Source is the last source tried;
// it names the archive for archive jobs.
type Result struct {
	Job    Job
	Source string
	Err    error
}

// Progress reports pool completion after each finished job.
type Progress struct {
	Completed int64
	Total     int64
}

// Options tune a Run. Zero values pick defaults.
type Options struct {
	Concurrency int
	Retries     int
	Backoff     time.Duration
	Timeout     time.Duration
	UserAgent   string
	OnProgress  func(Progress)
}

const (
	defaultConcurrency = 6
	defaultRetries     = 3
	defaultBackoff     = 2 * time.Second
	defaultTimeout     = 5 * time.Minute
)

// ErrHashMismatch reports downloaded content that did not match the
// manifest's checksum. It burns a retry like any other failed attempt.
var ErrHashMismatch = errors.New("checksum mismatch")

var errDuplicatePath = errors.New("duplicate target path")

// Run places all jobs under root and returns one Result per job, in job
// order. Failures are collected per entry, never fatal: a failed job
// leaves no trace at its final path while the rest of the pool keeps
// going. Cancelling ctx stops new work; jobs never started fail with the
// context error.
func Run(ctx context.Context, jobs []Job, root string, opts Options) []Result {
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Retries < 1 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := &http.Client{Timeout: opts.Timeout}

	total := int64(len(jobs))
	var completed atomic.Int64

	report := func() {
		n := completed.Add(1)
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Completed: n, Total: total})
		}
	}

	results := make([]Result, len(jobs))
	work := make(chan int, len(jobs))

	// Two jobs naming one final path would race on the rename. The first
	// claim wins; the rest fail up front.
	claimed := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		if claimed[job.Path] {
			results[i] = Result{Job: job, Err: errDuplicatePath}
			report()
			continue
		}
		claimed[job.Path] = true
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				job := jobs[i]
				if err := ctx.Err(); err != nil {
					results[i] = Result{Job: job, Err: err}
				} else {
					results[i] = place(ctx, client, job, root, opts)
				}
				report()
			}
		}()
	}

	wg.Wait()
	return results
}

func place(ctx context.Context, client *http.Client, job Job, root string, opts Options) Result {
	destPath := filepath.Join(root, filepath.FromSlash(job.Path))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Result{Job: job, Err: fmt.Errorf("creating directory for %s: %w", job.Path, err)}
	}

	if job.Open != nil {
		logging.Debugf("Verbose: extract start path=%s", job.Path)
		if err := placeFromArchive(job, destPath); err != nil {
			return Result{Job: job, Source: "archive", Err: err}
		}
		return Result{Job: job, Source: "archive"}
	}

	if len(job.URLs) == 0 {
		return Result{Job: job, Err: errors.New("no download sources")}
	}

	logging.Debugf("Verbose: download start path=%s sources=%d size=%d", job.Path, len(job.URLs), job.Size)
	return placeFromSources(ctx, client, job, destPath, opts)
}

// placeFromSources walks the job's sources in order. Each source gets up
// to opts.Retries attempts with linear backoff; transport errors, hash
// mismatches and retryable statuses burn an attempt, any other HTTP
// status moves straight to the next source.
func placeFromSources(ctx context.Context, client *http.Client, job Job, destPath string, opts Options) Result {
	var lastErr error
	var lastSource string

	for _, url := range job.URLs {
		lastSource = url
		for attempt := 0; attempt < opts.Retries; attempt++ {
			if attempt > 0 {
				logging.Debugf("Verbose: retrying path=%s attempt=%d/%d", job.Path, attempt+1, opts.Retries)
				select {
				case <-ctx.Done():
					return Result{Job: job, Source: lastSource, Err: ctx.Err()}
				case <-time.After(time.Duration(attempt) * opts.Backoff):
				}
			}

			err := fetchOnce(ctx, client, job, url, destPath, opts.UserAgent)
			if err == nil {
				logging.Debugf("Verbose: download complete path=%s url=%s", job.Path, url)
				return Result{Job: job, Source: url}
			}
			lastErr = err

			if ctx.Err() != nil {
				return Result{Job: job, Source: lastSource, Err: lastErr}
			}
			if !retryable(err) {
				logging.Debugf("Verbose: source rejected path=%s url=%s err=%v", job.Path, url, err)
				break
			}
		}
	}

	return Result{Job: job, Source: lastSource, Err: lastErr}
}

func fetchOnce(ctx context.Context, client *http.Client, job Job, url, destPath, userAgent string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", job.Path, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", job.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	algo, want := preferredHash(job.Hashes)
	return writeVerified(resp.Body, destPath, algo, want)
}

// placeFromArchive copies an override out of the pack. The content was
// shipped inside the archive itself, so there is no checksum to verify.
func placeFromArchive(job Job, destPath string) error {
	rc, err := job.Open()
	if err != nil {
		return fmt.Errorf("opening archived %s: %w", job.Path, err)
	}
	defer rc.Close()

	return writeVerified(rc, destPath, "", "")
}

// writeVerified streams r into destPath via a temp file, hashing while it
// writes. The rename happens only after the checksum matches, so a
// mismatch or short read never leaves partial content at the final path.
// An empty want places the content unconditionally.
func writeVerified(r io.Reader, destPath, algo, want string) error {
	tmpPath := destPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}

	w := io.Writer(f)
	var h hash.Hash
	if want != "" {
		h = newHash(algo)
		w = io.MultiWriter(f, h)
	}

	_, err = io.Copy(w, r)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", destPath, closeErr)
	}

	if want != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, want) {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: %s of %s is %s, want %s",
				ErrHashMismatch, algo, filepath.Base(destPath), got, want)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", destPath, err)
	}

	return nil
}

// preferredHash picks the strongest hash the entry carries.
func preferredHash(hashes map[string]string) (algo, want string) {
	if v := hashes["sha512"]; v != "" {
		return "sha512", v
	}
	if v := hashes["sha1"]; v != "" {
		return "sha1", v
	}
	return "", ""
}

func newHash(algo string) hash.Hash {
	if algo == "sha512" {
		return sha512.New()
	}
	return sha1.New()
}

// statusError marks an HTTP response code from a source.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// retryable reports whether another attempt against the same source could
// help. Client errors like 404 mean the source will never serve the file;
// everything else is treated as transient.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		default:
			return se.code >= 500
		}
	}
	return true
}
