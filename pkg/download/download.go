package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/e5r/dev/pkg/config"
	"github.com/e5r/dev/pkg/util"
)

// MaxRedirects is the maximum number of HTTP redirects followed per request
const MaxRedirects = 10

// UserAgent is sent with every request
const UserAgent = "dev/1.0 (https://github.com/e5r/dev)"

// Downloader fetches remote artifacts. Every call blocks until the transfer
// completes or fails.
type Downloader interface {
	// Download writes the resource at url to dest
	Download(ctx context.Context, url, dest string) (*Result, error)
	// Fetch returns the resource at url
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Result contains information about a completed download
type Result struct {
	Size        int64
	ContentType string
	StatusCode  int
	FinalURL    string
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configures an HTTPDownloader
type Options struct {
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration // per attempt
	Replacements  map[string]string
	ValidateMagic bool
	Client        *http.Client
	Out           io.Writer // progress output, nil for none
}

// HTTPDownloader downloads over HTTP with retries, per-attempt timeouts and
// URL replacements
type HTTPDownloader struct {
	opts     Options
	client   *http.Client
	replacer *URLReplacer
}

var _ Downloader = (*HTTPDownloader)(nil)

// New creates a downloader from explicit options
func New(opts Options) *HTTPDownloader {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	replacer := NewURLReplacer(opts.Replacements)
	for _, err := range replacer.Validate() {
		util.Logger().Warn("ignoring URL replacement", "err", err)
	}

	return &HTTPDownloader{opts: opts, client: client, replacer: replacer}
}

// FromConfig creates a downloader configured from the dev configuration
func FromConfig(cfg *config.Config, out io.Writer) *HTTPDownloader {
	return New(Options{
		MaxRetries:    cfg.Download.Retries,
		RetryDelay:    cfg.RetryDelay(),
		Timeout:       cfg.DownloadTimeout(),
		Replacements:  cfg.URLReplacements,
		ValidateMagic: true,
		Out:           out,
	})
}

// Download writes the resource at url to dest through a temporary sibling file
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) (*Result, error) {
	url = d.rewrite(url)

	var result *Result
	err := d.retry(ctx, url, func(attemptCtx context.Context) error {
		var err error
		result, err = d.attemptDownload(attemptCtx, url, dest)
		return err
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(d.opts.Out, "  📦 Downloaded %s (%s)\n", filepath.Base(dest), humanize.Bytes(uint64(result.Size)))
	return result, nil
}

// Fetch returns the resource at url held in memory
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	url = d.rewrite(url)

	var data []byte
	err := d.retry(ctx, url, func(attemptCtx context.Context) error {
		resp, err := d.get(attemptCtx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response from %s: %w", url, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.LogVerbose("Fetched %s (%s)", url, humanize.Bytes(uint64(len(data))))
	return data, nil
}

func (d *HTTPDownloader) rewrite(url string) string {
	replaced := d.replacer.Apply(url)
	if replaced != url {
		fmt.Fprintf(d.opts.Out, "  🔄 Using URL replacement: %s\n", replaced)
	}
	return replaced
}

// retry runs attempt up to MaxRetries+1 times with a linear backoff
func (d *HTTPDownloader) retry(ctx context.Context, url string, attempt func(context.Context) error) error {
	var lastErr error

	for i := 0; i <= d.opts.MaxRetries; i++ {
		if i > 0 {
			delay := d.opts.RetryDelay * time.Duration(i)
			fmt.Fprintf(d.opts.Out, "  🔄 Retry attempt %d/%d after %v...\n", i, d.opts.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("download of %s cancelled: %w", url, ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := d.attemptContext(ctx)
		err := attempt(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		util.LogVerbose("Download attempt %d of %s failed: %v", i+1, url, err)

		if ctx.Err() != nil || !retryable(err) {
			return err
		}
	}

	return fmt.Errorf("download failed after %d attempts: %w", d.opts.MaxRetries+1, lastErr)
}

func (d *HTTPDownloader) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.Timeout > 0 {
		return context.WithTimeout(ctx, d.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var validationErr *validationError
	return !errors.As(err, &validationErr)
}

type validationError struct {
	err error
}

func (e *validationError) Error() string { return "file validation failed: " + e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// attemptDownload performs a single download attempt
func (d *HTTPDownloader) attemptDownload(ctx context.Context, url, dest string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	fmt.Fprintf(d.opts.Out, "  🌐 Downloading %s\n", url)

	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	written, err := io.Copy(tempFile, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return nil, fmt.Errorf("download incomplete: got %d of %d bytes", written, resp.ContentLength)
	}

	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	if d.opts.ValidateMagic {
		if err := validateFileFormat(tempFile.Name(), resp.Request.URL.Path); err != nil {
			return nil, &validationError{err: err}
		}
	}

	if err := os.Rename(tempFile.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to move file to destination: %w", err)
	}

	return &Result{
		Size:        written,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}
