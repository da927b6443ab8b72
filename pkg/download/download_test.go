package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zipBytes = []byte{0x50, 0x4b, 0x03, 0x04, 0x14, 0x00, 0x00, 0x00}

func newTestDownloader(retries int) *HTTPDownloader {
	return New(Options{
		MaxRetries:    retries,
		RetryDelay:    time.Millisecond,
		Timeout:       5 * time.Second,
		ValidateMagic: true,
	})
}

func TestDownloadSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/zip")
		w.Write(zipBytes)
	}))
	defer server.Close()

	var out bytes.Buffer
	d := New(Options{ValidateMagic: true, Out: &out})
	dest := filepath.Join(t.TempDir(), "downloaded", "php-7.0.4.zip")

	result, err := d.Download(context.Background(), server.URL+"/php-7.0.4.zip", dest)
	require.NoError(t, err)

	assert.Equal(t, int64(len(zipBytes)), result.Size)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, zipBytes, data)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
	assert.Contains(t, out.String(), "Downloaded php-7.0.4.zip (8 B)")
}

func TestDownloadNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "node.tar.gz")
	_, err := newTestDownloader(3).Download(context.Background(), server.URL+"/node.tar.gz", dest)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoFileExists(t, dest)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(zipBytes)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.zip")
	_, err := newTestDownloader(3).Download(context.Background(), server.URL+"/a.zip", dest)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestDownloader(2).Download(context.Background(), server.URL+"/a.zip", filepath.Join(t.TempDir(), "a.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadRejectsErrorPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<!DOCTYPE html><html><body>Login required</body></html>")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "node.tar.gz")
	_, err := newTestDownloader(3).Download(context.Background(), server.URL+"/node.tar.gz", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML content")
	assert.NoFileExists(t, dest)
}

func TestDownloadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d := New(Options{Timeout: 50 * time.Millisecond})
	_, err := d.Download(context.Background(), server.URL+"/slow.zip", filepath.Join(t.TempDir(), "slow.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDownloader(3).Download(ctx, server.URL+"/a.zip", filepath.Join(t.TempDir(), "a.zip"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchAppliesReplacements(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dist/index.json", r.URL.Path)
		fmt.Fprint(w, `[{"version":"v20.1.0"}]`)
	}))
	defer mirror.Close()

	d := New(Options{Replacements: map[string]string{"https://nodejs.org": mirror.URL}})
	data, err := d.Fetch(context.Background(), "https://nodejs.org/dist/index.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"version":"v20.1.0"}]`, string(data))
}
