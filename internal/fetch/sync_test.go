package fetch

import (
	"context"
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

func newTestSyncer(dir string) *Syncer {
	return NewSyncer(dir, HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}, FTPOptions{})
}

func TestSyncer_DownloadsAndKeepsETag(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("gemeinde;mean_score\nZug;4.3\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := newTestSyncer(dir)
	datasets := []Dataset{
		{Name: "ÖV-Güteklassen", URL: srv.URL + "/oev.csv", File: "oev_qualitaet_gemeinden.csv"},
	}

	results, err := s.Sync(context.Background(), datasets)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, int64(28), results[0].Bytes)

	data, err := os.ReadFile(filepath.Join(dir, "oev_qualitaet_gemeinden.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Zug;4.3")

	etag, err := os.ReadFile(filepath.Join(dir, "oev_qualitaet_gemeinden.csv.etag"))
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, string(etag))

	// Second sync sends the stored ETag and skips the download.
	results, err = s.Sync(context.Background(), datasets)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSyncer_RedownloadsWhenFileMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A stale sidecar without its dataset must not suppress the download.
		assert.Empty(t, r.Header.Get("If-None-Match"))
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stops.csv.etag"), []byte(`"v1"`), 0o644))

	s := newTestSyncer(dir)
	results, err := s.Sync(context.Background(), []Dataset{
		{Name: "Betriebspunkte", URL: srv.URL + "/stops.csv", File: "stops.csv"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, int64(5), results[0].Bytes)
}

func TestSyncer_MultipleDatasets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data for " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := newTestSyncer(dir)
	results, err := s.Sync(context.Background(), []Dataset{
		{Name: "ÖV-Güteklassen", URL: srv.URL + "/oev.csv", File: "oev.csv"},
		{Name: "Betriebspunkte", URL: srv.URL + "/stops.csv", File: "stops.csv"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		_, err := os.Stat(res.Path)
		assert.NoError(t, err)
	}
}

func TestSyncer_StopsAtFirstFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := newTestSyncer(dir)
	results, err := s.Sync(context.Background(), []Dataset{
		{Name: "Erster", URL: srv.URL + "/good.csv", File: "good.csv"},
		{Name: "Zweiter", URL: srv.URL + "/bad.csv", File: "bad.csv"},
		{Name: "Dritter", URL: srv.URL + "/never.csv", File: "never.csv"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync dataset Zweiter")
	require.Len(t, results, 1)
	assert.Equal(t, "Erster", results[0].Dataset.Name)
}

func TestSyncer_SchemeDispatch(t *testing.T) {
	s := newTestSyncer(t.TempDir())

	_, err := s.syncOne(context.Background(), Dataset{Name: "X", URL: "gopher://x/y", File: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported url scheme")

	_, err = s.syncOne(context.Background(), Dataset{Name: "X", File: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no url")

	_, err = s.syncOne(context.Background(), Dataset{Name: "X", URL: "https://host/y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target file")
}
