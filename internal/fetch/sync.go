package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Dataset describes one remotely synced source file.
type Dataset struct {
	Name string `yaml:"name" mapstructure:"name"` // display name
	URL  string `yaml:"url" mapstructure:"url"`
	File string `yaml:"file" mapstructure:"file"` // filename under the data directory
}

// SyncResult reports the outcome for one dataset.
type SyncResult struct {
	Dataset Dataset
	Path    string
	Bytes   int64
	Skipped bool // unchanged since the last sync
}

// Syncer downloads datasets into a local data directory. HTTP sources
// keep an ETag sidecar next to the file so unchanged datasets are not
// downloaded again.
type Syncer struct {
	dir  string
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewSyncer creates a Syncer writing into dir.
func NewSyncer(dir string, httpOpts HTTPOptions, ftpOpts FTPOptions) *Syncer {
	return &Syncer{
		dir:  dir,
		http: NewHTTPFetcher(httpOpts),
		ftp:  NewFTPFetcher(ftpOpts),
	}
}

// Sync downloads every dataset in order and stops at the first failure.
func (s *Syncer) Sync(ctx context.Context, datasets []Dataset) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(datasets))
	for _, d := range datasets {
		res, err := s.syncOne(ctx, d)
		if err != nil {
			return results, eris.Wrapf(err, "sync dataset %s", d.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Syncer) syncOne(ctx context.Context, d Dataset) (SyncResult, error) {
	if d.URL == "" {
		return SyncResult{}, eris.Errorf("dataset %s has no url", d.Name)
	}
	if d.File == "" {
		return SyncResult{}, eris.Errorf("dataset %s has no target file", d.Name)
	}
	target := filepath.Join(s.dir, d.File)
	res := SyncResult{Dataset: d, Path: target}

	switch {
	case strings.HasPrefix(d.URL, "http://"), strings.HasPrefix(d.URL, "https://"):
		return s.syncHTTP(ctx, d, res)
	case strings.HasPrefix(d.URL, "ftp://"):
		n, err := s.ftp.DownloadToFile(ctx, d.URL, res.Path)
		if err != nil {
			return res, err
		}
		res.Bytes = n
		return res, nil
	default:
		return res, eris.Errorf("unsupported url scheme in %q", d.URL)
	}
}

// syncHTTP downloads over HTTP unless the stored ETag still matches.
func (s *Syncer) syncHTTP(ctx context.Context, d Dataset, res SyncResult) (SyncResult, error) {
	etag := readETag(res.Path)

	body, newETag, changed, err := s.http.DownloadIfChanged(ctx, d.URL, etag)
	if err != nil {
		return res, err
	}
	if !changed {
		zap.L().Info("dataset unchanged, skipping",
			zap.String("dataset", d.Name),
			zap.String("etag", etag))
		res.Skipped = true
		return res, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(res.Path, body)
	if err != nil {
		return res, err
	}
	res.Bytes = n

	if newETag != "" {
		if err := os.WriteFile(etagPath(res.Path), []byte(newETag), 0o644); err != nil {
			zap.L().Warn("dataset etag sidecar write failed",
				zap.String("dataset", d.Name),
				zap.Error(err))
		}
	}
	return res, nil
}

func etagPath(path string) string {
	return path + ".etag"
}

// readETag returns the stored ETag for path. A missing or unreadable
// sidecar just forces a full download. The sidecar is only honored
// while the dataset file itself still exists.
func readETag(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	data, err := os.ReadFile(etagPath(path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
