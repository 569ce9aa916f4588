package gaia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lihan0705/lead-agent/logging"
)

const (
	datasetRepo  = "gaia-benchmark/GAIA"
	hfTreeURL    = "https://huggingface.co/api/datasets/%s/tree/main/2023/%s"
	hfResolveURL = "https://huggingface.co/datasets/%s/resolve/main/%s"

	listingTimeout = 30 * time.Second
)

// DownloadOptions configures the dataset snapshot download.
type DownloadOptions struct {
	Split  string // Dataset split to fetch, defaults to DefaultSplit
	Token  string // Hugging Face access token; the dataset is gated
	Logger logging.Logger
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DownloadDataset mirrors one split of the GAIA dataset into dir, keeping
// the repository layout (2023/<split>/...). Files already present with the
// expected size are skipped, so re-runs only fetch what is missing.
func DownloadDataset(ctx context.Context, dir string, optFns ...func(*DownloadOptions)) error {
	opts := DownloadOptions{Split: DefaultSplit, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := resty.New().
		SetTimeout(listingTimeout).
		SetHeader("User-Agent", "superagent-gaia")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	var entries []treeEntry
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(fmt.Sprintf(hfTreeURL, datasetRepo, opts.Split))
	if err != nil {
		return fmt.Errorf("failed to list dataset files: %w", err)
	}
	switch code := resp.StatusCode(); {
	case code == 401 || code == 403:
		return fmt.Errorf("dataset listing returned status %d: GAIA is gated, accept its terms on Hugging Face and supply an access token", code)
	case code != 200:
		return fmt.Errorf("dataset listing returned status %d", code)
	}

	// File transfers can outlive any sensible request timeout, so the
	// fetch client relies on retries and context cancellation instead.
	fetcher := resty.New().
		SetTimeout(0).
		SetRetryCount(3).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := r.StatusCode()
			return code == 429 || (code >= 500 && code <= 504)
		}).
		SetHeader("User-Agent", "superagent-gaia")
	if opts.Token != "" {
		fetcher.SetAuthToken(opts.Token)
	}

	fetched := 0
	for _, entry := range entries {
		if entry.Type != "file" {
			continue
		}

		dest := filepath.Join(dir, filepath.FromSlash(entry.Path))
		if info, err := os.Stat(dest); err == nil && info.Size() == entry.Size {
			opts.Logger.Debug("gaia.download.skipped", "path", entry.Path)
			continue
		}

		opts.Logger.Info("gaia.download.file", "path", entry.Path, "size", entry.Size)
		if err := fetchFile(ctx, fetcher, fmt.Sprintf(hfResolveURL, datasetRepo, entry.Path), dest); err != nil {
			return fmt.Errorf("failed to download %s: %w", entry.Path, err)
		}
		fetched++
	}

	opts.Logger.Info("gaia.download.completed",
		"dir", dir,
		"split", opts.Split,
		"fetched", fetched,
		"listed", len(entries))
	return nil
}

// fetchFile downloads into a temp file and renames it into place, so an
// interrupted transfer never leaves a truncated file behind.
func fetchFile(ctx context.Context, client *resty.Client, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".gaia-download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			_ = os.Remove(tmpPath)
		}
	}()

	resp, err := client.R().
		SetContext(ctx).
		SetOutput(tmpPath).
		Get(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	return os.Rename(tmpPath, dest)
}
