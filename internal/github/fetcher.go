package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultBasePath is the repository directory materials are read from.
const DefaultBasePath = "pdfs"

const (
	// DefaultRequestRate throttles API calls ahead of GitHub's own limits.
	DefaultRequestRate = 2.0

	// DefaultRequestBurst is the number of calls allowed back to back.
	DefaultRequestBurst = 5
)

// materialExts are the file types the ingestion pipeline can read.
var materialExts = map[string]bool{".pdf": true, ".md": true}

// Material is a study file found in the repository.
type Material struct {
	Path string // relative to the base path
	Size int
	SHA  string
}

// FetchResult reports a download run.
type FetchResult struct {
	Downloaded []string
	Skipped    []string // already present with the same size
	Failed     []FailedMaterial
}

// FailedMaterial records a file that could not be downloaded.
type FailedMaterial struct {
	Path   string
	Reason string
}

// Fetcher handles fetching study material from a GitHub repository.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewFetcher creates a new material fetcher.
func NewFetcher(client *Client, owner, repo, basePath string, logger *slog.Logger) *Fetcher {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRequestRate), DefaultRequestBurst),
		logger:   logger,
	}
}

// SetRequestRate replaces the API call throttle. rate.Inf disables it.
func (f *Fetcher) SetRequestRate(limit rate.Limit, burst int) {
	f.limiter = rate.NewLimiter(limit, burst)
}

// ListMaterials recursively lists the PDF and markdown files under the base path.
func (f *Fetcher) ListMaterials(ctx context.Context) ([]Material, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]Material, error) {
	var out []Material

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting to list %s: %w", fullPath, err)
	}
	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if materialExts[strings.ToLower(path.Ext(name))] {
				out = append(out, Material{Path: itemRelPath, Size: item.GetSize(), SHA: item.GetSHA()})
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}

	return out, nil
}

// Download writes one material into destDir under its base name and
// returns the written path.
func (f *Fetcher) Download(ctx context.Context, m Material, destDir string) (string, error) {
	fullPath := path.Join(f.basePath, m.Path)

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting to download %s: %w", fullPath, err)
	}
	rc, _, err := f.client.Repositories.DownloadContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()

	dest := filepath.Join(destDir, path.Base(m.Path))
	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return dest, nil
}

// Sync downloads every material not already present in destDir. A file
// with the same name and size is skipped. Per-file failures are collected
// and the run continues.
func (f *Fetcher) Sync(ctx context.Context, destDir string) (*FetchResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	materials, err := f.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Listed materials", "owner", f.owner, "repo", f.repo, "path", f.basePath, "count", len(materials))

	result := &FetchResult{}
	for _, m := range materials {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		existing := filepath.Join(destDir, path.Base(m.Path))
		if info, err := os.Stat(existing); err == nil && info.Size() == int64(m.Size) {
			result.Skipped = append(result.Skipped, m.Path)
			continue
		}

		dest, err := f.Download(ctx, m, destDir)
		if err != nil {
			f.logger.Warn("Failed to download material", "path", m.Path, "error", err)
			result.Failed = append(result.Failed, FailedMaterial{Path: m.Path, Reason: err.Error()})
			continue
		}
		f.logger.Debug("Downloaded material", "path", m.Path, "dest", dest)
		result.Downloaded = append(result.Downloaded, dest)
	}
	return result, nil
}
