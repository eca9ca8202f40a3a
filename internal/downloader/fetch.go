package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	errs "mediagrab/pkg/errors"
)

// Fetcher streams one URL to disk.
type Fetcher interface {
	Fetch(ctx context.Context, url, path string) (int64, error)
}

// HTTPFetcher downloads media over plain HTTP. Extra headers carry the
// session cookie for origins that gate media behind authentication.
type HTTPFetcher struct {
	client  *http.Client
	headers map[string]string
}

// NewHTTPFetcher creates a fetcher with the given per-request headers.
func NewHTTPFetcher(timeout time.Duration, headers map[string]string) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Fetch streams the body to a temporary file next to the target and renames
// it into place once the full body is received. A truncated or cancelled
// transfer removes the temporary file, so a partial body never appears at
// the final path.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &errs.Error{
			Type:    errs.TypeForStatusCode(resp.StatusCode),
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create media directory", err)
	}

	tempPath := path + ".part"
	file, err := os.Create(tempPath)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create temporary file", err)
	}

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		file.Close()
		os.Remove(tempPath)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, "transfer interrupted", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to sync media file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to close media file", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to move media file into place", err)
	}

	return written, nil
}
