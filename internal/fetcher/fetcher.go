// Package fetcher downloads data from HTTP sources with retry and
// per-host rate limiting.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// GetJSON fetches the URL and decodes the JSON response into v.
	GetJSON(ctx context.Context, url string, v any) error
}
