package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/sdbv/internal/ctxlog"
)

// Fetcher loads the bytes stored at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// ErrTransport is matched by every *TransportError via errors.Is.
var ErrTransport = errors.New("transport error")

// TransportError reports a failure to retrieve a document. It is never
// retried automatically.
type TransportError struct {
	Location   string
	StatusCode int // HTTP status, 0 when not applicable
	Status     string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("could not load %s: %s", e.Location, e.Status)
	}
	return fmt.Sprintf("could not load %s: %v", e.Location, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true for any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// FileFetcher reads documents from the local filesystem.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Location: location, Err: err}
	}
	path := location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	ctxlog.FromContext(ctx).Debug("Reading file.", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TransportError{Location: location, Err: err}
	}
	return data, nil
}

// HTTPFetcher downloads documents with a shared *http.Client so TCP
// connections are reused across imports.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with a pooled transport.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}}
}

// Fetch implements Fetcher. Any status below 200 or at/above 400 is a failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx).With("url", location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &TransportError{Location: location, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger.Debug("Sending request.")
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Location: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &TransportError{
			Location:   location,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Location: location, Err: err}
	}
	logger.Debug("Response received.", "bytes", len(data))
	return data, nil
}

// Router dispatches to File or HTTP depending on the location's scheme.
type Router struct {
	File Fetcher
	HTTP Fetcher
}

// NewRouter returns the default fetcher used by the application.
func NewRouter(timeout time.Duration) *Router {
	return &Router{File: FileFetcher{}, HTTP: NewHTTPFetcher(timeout)}
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	if IsRemote(location) {
		return r.HTTP.Fetch(ctx, location)
	}
	return r.File.Fetch(ctx, location)
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Resolve returns the location of ref relative to the document at base.
// URLs are joined per RFC 3986; file paths are joined against base's directory.
func Resolve(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err == nil && refURL.Scheme != "" && len(refURL.Scheme) > 1 {
		return ref
	}
	if IsRemote(base) {
		baseURL, err := url.Parse(base)
		if err != nil || refURL == nil {
			return ref
		}
		return baseURL.ResolveReference(refURL).String()
	}
	if strings.HasPrefix(base, "file://") {
		if u, err := url.Parse(base); err == nil {
			base = u.Path
		}
	}
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(filepath.Dir(base), ref)
}
