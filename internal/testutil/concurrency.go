package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/sdbv/internal/fetch"
)

// MapFetcher is an in-memory fetch.Fetcher that counts how many times each
// location was requested. It is safe for concurrent use.
type MapFetcher struct {
	mu     sync.Mutex
	files  map[string]string
	counts map[string]int
	fail   map[string]error

	// Gate, when non-nil, blocks every Fetch until it is closed. Tests use
	// it to pile up concurrent callers behind one in-flight load.
	Gate chan struct{}
}

// NewMapFetcher creates a fetcher serving the given location->content map.
func NewMapFetcher(files map[string]string) *MapFetcher {
	cp := make(map[string]string, len(files))
	for k, v := range files {
		cp[k] = v
	}
	return &MapFetcher{files: cp, counts: map[string]int{}, fail: map[string]error{}}
}

// FailWith makes every fetch of location return err.
func (f *MapFetcher) FailWith(location string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[location] = err
}

// Fetch implements fetch.Fetcher.
func (f *MapFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	f.mu.Lock()
	f.counts[location]++
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &fetch.TransportError{Location: location, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[location]; err != nil {
		return nil, &fetch.TransportError{Location: location, Err: err}
	}
	content, ok := f.files[location]
	if !ok {
		return nil, &fetch.TransportError{Location: location, Err: fmt.Errorf("no such document")}
	}
	return []byte(content), nil
}

// Count returns how many times location has been fetched.
func (f *MapFetcher) Count(location string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[location]
}

// Total returns the number of fetches across all locations.
func (f *MapFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.counts {
		n += c
	}
	return n
}
