package db

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/jsonpath"
	"github.com/vk/sdbv/internal/jsonstore"
	"golang.org/x/sync/singleflight"
)

// memo caches the first successful result per key. Concurrent callers of a
// key share one computation; failures are not cached.
type memo struct {
	mu     sync.Mutex
	values map[string]any
	flight singleflight.Group
}

func (m *memo) lookup(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memo) store(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = v
}

func memoize[T any](ctx context.Context, m *memo, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := m.lookup(key); ok {
		return v.(T), nil
	}
	v, err, _ := m.flight.Do(key, func() (any, error) {
		if v, ok := m.lookup(key); ok {
			return v, nil
		}
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.store(key, res)
		return res, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// readOnce memoizes the interpretation of one top-level key of the view.
// parse receives found=false when the key is absent. The raw value is
// released from the store once it has been interpreted.
func readOnce[T any](ctx context.Context, m *memo, view *jsonstore.View, key string,
	parse func(ctx context.Context, value any, found bool, at string) (T, error)) (T, error) {
	return memoize(ctx, m, key, func(ctx context.Context) (T, error) {
		p := jsonpath.Keys(key)
		value, err := view.Get(ctx, p, true)
		found := true
		if errors.Is(err, jsonstore.ErrNotFound) {
			found, err = false, nil
		}
		if err != nil {
			var zero T
			return zero, err
		}
		res, err := parse(ctx, value, found, view.Describe(p))
		if err != nil {
			return res, err
		}
		if found {
			view.Dispose(ctx, p)
		}
		return res, nil
	})
}

func warnValue(logger *slog.Logger, at, msg string, value any) {
	logger.Warn(msg, "path", at, "value", jsonText(value))
}

func logger(ctx context.Context) *slog.Logger { return ctxlog.FromContext(ctx) }
