package db

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/vk/sdbv/internal/jsonpath"
	"github.com/vk/sdbv/internal/jsonstore"
	"github.com/vk/sdbv/internal/sdbvexpr"
)

// DefaultGridID identifies the default grid.
const DefaultGridID = ""

// BuildSource names one input the database was built from. URL is empty
// when the source has no link.
type BuildSource struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// buildDateLayouts are tried in order for string build dates.
var buildDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Database is the root of a loaded document.
type Database struct {
	view  *jsonstore.View
	memo  memo
	grids memo
}

// New creates a database reading from r. Nothing is loaded until a getter
// is called.
func New(store *jsonstore.Store) *Database {
	return &Database{view: store.View(nil)}
}

// Location returns the location of the root document.
func (d *Database) Location() string { return d.view.Store().Location() }

// Name returns the database name, "" when absent.
func (d *Database) Name(ctx context.Context) (string, error) {
	return readOnce(ctx, &d.memo, d.view, "name", func(ctx context.Context, value any, found bool, at string) (string, error) {
		if !found {
			return "", nil
		}
		if s, ok := value.(string); ok {
			return s, nil
		}
		warnValue(logger(ctx), at, "Invalid value.", value)
		return "", nil
	})
}

// Version returns the database version, "" when absent. Numeric versions
// are formatted as text.
func (d *Database) Version(ctx context.Context) (string, error) {
	return readOnce(ctx, &d.memo, d.view, "version", func(ctx context.Context, value any, found bool, at string) (string, error) {
		if !found {
			return "", nil
		}
		switch v := value.(type) {
		case string, float64:
			return sdbvexpr.Format(v), nil
		}
		warnValue(logger(ctx), at, "Invalid value.", value)
		return "", nil
	})
}

// BuildDate returns the build timestamp, the zero time when absent or
// invalid. Strings are ISO 8601 dates, numbers are UNIX milliseconds.
func (d *Database) BuildDate(ctx context.Context) (time.Time, error) {
	return readOnce(ctx, &d.memo, d.view, "buildDate", func(ctx context.Context, value any, found bool, at string) (time.Time, error) {
		if !found {
			return time.Time{}, nil
		}
		switch v := value.(type) {
		case string:
			for _, layout := range buildDateLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t, nil
				}
			}
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return time.UnixMilli(int64(v)).UTC(), nil
			}
		default:
			warnValue(logger(ctx), at, "Invalid value.", value)
			return time.Time{}, nil
		}
		warnValue(logger(ctx), at, "Invalid date. Expected UNIX timestamp (number) or date in ISO 8601 format (string).", value)
		return time.Time{}, nil
	})
}

// BuildSources returns the sources the database was built from.
func (d *Database) BuildSources(ctx context.Context) ([]BuildSource, error) {
	return readOnce(ctx, &d.memo, d.view, "buildSources", func(ctx context.Context, value any, found bool, at string) ([]BuildSource, error) {
		out := []BuildSource{}
		if !found {
			return out, nil
		}
		log := logger(ctx)
		addObject := func(obj map[string]any) {
			for _, k := range sortedKeys(obj) {
				switch url := obj[k].(type) {
				case string:
					out = append(out, BuildSource{Text: k, URL: url})
				case nil:
					out = append(out, BuildSource{Text: k})
				default:
					warnValue(log, at, "Invalid value.", url)
				}
			}
		}
		switch v := value.(type) {
		case string:
			out = append(out, BuildSource{Text: v})
		case map[string]any:
			addObject(v)
		case []any:
			for _, item := range v {
				switch it := item.(type) {
				case string:
					out = append(out, BuildSource{Text: it})
				case map[string]any:
					addObject(it)
				default:
					warnValue(log, at, "Invalid value.", item)
				}
			}
		default:
			warnValue(log, at, "Invalid value.", value)
		}
		return out, nil
	})
}

// Description returns the database description, nil when absent.
func (d *Database) Description(ctx context.Context) (Description, error) {
	return readOnce(ctx, &d.memo, d.view, "description", func(ctx context.Context, value any, found bool, at string) (Description, error) {
		if !found {
			return nil, nil
		}
		return parseDescription(logger(ctx), at, value), nil
	})
}

// GridsList returns the ids of all grids in lexical order. It fails with
// ErrInvalidData when the grid index is missing or not an object.
func (d *Database) GridsList(ctx context.Context) ([]string, error) {
	return memoize(ctx, &d.memo, "grids", func(ctx context.Context) ([]string, error) {
		p := jsonpath.Keys("grids")
		keys, ok, err := d.view.Keys(ctx, p)
		if err != nil && !errors.Is(err, jsonstore.ErrNotFound) {
			return nil, err
		}
		if err != nil || !ok {
			return nil, invalidData(d.view.Describe(p), "value", nil, "Invalid or missing grid index", "Object")
		}
		return keys, nil
	})
}

// Grid returns the grid with the given id, creating it on first use. It
// fails with ErrInvalidData when the entry is missing or not an object.
func (d *Database) Grid(ctx context.Context, id string) (*Grid, error) {
	return memoize(ctx, &d.grids, id, func(ctx context.Context) (*Grid, error) {
		p := jsonpath.Keys("grids", id)
		value, err := d.view.Get(ctx, p, false)
		if err != nil && !errors.Is(err, jsonstore.ErrNotFound) {
			return nil, err
		}
		if _, ok := value.(map[string]any); err != nil || !ok {
			return nil, invalidData(d.view.Describe(p), "value", value, "Invalid or missing grid", "Object")
		}
		return newGrid(id, d.view.View(p), d), nil
	})
}

// ResolveGrid returns the grid with the given id, falling back to the
// default grid when the id is not listed.
func (d *Database) ResolveGrid(ctx context.Context, id string) (*Grid, error) {
	ids, err := d.GridsList(ctx)
	if err != nil {
		return nil, err
	}
	for _, known := range ids {
		if known == id {
			return d.Grid(ctx, id)
		}
	}
	logger(ctx).Info("Invalid grid name, using the default grid.", "grid", id)
	return d.Grid(ctx, DefaultGridID)
}
