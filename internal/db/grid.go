package db

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/sdbv/internal/jsonpath"
	"github.com/vk/sdbv/internal/jsonstore"
	"github.com/vk/sdbv/internal/sdbvexpr"
)

// Grid is one named grid of a Database.
type Grid struct {
	id     string
	view   *jsonstore.View
	db     *Database
	parser *sdbvexpr.Parser
	memo   memo
}

func newGrid(id string, view *jsonstore.View, db *Database) *Grid {
	return &Grid{id: id, view: view, db: db, parser: sdbvexpr.NewParser(nil)}
}

// ID returns the grid key inside the database.
func (g *Grid) ID() string { return g.id }

// Database returns the owning database.
func (g *Grid) Database() *Database { return g.db }

// Parser returns the template parser shared by every template of the grid.
func (g *Grid) Parser() *sdbvexpr.Parser { return g.parser }

// Name returns the grid name, "" when absent or invalid.
func (g *Grid) Name(ctx context.Context) (string, error) {
	return readOnce(ctx, &g.memo, g.view, "name", func(ctx context.Context, value any, found bool, at string) (string, error) {
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

// Description returns the grid description, nil when absent.
func (g *Grid) Description(ctx context.Context) (Description, error) {
	return readOnce(ctx, &g.memo, g.view, "description", func(ctx context.Context, value any, found bool, at string) (Description, error) {
		if !found {
			return nil, nil
		}
		return parseDescription(logger(ctx), at, value), nil
	})
}

// ColumnsRange returns the column coordinates. It is required.
func (g *Grid) ColumnsRange(ctx context.Context) (Range, error) {
	return g.rangeOf(ctx, "colsRange")
}

// RowsRange returns the row coordinates. It is required.
func (g *Grid) RowsRange(ctx context.Context) (Range, error) {
	return g.rangeOf(ctx, "rowsRange")
}

// ColumnHeaders returns one label per column, or nil when the grid has no
// usable column headers.
func (g *Grid) ColumnHeaders(ctx context.Context) ([]string, error) {
	r, err := g.ColumnsRange(ctx)
	if err != nil {
		return nil, err
	}
	return g.headers(ctx, "colHeaders", r, "col", "x")
}

// RowHeaders returns one label per row, or nil when the grid has no usable
// row headers.
func (g *Grid) RowHeaders(ctx context.Context) ([]string, error) {
	r, err := g.RowsRange(ctx)
	if err != nil {
		return nil, err
	}
	return g.headers(ctx, "rowHeaders", r, "row", "y")
}

// Cells returns the grid's cell table after checking that it exists. The
// table data itself is loaded by Cells.InitData.
func (g *Grid) Cells(ctx context.Context) (*Cells, error) {
	return memoize(ctx, &g.memo, "cells", func(ctx context.Context) (*Cells, error) {
		if err := g.loadParserConstants(ctx); err != nil {
			return nil, err
		}
		view := g.view.View(jsonpath.Keys("cells"))
		if _, err := view.Get(ctx, nil, false); err != nil {
			return nil, err
		}
		return newCells(g, view), nil
	})
}

// loadParserConstants defines the range constants visible to every
// template of the grid. It runs once.
func (g *Grid) loadParserConstants(ctx context.Context) error {
	_, err := memoize(ctx, &g.memo, "\x00consts", func(ctx context.Context) (bool, error) {
		cols, err := g.ColumnsRange(ctx)
		if err != nil {
			return false, err
		}
		rows, err := g.RowsRange(ctx)
		if err != nil {
			return false, err
		}
		for name, v := range map[string]int{
			"firstCol": cols.First,
			"lastCol":  cols.Last,
			"colsNum":  cols.Len(),
			"firstRow": rows.First,
			"lastRow":  rows.Last,
			"rowsNum":  rows.Len(),
		} {
			g.parser.SetConst(name, float64(v))
		}
		return true, nil
	})
	return err
}

func (g *Grid) rangeOf(ctx context.Context, key string) (Range, error) {
	return readOnce(ctx, &g.memo, g.view, key, func(ctx context.Context, value any, found bool, at string) (Range, error) {
		if !found {
			return Range{}, invalidData(at, "value", nil, "Invalid or missing value", "Number", "Array")
		}
		switch v := value.(type) {
		case float64:
			n, ok := asInt(v)
			if !ok {
				return Range{}, invalidData(at, "value", value, "Not an integer", "Number")
			}
			return NewRange(n), nil
		case []any:
			if len(v) == 0 {
				return Range{}, invalidData(at, "value", value, "Empty range", "[first]", "[first, last]")
			}
			first, ok := v[0].(float64)
			n, isInt := asInt(first)
			if !ok || !isInt {
				return Range{}, invalidData(at+"[0]", "value", v[0], "", "Number")
			}
			if len(v) > 2 {
				warnValue(logger(ctx), at, "Too many values in an array. Expected 1 or 2.", value)
			}
			if len(v) == 1 {
				return NewRange(n), nil
			}
			last, ok := v[1].(float64)
			m, isInt := asInt(last)
			if !ok || !isInt {
				warnValue(logger(ctx), at+"[1]", "Invalid value.", v[1])
				return NewRange(n), nil
			}
			return Range{First: n, Last: m}, nil
		}
		return Range{}, invalidType(at, value, "Number", "Array")
	})
}

func (g *Grid) headers(ctx context.Context, key string, r Range, coordVar, indexVar string) ([]string, error) {
	return readOnce(ctx, &g.memo, g.view, key, func(ctx context.Context, value any, found bool, at string) ([]string, error) {
		if !found {
			return nil, nil
		}
		log := logger(ctx)
		switch v := value.(type) {
		case string:
			if err := g.loadParserConstants(ctx); err != nil {
				return nil, err
			}
			tpl, err := g.parser.Parse(v, func(template, expr string, err error) {
				log.Warn("Invalid expression in template.", "path", at, "expr", expr, "template", template, "error", err)
			})
			if err != nil {
				return nil, err
			}
			reported := false
			onEval := func(expr string, err error) {
				if !reported {
					reported = true
					log.Warn("Invalid expression.", "path", at, "expr", expr, "error", err)
				}
			}
			out := make([]string, r.Len())
			for i := range out {
				s, err := tpl.String(map[string]any{coordVar: float64(r.At(i)), indexVar: float64(i)}, onEval)
				if err != nil {
					return nil, err
				}
				out[i] = s
			}
			return out, nil
		case []any:
			if len(v) < r.Len() {
				return nil, invalidData(at, "array length", float64(len(v)), fmt.Sprintf("%d < %d", len(v), r.Len()))
			}
			if len(v) > r.Len() {
				log.Warn("Invalid array length, extra headers ignored.", "path", at, "length", len(v), "expected", r.Len())
				v = v[:r.Len()]
			}
			out := make([]string, len(v))
			for i, h := range v {
				switch h.(type) {
				case string, float64:
					out[i] = sdbvexpr.Format(h)
				default:
					warnValue(log, fmt.Sprintf("%s[%d]", at, i), "Invalid value.", h)
					return nil, nil
				}
			}
			return out, nil
		}
		warnValue(log, at, "Invalid value.", value)
		return nil, nil
	})
}

func asInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
