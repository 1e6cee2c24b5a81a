// Package gridadapter presents a db.Grid as a gridview.Model.
package gridadapter

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/gridview"
)

// Field names read from each record.
const (
	FieldColumn = "col"
	FieldRow    = "row"
	FieldWidth  = "width"
	FieldHeight = "height"
	FieldColor  = "color"
)

// Model is a loaded grid ready for rendering.
type Model struct {
	grid       *db.Grid
	cells      *db.Cells
	columns    db.Range
	rows       db.Range
	colHeaders []string
	rowHeaders []string
	logger     *slog.Logger
}

var _ gridview.Model = (*Model)(nil)

// Load reads the ranges, headers and cells table of g.
func Load(ctx context.Context, g *db.Grid) (*Model, error) {
	columns, err := g.ColumnsRange(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := g.RowsRange(ctx)
	if err != nil {
		return nil, err
	}
	colHeaders, err := g.ColumnHeaders(ctx)
	if err != nil {
		return nil, err
	}
	rowHeaders, err := g.RowHeaders(ctx)
	if err != nil {
		return nil, err
	}
	cells, err := g.Cells(ctx)
	if err != nil {
		return nil, err
	}
	if err := cells.InitData(ctx); err != nil {
		return nil, fmt.Errorf("loading cells of grid %q: %w", g.ID(), err)
	}
	return &Model{
		grid:       g,
		cells:      cells,
		columns:    columns,
		rows:       rows,
		colHeaders: orCoordinates(colHeaders, columns),
		rowHeaders: orCoordinates(rowHeaders, rows),
		logger:     ctxlog.FromContext(ctx),
	}, nil
}

func orCoordinates(headers []string, r db.Range) []string {
	if headers != nil {
		return headers
	}
	out := make([]string, 0, r.Len())
	for v := range r.All() {
		out = append(out, strconv.Itoa(v))
	}
	return out
}

// Grid returns the adapted grid.
func (m *Model) Grid() *db.Grid { return m.grid }

// Records returns the loaded cells table.
func (m *Model) Records() *db.Cells { return m.cells }

// ColumnsRange returns the column coordinates.
func (m *Model) ColumnsRange() db.Range { return m.columns }

// RowsRange returns the row coordinates.
func (m *Model) RowsRange() db.Range { return m.rows }

// ColumnCount returns the number of columns.
func (m *Model) ColumnCount() int { return m.columns.Len() }

// RowCount returns the number of rows.
func (m *Model) RowCount() int { return m.rows.Len() }

// ColumnHeaders returns one label per column.
func (m *Model) ColumnHeaders() []string { return m.colHeaders }

// RowHeaders returns one label per row.
func (m *Model) RowHeaders() []string { return m.rowHeaders }

// Cells yields one renderer cell per record with integral coordinates.
// Records without coordinates are logged and skipped.
func (m *Model) Cells() iter.Seq[gridview.Cell] {
	return func(yield func(gridview.Cell) bool) {
		for rec := range m.cells.All() {
			c, ok := m.Cell(rec)
			if !ok {
				m.logger.Warn("Cell without coordinates, skipped.", "id", rec.ID, "name", rec.Name())
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Cell converts one record. Coordinates are mapped through the grid ranges.
func (m *Model) Cell(rec *db.Record) (gridview.Cell, bool) {
	col, ok := rec.Int(FieldColumn)
	if !ok {
		return gridview.Cell{}, false
	}
	row, ok := rec.Int(FieldRow)
	if !ok {
		return gridview.Cell{}, false
	}
	w, _ := rec.Int(FieldWidth)
	h, _ := rec.Int(FieldHeight)
	return gridview.Cell{
		Column: m.columns.IndexOf(col),
		Row:    m.rows.IndexOf(row),
		Width:  max(w, 1),
		Height: max(h, 1),
		Text:   rec.Name(),
		Title:  rec.FullName(),
		Color:  colorOf(rec.Fields[FieldColor]),
		DataID: rec.ID,
	}, true
}

// CoordOf returns the renderer coordinate of a record.
func (m *Model) CoordOf(rec *db.Record) (gridview.Coord, bool) {
	c, ok := m.Cell(rec)
	return c.Coord(), ok
}

// FindByName returns the first record whose full display name is name.
func (m *Model) FindByName(name string) (*db.Record, bool) {
	for rec := range m.cells.All() {
		if rec.FullName() == name {
			return rec, true
		}
	}
	return nil, false
}

// colorOf maps a number (or an integer string) to a palette color and any
// other string to a literal color.
func colorOf(v any) gridview.Color {
	switch v := v.(type) {
	case float64:
		return gridview.PaletteColor(int(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return gridview.Color{}
		}
		if i, err := strconv.Atoi(s); err == nil {
			return gridview.PaletteColor(i)
		}
		return gridview.LiteralColor(s)
	}
	return gridview.Color{}
}
