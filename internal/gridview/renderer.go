package gridview

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/scheduler"
)

const (
	// DefaultMargin is the number of extra tiles kept bound on each side of
	// the viewport.
	DefaultMargin = 4
	// DefaultPoolSurplus is how many tiles above capacity the pool keeps
	// before destroying any.
	DefaultPoolSurplus = 128
)

// State is the renderer lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateConfiguring
	StateInteractive
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateInteractive:
		return "interactive"
	}
	return "empty"
}

// ActiveCell describes the highlighted coordinate. HasData is false when no
// cell starts at the coordinate.
type ActiveCell struct {
	Coord
	DataID  int
	HasData bool
}

// Options configures a Renderer. Zero values select defaults.
type Options struct {
	Margin      int
	PoolSurplus int
	Minimap     Minimap
	// OnActiveCellChanged is called with the new active cell, or nil when
	// the active cell is cleared.
	OnActiveCellChanged func(cell *ActiveCell)
}

// Renderer binds pooled tiles to the visible part of a Model.
//
// Event methods (SetModel, ViewportChanged, SetActiveCell, ClearActiveCell)
// only enqueue work; it runs when the queue is stepped. Inspection methods
// must be called from the goroutine that steps the queue.
type Renderer struct {
	host   Host
	queue  *scheduler.Queue
	opts   Options
	logger *slog.Logger

	state      State
	model      Model
	columns    int
	rows       int
	cells      []Cell
	cellAt     map[Coord]int
	colHeaders []Header
	rowHeaders []Header
	geom       geometry
	pool       *pool
	visible    span
	active     *Coord

	// reach is the largest cell span, minus one, on each axis.
	reach Coord

	// pending holds the rebinding work of the latest viewport change.
	pending []*scheduler.Handle
}

// New creates a renderer drawing through host and running its work on q.
func New(ctx context.Context, host Host, q *scheduler.Queue, opts Options) *Renderer {
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.PoolSurplus < 0 {
		opts.PoolSurplus = 0
	} else if opts.PoolSurplus == 0 {
		opts.PoolSurplus = DefaultPoolSurplus
	}
	return &Renderer{
		host:   host,
		queue:  q,
		opts:   opts,
		logger: ctxlog.FromContext(ctx),
		pool:   newPool(host, opts.PoolSurplus),
		cellAt: make(map[Coord]int),
	}
}

// State returns the lifecycle state.
func (r *Renderer) State() State { return r.state }

// SetModel replaces the model. The previous pool and headers are torn down.
func (r *Renderer) SetModel(m Model) {
	r.cancelPending()
	r.queue.Schedule(func(*scheduler.Controller) { r.configure(m) })
}

func (r *Renderer) configure(m Model) {
	r.state = StateConfiguring
	r.pool.reset()
	r.host.ClearHeaders()
	r.colHeaders, r.rowHeaders = nil, nil
	r.geom = geometry{}
	r.visible = span{}
	r.active = nil
	r.model = m
	r.cells = r.cells[:0]
	r.reach = Coord{}
	clear(r.cellAt)

	r.columns, r.rows = m.ColumnCount(), m.RowCount()
	var minimapCells []MinimapCell
	for c := range m.Cells() {
		if c.Column < 0 || c.Column >= r.columns || c.Row < 0 || c.Row >= r.rows {
			r.logger.Warn("Cell outside of the grid, skipped.", "column", c.Column, "row", c.Row, "dataId", c.DataID)
			continue
		}
		coord := c.Coord()
		if _, dup := r.cellAt[coord]; dup {
			r.logger.Warn("Several cells at one coordinate, keeping the first.", "column", c.Column, "row", c.Row, "dataId", c.DataID)
			continue
		}
		r.cellAt[coord] = len(r.cells)
		r.cells = append(r.cells, c)
		w, h := c.Span()
		r.reach.Column, r.reach.Row = max(r.reach.Column, w-1), max(r.reach.Row, h-1)
		minimapCells = append(minimapCells, MinimapCell{X: c.Column, Y: c.Row, Width: w, Height: h, Color: c.Color.Value()})
	}
	r.logger.Debug("Model configured.", "columns", r.columns, "rows", r.rows, "cells", len(r.cells))

	if mm := r.opts.Minimap; mm != nil {
		mm.SetSize(r.columns, r.rows)
		mm.DrawCells(minimapCells)
	}

	labels := m.ColumnHeaders()
	colIdx := make([]int, r.columns)
	for i := range colIdx {
		colIdx[i] = i
	}
	scheduler.ScheduleEach(r.queue, slices.Values(colIdx), func(i int, _ *scheduler.Controller) {
		hd := r.host.NewColumnHeader(i, label(labels, i))
		if r.active != nil && r.active.Column == i {
			hd.SetActive(true)
		}
		r.colHeaders = append(r.colHeaders, hd)
	})
	rowLabels := m.RowHeaders()
	rowIdx := make([]int, r.rows)
	for i := range rowIdx {
		rowIdx[i] = i
	}
	scheduler.ScheduleEach(r.queue, slices.Values(rowIdx), func(i int, _ *scheduler.Controller) {
		hd := r.host.NewRowHeader(i, label(rowLabels, i))
		if r.active != nil && r.active.Row == i {
			hd.SetActive(true)
		}
		r.rowHeaders = append(r.rowHeaders, hd)
	})
	r.queue.Schedule(func(*scheduler.Controller) {
		r.geom = probe(r.colHeaders, r.rowHeaders)
		r.logger.Debug("Grid geometry probed.", "offset", r.geom.offset, "stride", r.geom.stride)
		r.state = StateInteractive
		r.ViewportChanged()
	})
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i)
}

// ViewportChanged reacts to a scroll or resize. Rebinding work queued by
// an earlier change that has not run yet is cancelled.
func (r *Renderer) ViewportChanged() {
	r.cancelPending()
	h := r.queue.Schedule(func(c *scheduler.Controller) { r.refresh(c) })
	r.pending = append(r.pending, h)
}

func (r *Renderer) cancelPending() {
	for _, h := range r.pending {
		h.Cancel()
	}
	r.pending = r.pending[:0]
}

// capacity returns the number of tiles needed for a viewport.
func (r *Renderer) capacity(vp Rect) int {
	m := r.opts.Margin
	cols := min(axisTiles(vp.Width, r.geom.stride.X, r.columns)+2*m, r.columns)
	rows := min(axisTiles(vp.Height, r.geom.stride.Y, r.rows)+2*m, r.rows)
	return min(cols*rows, len(r.cells))
}

// visibleSpan returns the coordinates under the viewport expanded by the
// margin and clamped to the grid.
func (r *Renderer) visibleSpan(vp Rect) span {
	if r.columns == 0 || r.rows == 0 {
		return span{}
	}
	if !r.geom.known {
		return span{tl: Coord{}, br: Coord{Column: r.columns - 1, Row: r.rows - 1}, ok: true}
	}
	m := r.opts.Margin
	tl := r.geom.tileAt(vp.X, vp.Y)
	br := r.geom.tileAt(vp.X+vp.Width, vp.Y+vp.Height)
	s := span{
		tl: Coord{Column: clamp(tl.Column-m, 0, r.columns-1), Row: clamp(tl.Row-m, 0, r.rows-1)},
		br: Coord{Column: clamp(br.Column+m, 0, r.columns-1), Row: clamp(br.Row+m, 0, r.rows-1)},
		ok: true,
	}
	return s
}

func (r *Renderer) refresh(c *scheduler.Controller) {
	if r.state != StateInteractive {
		return
	}
	vp := r.host.Viewport()
	r.updateMinimap(vp)

	capacity := r.capacity(vp)
	r.pool.reserve(capacity)

	next := r.visibleSpan(vp)
	for _, coord := range r.pool.boundCoords() {
		if !r.overlaps(next, coord) {
			r.pool.release(coord)
		}
	}
	r.visible = next
	if !next.ok {
		return
	}

	// Cells starting up to reach tiles before the span can still cover it.
	left := max(next.tl.Column-r.reach.Column, 0)
	rows := make([]int, 0, next.rows()+r.reach.Row)
	for y := max(next.tl.Row-r.reach.Row, 0); y <= next.br.Row; y++ {
		rows = append(rows, y)
	}
	h := scheduler.ScheduleEach(r.queue, slices.Values(rows), func(y int, c *scheduler.Controller) {
		for x := left; x <= next.br.Column; x++ {
			if c.CancelRequested() {
				return
			}
			if coord := (Coord{Column: x, Row: y}); r.overlaps(next, coord) {
				r.bind(coord)
			}
		}
	})
	r.pending = append(r.pending, h)
	h = r.queue.Schedule(func(*scheduler.Controller) {
		if n := r.pool.trim(capacity); n > 0 {
			r.logger.Debug("Tile pool trimmed.", "destroyed", n, "size", r.pool.size())
		}
	})
	r.pending = append(r.pending, h)
}

// overlaps reports whether the cell starting at coord covers any tile of s.
// Coordinates without a cell count as one tile.
func (r *Renderer) overlaps(s span, coord Coord) bool {
	if !s.ok {
		return false
	}
	w, h := 1, 1
	if idx, ok := r.cellAt[coord]; ok {
		w, h = r.cells[idx].Span()
	}
	return coord.Column <= s.br.Column && coord.Column+w-1 >= s.tl.Column &&
		coord.Row <= s.br.Row && coord.Row+h-1 >= s.tl.Row
}

// bind attaches a tile to the cell starting at coord, if there is one and
// it is not bound yet.
func (r *Renderer) bind(coord Coord) {
	idx, ok := r.cellAt[coord]
	if !ok {
		return
	}
	if _, bound := r.pool.tileAt(coord); bound {
		return
	}
	cell := r.cells[idx]
	t := r.pool.acquire(coord)
	w, h := cell.Span()
	t.Bind(cell, r.geom.rect(coord, w, h))
	t.SetActive(r.active != nil && *r.active == coord)
}

func (r *Renderer) updateMinimap(vp Rect) {
	mm := r.opts.Minimap
	if mm == nil {
		return
	}
	var fr FracRect
	if total := r.geom.stride.X * r.columns; total > 0 {
		fr.X = clampFrac(float64(vp.X-r.geom.offset.X) / float64(total))
		fr.Width = clampFrac(float64(vp.Width) / float64(total))
	} else {
		fr.Width = 1
	}
	if total := r.geom.stride.Y * r.rows; total > 0 {
		fr.Y = clampFrac(float64(vp.Y-r.geom.offset.Y) / float64(total))
		fr.Height = clampFrac(float64(vp.Height) / float64(total))
	} else {
		fr.Height = 1
	}
	mm.SetViewRect(fr)
}
