package gridview

import "github.com/vk/sdbv/internal/scheduler"

// SetActiveCell highlights the tile at (column, row) together with its
// headers. The coordinate does not need a materialized tile. With show the
// viewport is first scrolled so the tile is centered.
func (r *Renderer) SetActiveCell(column, row int, show bool) {
	coord := Coord{Column: column, Row: row}
	if show {
		r.queue.Schedule(func(*scheduler.Controller) { r.scrollToCenter(coord) })
	}
	r.queue.Schedule(func(*scheduler.Controller) { r.activate(&coord) })
}

// ClearActiveCell removes the highlight.
func (r *Renderer) ClearActiveCell() {
	r.queue.Schedule(func(*scheduler.Controller) { r.activate(nil) })
}

// ActiveCell returns the highlighted coordinate.
func (r *Renderer) ActiveCell() (Coord, bool) {
	if r.active == nil {
		return Coord{}, false
	}
	return *r.active, true
}

// TileAt returns the coordinate under a pixel of the grid surface. It
// fails until the geometry has been probed.
func (r *Renderer) TileAt(x, y int) (Coord, bool) {
	if !r.geom.known {
		return Coord{}, false
	}
	return r.geom.tileAt(x, y), true
}

// TileRect returns the pixel rectangle of the tile at coord.
func (r *Renderer) TileRect(coord Coord) Rect {
	w, h := 1, 1
	if idx, ok := r.cellAt[coord]; ok {
		w, h = r.cells[idx].Span()
	}
	return r.geom.rect(coord, w, h)
}

// CellAt returns the cell starting at coord.
func (r *Renderer) CellAt(coord Coord) (Cell, bool) {
	idx, ok := r.cellAt[coord]
	if !ok {
		return Cell{}, false
	}
	return r.cells[idx], true
}

func (r *Renderer) inGrid(c Coord) bool {
	return c.Column >= 0 && c.Column < r.columns && c.Row >= 0 && c.Row < r.rows
}

func (r *Renderer) scrollToCenter(coord Coord) {
	if !r.geom.known || !r.inGrid(coord) {
		return
	}
	vp := r.host.Viewport()
	tr := r.TileRect(coord)
	r.host.ScrollTo(tr.X-(vp.Width-tr.Width)/2, tr.Y-(vp.Height-tr.Height)/2)
	r.ViewportChanged()
}

func (r *Renderer) activate(next *Coord) {
	if next != nil && !r.inGrid(*next) {
		r.logger.Warn("Active cell outside of the grid, ignored.", "column", next.Column, "row", next.Row)
		return
	}
	if r.active != nil {
		r.setHighlight(*r.active, false)
	}
	r.active = next
	if next != nil {
		r.setHighlight(*next, true)
	}

	cb := r.opts.OnActiveCellChanged
	if cb == nil {
		return
	}
	if next == nil {
		cb(nil)
		return
	}
	ac := &ActiveCell{Coord: *next}
	if idx, ok := r.cellAt[*next]; ok {
		ac.DataID, ac.HasData = r.cells[idx].DataID, true
	}
	cb(ac)
}

func (r *Renderer) setHighlight(c Coord, active bool) {
	if t, ok := r.pool.tileAt(c); ok {
		t.SetActive(active)
	}
	if c.Column < len(r.colHeaders) {
		r.colHeaders[c.Column].SetActive(active)
	}
	if c.Row < len(r.rowHeaders) {
		r.rowHeaders[c.Row].SetActive(active)
	}
}

// PoolSize returns the number of live tiles.
func (r *Renderer) PoolSize() int { return r.pool.size() }

// BoundTiles returns the number of tiles bound to a coordinate.
func (r *Renderer) BoundTiles() int { return r.pool.usedCount() }

// FreeTiles returns the number of unbound live tiles.
func (r *Renderer) FreeTiles() int { return r.pool.freeCount() }

// Visible returns the bound coordinate rectangle, corners inclusive.
func (r *Renderer) Visible() (topLeft, bottomRight Coord, ok bool) {
	return r.visible.tl, r.visible.br, r.visible.ok
}

// Geometry returns the probed origin offset and stride.
func (r *Renderer) Geometry() (offset, stride Point, ok bool) {
	return r.geom.offset, r.geom.stride, r.geom.known
}
