// Package textsurface is a headless character-cell implementation of the
// renderer host. One pixel is one character cell.
package textsurface

import (
	"bufio"
	"slices"
	"strings"

	"github.com/apparentlymart/go-textseg/v15/textseg"
	"github.com/gookit/color"
	"github.com/vk/sdbv/internal/gridview"
)

// Options sizes the surface. Zero values select defaults.
type Options struct {
	Width, Height  int
	TileWidth      int
	RowHeaderWidth int
	// Color paints tiles with their cell color using ANSI escapes.
	Color bool
}

// Surface draws into a Width x Height character buffer. The first line
// holds column headers and the first RowHeaderWidth characters of every
// line hold row headers; both stay in place while the content scrolls.
type Surface struct {
	opts       Options
	scroll     gridview.Point
	tiles      []*tile
	colHeaders []*header
	rowHeaders []*header
	created    int
}

var _ gridview.Host = (*Surface)(nil)

// New creates a surface.
func New(opts Options) *Surface {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 24
	}
	if opts.TileWidth <= 0 {
		opts.TileWidth = 8
	}
	if opts.RowHeaderWidth <= 0 {
		opts.RowHeaderWidth = 6
	}
	return &Surface{opts: opts}
}

type tile struct {
	cell   gridview.Cell
	at     gridview.Rect
	bound  bool
	active bool
}

func (t *tile) Bind(c gridview.Cell, at gridview.Rect) { t.cell, t.at, t.bound = c, at, true }
func (t *tile) Unbind()                                { t.bound, t.active = false, false }
func (t *tile) SetActive(active bool)                  { t.active = active }

type header struct {
	pos    int
	text   string
	active bool
}

func (h *header) SetActive(active bool) { h.active = active }
func (h *header) Position() int         { return h.pos }

// NewTile creates an unbound tile.
func (s *Surface) NewTile() gridview.Tile {
	t := &tile{}
	s.tiles = append(s.tiles, t)
	s.created++
	return t
}

// DestroyTile drops a tile from the surface.
func (s *Surface) DestroyTile(t gridview.Tile) {
	s.tiles = slices.DeleteFunc(s.tiles, func(x *tile) bool { return gridview.Tile(x) == t })
}

// NewColumnHeader places the header of column index on the top row.
func (s *Surface) NewColumnHeader(index int, text string) gridview.Header {
	h := &header{pos: s.opts.RowHeaderWidth + index*s.opts.TileWidth, text: text}
	s.colHeaders = append(s.colHeaders, h)
	return h
}

// NewRowHeader places the header of row index in the left margin.
func (s *Surface) NewRowHeader(index int, text string) gridview.Header {
	h := &header{pos: 1 + index, text: text}
	s.rowHeaders = append(s.rowHeaders, h)
	return h
}

// ClearHeaders removes every header.
func (s *Surface) ClearHeaders() { s.colHeaders, s.rowHeaders = nil, nil }

// Viewport returns the visible area in surface coordinates.
func (s *Surface) Viewport() gridview.Rect {
	return gridview.Rect{X: s.scroll.X, Y: s.scroll.Y, Width: s.opts.Width, Height: s.opts.Height}
}

// ScrollTo moves the viewport, clamping at the origin.
func (s *Surface) ScrollTo(x, y int) {
	s.scroll = gridview.Point{X: max(x, 0), Y: max(y, 0)}
}

// Scroll returns the scroll position.
func (s *Surface) Scroll() gridview.Point { return s.scroll }

// Tiles returns the number of live tiles and how many were ever created.
func (s *Surface) Tiles() (live, created int) { return len(s.tiles), s.created }

type glyph struct {
	text  string
	color string
}

type canvas struct {
	w, h  int
	cells [][]glyph
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]glyph, h)}
	for y := range c.cells {
		c.cells[y] = make([]glyph, w)
		for x := range c.cells[y] {
			c.cells[y][x].text = " "
		}
	}
	return c
}

// put writes text clipped to [minX, w) starting at column x.
func (c *canvas) put(x, y, minX int, text, col string) {
	if y < 0 || y >= c.h {
		return
	}
	for i, g := range graphemes(text) {
		if px := x + i; px >= minX && px < c.w {
			c.cells[y][px] = glyph{text: g, color: col}
		}
	}
}

func (c *canvas) String(useColor bool) string {
	lines := make([]string, len(c.cells))
	for y, row := range c.cells {
		var b, run strings.Builder
		runColor := ""
		flush := func() {
			if useColor && runColor != "" {
				b.WriteString(color.HEX(runColor, true).Sprint(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for _, g := range row {
			if g.color != runColor && run.Len() > 0 {
				flush()
			}
			runColor = g.color
			run.WriteString(g.text)
		}
		flush()
		lines[y] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Render draws the bound tiles and headers at the current scroll position.
func (s *Surface) Render() string {
	c := newCanvas(s.opts.Width, s.opts.Height)
	rw := s.opts.RowHeaderWidth
	for _, t := range s.tiles {
		if !t.bound {
			continue
		}
		if y := t.at.Y - s.scroll.Y; y >= 1 {
			c.put(t.at.X-s.scroll.X, y, rw, label(t.cell.Text, t.active, t.at.Width), t.cell.Color.Value())
		}
	}
	for _, h := range s.colHeaders {
		c.put(h.pos-s.scroll.X, 0, rw, label(h.text, h.active, s.opts.TileWidth), "")
	}
	for _, h := range s.rowHeaders {
		if y := h.pos - s.scroll.Y; y >= 1 {
			c.put(0, y, 0, label(h.text, h.active, rw), "")
		}
	}
	return c.String(s.opts.Color)
}

// label fits text into width columns, keeping one column as a gap. Active
// items are marked with a leading '*'.
func label(text string, active bool, width int) string {
	if active {
		text = "*" + text
	}
	g := graphemes(text)
	n := max(width-1, 0)
	if len(g) > n {
		g = g[:n]
	}
	return strings.Join(g, "")
}

func graphemes(s string) []string {
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Split(textseg.ScanGraphemeClusters)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}
