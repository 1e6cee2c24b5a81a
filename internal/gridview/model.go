package gridview

import (
	"iter"
	"strconv"
)

// Model is the data source consumed by the renderer.
type Model interface {
	ColumnCount() int
	RowCount() int
	// ColumnHeaders and RowHeaders may be shorter than the counts; missing
	// labels fall back to the 0-based index.
	ColumnHeaders() []string
	RowHeaders() []string
	Cells() iter.Seq[Cell]
}

// Coord is a 0-based tile position.
type Coord struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// Cell is one renderable cell. Width and Height are spans in tiles; zero
// means 1.
type Cell struct {
	Column int
	Row    int
	Width  int
	Height int
	Text   string
	Title  string
	Color  Color
	DataID int
}

// Coord returns the cell's origin.
func (c Cell) Coord() Coord { return Coord{Column: c.Column, Row: c.Row} }

// Span returns the width and height with defaults applied.
func (c Cell) Span() (int, int) {
	w, h := c.Width, c.Height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Palette lists the indexed tile colors.
var Palette = [...]string{
	"#757575", "#E53935", "#FB8C00", "#689F38", "#00ACC1", "#1565C0", "#5E35B1", "#F06292",
	"#9E9E9E", "#E57373", "#FBC02D", "#8BC34A", "#4DD0E1", "#039BE5", "#9575CD", "#F48FB1",
	"#424242", "#B71C1C", "#FF5722", "#2E7D32", "#00838F", "#283593", "#4A148C", "#D81B60",
}

type colorKind uint8

const (
	colorNone colorKind = iota
	colorIndex
	colorLiteral
)

// Color is either unset, a palette index or a literal CSS color.
type Color struct {
	kind    colorKind
	index   int
	literal string
}

// PaletteColor returns an indexed color. Indices wrap around the palette.
func PaletteColor(i int) Color {
	n := len(Palette)
	return Color{kind: colorIndex, index: ((i % n) + n) % n}
}

// LiteralColor returns a literal color such as "#12ab34".
func LiteralColor(s string) Color { return Color{kind: colorLiteral, literal: s} }

// IsSet reports whether the color is not the zero Color.
func (c Color) IsSet() bool { return c.kind != colorNone }

// Index returns the palette index of an indexed color.
func (c Color) Index() (int, bool) { return c.index, c.kind == colorIndex }

// Literal returns the literal value of a literal color.
func (c Color) Literal() (string, bool) { return c.literal, c.kind == colorLiteral }

// Value returns the color as a CSS value, "" when unset.
func (c Color) Value() string {
	switch c.kind {
	case colorIndex:
		return Palette[c.index]
	case colorLiteral:
		return c.literal
	}
	return ""
}

func (c Color) String() string {
	switch c.kind {
	case colorIndex:
		return "palette:" + strconv.Itoa(c.index)
	case colorLiteral:
		return c.literal
	}
	return "none"
}
