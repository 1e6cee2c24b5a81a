package gridview

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, Width, Height int
}

// Point is a pixel position or a pixel stride.
type Point struct {
	X, Y int
}

// Tile is a reusable render object. The renderer binds it to one cell at a
// time.
type Tile interface {
	Bind(cell Cell, at Rect)
	Unbind()
	SetActive(active bool)
}

// Header is a column or row header element.
type Header interface {
	SetActive(active bool)
	// Position returns the header's pixel offset along its axis once
	// attached.
	Position() int
}

// Host is the drawing surface.
type Host interface {
	NewTile() Tile
	DestroyTile(t Tile)
	NewColumnHeader(index int, text string) Header
	NewRowHeader(index int, text string) Header
	// ClearHeaders removes every header created so far.
	ClearHeaders()
	// Viewport returns the scroll offset and client size.
	Viewport() Rect
	ScrollTo(x, y int)
}

// FracRect is a rectangle given as fractions (0.0 to 1.0) of the grid.
type FracRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinimapCell is a colored rectangle in tile units.
type MinimapCell struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Color  string `json:"color,omitempty"`
}

// Minimap is a passive overview surface.
type Minimap interface {
	SetSize(columns, rows int)
	SetViewRect(r FracRect)
	DrawCells(cells []MinimapCell)
}
