package gridview

// span is an inclusive rectangle of tile coordinates.
type span struct {
	tl, br Coord
	ok     bool
}

func (s span) contains(c Coord) bool {
	return s.ok && c.Column >= s.tl.Column && c.Column <= s.br.Column &&
		c.Row >= s.tl.Row && c.Row <= s.br.Row
}

func (s span) columns() int {
	if !s.ok {
		return 0
	}
	return s.br.Column - s.tl.Column + 1
}

func (s span) rows() int {
	if !s.ok {
		return 0
	}
	return s.br.Row - s.tl.Row + 1
}

// geometry maps between pixels and tile coordinates. A zero stride on an
// axis collapses that axis to coordinate 0.
type geometry struct {
	offset Point
	stride Point
	known  bool
}

// probe derives origin and stride from the first two headers on each axis.
func probe(cols, rows []Header) geometry {
	g := geometry{known: true}
	if len(cols) > 0 {
		g.offset.X = cols[0].Position()
	}
	if len(cols) > 1 {
		g.stride.X = cols[1].Position() - g.offset.X
	}
	if len(rows) > 0 {
		g.offset.Y = rows[0].Position()
	}
	if len(rows) > 1 {
		g.stride.Y = rows[1].Position() - g.offset.Y
	}
	return g
}

// tileAt returns the coordinate under pixel (x, y). Division floors, so
// pixels left of or above the origin map to negative coordinates.
func (g geometry) tileAt(x, y int) Coord {
	return Coord{Column: floorDiv(x-g.offset.X, g.stride.X), Row: floorDiv(y-g.offset.Y, g.stride.Y)}
}

// rect returns the pixel rectangle of a tile spanning w by h tiles.
func (g geometry) rect(c Coord, w, h int) Rect {
	return Rect{
		X:      g.offset.X + c.Column*g.stride.X,
		Y:      g.offset.Y + c.Row*g.stride.Y,
		Width:  w * g.stride.X,
		Height: h * g.stride.Y,
	}
}

// axisTiles returns how many tiles of stride fit in length, counting
// partially visible tiles at both ends.
func axisTiles(length, stride, total int) int {
	if stride <= 0 {
		return total
	}
	n := (length+stride-1)/stride + 1
	return min(n, total)
}

func floorDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFrac(f float64) float64 {
	return max(0, min(f, 1))
}
