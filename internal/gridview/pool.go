package gridview

// slot is one arena position. A live slot holds a tile; a dead slot's tile
// was destroyed and the index waits for reuse.
type slot struct {
	tile  Tile
	coord Coord
	live  bool
}

// pool is an arena of tiles with used and free tracked as index sets.
type pool struct {
	host    Host
	surplus int

	slots []slot
	used  map[Coord]int
	free  []int
	dead  []int
}

func newPool(host Host, surplus int) *pool {
	return &pool{host: host, surplus: surplus, used: make(map[Coord]int)}
}

// size returns the number of live tiles.
func (p *pool) size() int { return len(p.slots) - len(p.dead) }

func (p *pool) usedCount() int { return len(p.used) }

func (p *pool) freeCount() int { return len(p.free) }

// reserve grows the pool to at least capacity tiles.
func (p *pool) reserve(capacity int) {
	for p.size() < capacity {
		p.grow()
	}
}

func (p *pool) grow() int {
	t := p.host.NewTile()
	var idx int
	if n := len(p.dead); n > 0 {
		idx = p.dead[n-1]
		p.dead = p.dead[:n-1]
		p.slots[idx] = slot{tile: t, live: true}
	} else {
		idx = len(p.slots)
		p.slots = append(p.slots, slot{tile: t, live: true})
	}
	p.free = append(p.free, idx)
	return idx
}

// trim destroys free tiles once the pool exceeds capacity by more than the
// surplus threshold. It reports how many tiles were destroyed.
func (p *pool) trim(capacity int) int {
	excess := p.size() - capacity
	if excess <= p.surplus {
		return 0
	}
	destroyed := 0
	for excess > 0 && len(p.free) > 0 {
		n := len(p.free)
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.host.DestroyTile(p.slots[idx].tile)
		p.slots[idx] = slot{}
		p.dead = append(p.dead, idx)
		excess--
		destroyed++
	}
	return destroyed
}

// acquire binds a free tile to c, growing the pool when none is free.
func (p *pool) acquire(c Coord) Tile {
	if idx, ok := p.used[c]; ok {
		return p.slots[idx].tile
	}
	if len(p.free) == 0 {
		p.grow()
	}
	n := len(p.free)
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.slots[idx].coord = c
	p.used[c] = idx
	return p.slots[idx].tile
}

// release returns the tile bound to c to the free set.
func (p *pool) release(c Coord) {
	idx, ok := p.used[c]
	if !ok {
		return
	}
	delete(p.used, c)
	p.slots[idx].tile.Unbind()
	p.free = append(p.free, idx)
}

// tileAt returns the tile bound to c.
func (p *pool) tileAt(c Coord) (Tile, bool) {
	idx, ok := p.used[c]
	if !ok {
		return nil, false
	}
	return p.slots[idx].tile, true
}

// boundCoords returns every coordinate with a bound tile.
func (p *pool) boundCoords() []Coord {
	out := make([]Coord, 0, len(p.used))
	for c := range p.used {
		out = append(out, c)
	}
	return out
}

// reset destroys every tile.
func (p *pool) reset() {
	for i := range p.slots {
		if p.slots[i].live {
			p.host.DestroyTile(p.slots[i].tile)
		}
	}
	p.slots = nil
	p.used = make(map[Coord]int)
	p.free = nil
	p.dead = nil
}
