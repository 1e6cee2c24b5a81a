package app

import (
	"context"

	"github.com/vk/sdbv/internal/db"
)

// Cells calls fn for every record of the grid, in row order. An unknown
// grid id falls back to the default grid.
func (a *App) Cells(ctx context.Context, gridID string, fn func(*db.Record) error) error {
	ctx = a.Context(ctx)
	g, err := a.db.ResolveGrid(ctx, gridID)
	if err != nil {
		return err
	}
	cells, err := g.Cells(ctx)
	if err != nil {
		return err
	}
	for rec, err := range cells.AllAsync(ctx) {
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
