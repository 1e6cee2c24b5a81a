package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/sdbv/internal/anchor"
	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/gridadapter"
	"github.com/vk/sdbv/internal/gridview"
	"github.com/vk/sdbv/internal/scheduler"
	"github.com/vk/sdbv/internal/textsurface"
)

// ViewRequest selects what the view command renders.
type ViewRequest struct {
	GridID string
	// Cell is the full display name of a cell to activate and center.
	Cell string
	// ScrollColumn and ScrollRow scroll the viewport to a tile, ignored when
	// Cell is set.
	ScrollColumn int
	ScrollRow    int
	Minimap      gridview.Minimap
}

// ViewResult is a rendered viewport.
type ViewResult struct {
	GridID string
	Text   string
	// Active is the record under the active cell, if any.
	Active *db.Record
	// Anchor is the URL fragment of the active cell.
	Anchor string
	Pool   PoolStats
}

// PoolStats reports the renderer tile pool after rendering.
type PoolStats struct {
	Size, Bound, Free int
}

// ErrCellNotFound is returned when ViewRequest.Cell names no cell.
var ErrCellNotFound = errors.New("cell not found")

// View renders one viewport of a grid through the virtualized renderer.
func (a *App) View(ctx context.Context, req ViewRequest) (*ViewResult, error) {
	ctx = a.Context(ctx)
	g, err := a.db.ResolveGrid(ctx, req.GridID)
	if err != nil {
		return nil, err
	}
	ctx = ctxlog.With(ctx, "grid", g.ID())
	model, err := gridadapter.Load(ctx, g)
	if err != nil {
		return nil, err
	}

	vs := a.settings.View
	surface := textsurface.New(textsurface.Options{
		Width:     vs.Width,
		Height:    vs.Height,
		TileWidth: vs.TileWidth,
		Color:     vs.Color,
	})
	res := &ViewResult{GridID: g.ID()}
	q := scheduler.New()
	r := gridview.New(ctx, surface, q, gridview.Options{
		Margin:      vs.Margin,
		PoolSurplus: vs.PoolSurplus,
		Minimap:     req.Minimap,
		OnActiveCellChanged: func(c *gridview.ActiveCell) {
			res.Active = nil
			if c == nil || !c.HasData {
				return
			}
			rec, err := model.Records().GetByIDSync(c.DataID)
			if err != nil {
				a.logger.Warn("Active cell record unavailable.", "id", c.DataID, "error", err)
				return
			}
			res.Active = rec
		},
	})
	r.SetModel(model)
	q.Drain()

	if req.Cell != "" {
		rec, ok := model.FindByName(req.Cell)
		if !ok {
			return nil, fmt.Errorf("%w: %q in grid %q", ErrCellNotFound, req.Cell, g.ID())
		}
		c, ok := model.CoordOf(rec)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no coordinates", ErrCellNotFound, req.Cell)
		}
		r.SetActiveCell(c.Column, c.Row, true)
	} else if req.ScrollColumn != 0 || req.ScrollRow != 0 {
		at := r.TileRect(gridview.Coord{Column: req.ScrollColumn, Row: req.ScrollRow})
		offset, _, _ := r.Geometry()
		surface.ScrollTo(at.X-offset.X, at.Y-offset.Y)
		r.ViewportChanged()
	}
	n := q.Drain()
	a.logger.Debug("Viewport rendered.", "grid", g.ID(), "tasks", n, "pool", r.PoolSize())

	res.Text = surface.Render()
	if res.Active != nil {
		res.Anchor = anchor.Encode(res.Active.FullName())
	}
	res.Pool = PoolStats{Size: r.PoolSize(), Bound: r.BoundTiles(), Free: r.FreeTiles()}
	return res, nil
}
