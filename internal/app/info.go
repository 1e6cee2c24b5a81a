package app

import (
	"context"
	"time"

	"github.com/vk/sdbv/internal/db"
	"golang.org/x/sync/errgroup"
)

// Info is the database metadata shown by the info command.
type Info struct {
	Location     string
	Name         string
	Version      string
	BuildDate    time.Time
	BuildSources []db.BuildSource
	Description  db.Description
	Grids        []GridSummary
}

// GridSummary describes one grid from the grid index. Err is set when the
// grid's required fields are malformed.
type GridSummary struct {
	ID      string
	Name    string
	Columns int
	Rows    int
	Err     error
}

// Info loads the database metadata and grid index concurrently.
func (a *App) Info(ctx context.Context) (*Info, error) {
	ctx = a.Context(ctx)
	d := a.db
	info := &Info{Location: d.Location()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { info.Name, err = d.Name(gctx); return })
	g.Go(func() (err error) { info.Version, err = d.Version(gctx); return })
	g.Go(func() (err error) { info.BuildDate, err = d.BuildDate(gctx); return })
	g.Go(func() (err error) { info.BuildSources, err = d.BuildSources(gctx); return })
	g.Go(func() (err error) { info.Description, err = d.Description(gctx); return })
	g.Go(func() (err error) { info.Grids, err = a.Grids(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

// Grids lists every grid with its name and size, in index order.
func (a *App) Grids(ctx context.Context) ([]GridSummary, error) {
	ctx = a.Context(ctx)
	ids, err := a.db.GridsList(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GridSummary, len(ids))
	for i, id := range ids {
		out[i] = a.summarize(ctx, id)
	}
	return out, nil
}

func (a *App) summarize(ctx context.Context, id string) GridSummary {
	s := GridSummary{ID: id}
	g, err := a.db.Grid(ctx, id)
	if err != nil {
		s.Err = err
		return s
	}
	if s.Name, err = g.Name(ctx); err != nil {
		s.Err = err
		return s
	}
	cols, err := g.ColumnsRange(ctx)
	if err != nil {
		s.Err = err
		return s
	}
	rows, err := g.RowsRange(ctx)
	if err != nil {
		s.Err = err
		return s
	}
	s.Columns, s.Rows = cols.Len(), rows.Len()
	return s
}
