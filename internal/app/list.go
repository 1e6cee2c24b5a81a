package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/fetch"
	"github.com/vk/sdbv/internal/fsutil"
	"github.com/vk/sdbv/internal/jsonstore"
)

// DatabaseFile is a database document found on disk.
type DatabaseFile struct {
	Path  string
	Name  string
	Grids int
}

// ListDatabases finds the JSON documents under dir that have a grid index.
// Other documents, such as imported parts, are skipped.
func ListDatabases(ctx context.Context, dir string, f fetch.Fetcher) ([]DatabaseFile, error) {
	if f == nil {
		f = fetch.FileFetcher{}
	}
	logger := ctxlog.FromContext(ctx)
	paths, err := fsutil.FindFilesByExtension(dir, ".json")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var out []DatabaseFile
	// Probing documents that are not databases warns; keep only errors.
	probe := ctxlog.AtLeast(ctx, slog.LevelError)
	for _, p := range paths {
		d := db.New(jsonstore.New(p, f))
		grids, err := d.GridsList(probe)
		if err != nil {
			logger.Debug("Not a database, skipped.", "path", p, "error", err)
			continue
		}
		name, _ := d.Name(probe)
		out = append(out, DatabaseFile{Path: p, Name: name, Grids: len(grids)})
	}
	logger.Debug("Databases listed.", "dir", dir, "scanned", len(paths), "found", len(out))
	return out, nil
}
