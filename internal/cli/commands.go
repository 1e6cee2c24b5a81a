package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/sdbv/internal/anchor"
	"github.com/vk/sdbv/internal/app"
	"github.com/vk/sdbv/internal/config"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/minimapio"
	"gopkg.in/yaml.v3"
)

func locationArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return usageError(fmt.Errorf("%w (expected the database location, a path or URL)", err))
	}
	return nil
}

func newInfoCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "info DB",
		Short: "Show database metadata and the grid list",
		Args:  locationArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(args[0], func(a *app.App) error {
				info, err := a.Info(cmd.Context())
				if err != nil {
					return err
				}
				return writeInfo(cmd.OutOrStdout(), info)
			})
		},
	}
}

func newListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list DIR",
		Short: "Find database documents under a directory",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return usageError(fmt.Errorf("%w (expected a directory)", err))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := e.newApp(args[0])
			found, err := app.ListDatabases(a.Context(cmd.Context()), args[0], nil)
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: app.Explain(args[0], err), Err: err}
			}
			return writeDatabases(cmd.OutOrStdout(), found)
		},
	}
}

func newGridsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "grids DB",
		Short: "List the grids of a database",
		Args:  locationArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(args[0], func(a *app.App) error {
				grids, err := a.Grids(cmd.Context())
				if err != nil {
					return err
				}
				return writeGrids(cmd.OutOrStdout(), grids)
			})
		},
	}
}

func newCellsCommand(e *env) *cobra.Command {
	var gridID, output string
	cmd := &cobra.Command{
		Use:   "cells DB",
		Short: "Print the cells of a grid as JSON lines or YAML documents",
		Args:  locationArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			encode, flush, err := recordEncoder(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			return e.run(args[0], func(a *app.App) error {
				if err := a.Cells(cmd.Context(), gridID, func(r *db.Record) error {
					return encode(r)
				}); err != nil {
					return err
				}
				return flush()
			})
		},
	}
	cmd.Flags().StringVarP(&gridID, "grid", "g", db.DefaultGridID, "Grid id (unknown ids fall back to the default grid)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func recordEncoder(w io.Writer, format string) (encode func(*db.Record) error, flush func() error, err error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		return func(r *db.Record) error { return enc.Encode(r) }, func() error { return nil }, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return func(r *db.Record) error { return enc.Encode(r) }, enc.Close, nil
	}
	return nil, nil, usageError(fmt.Errorf("invalid --output %q (want json or yaml)", format))
}

type viewFlags struct {
	grid   string
	cell   string
	anchor string
	scroll string
}

func newViewCommand(e *env) *cobra.Command {
	var f viewFlags
	cmd := &cobra.Command{
		Use:   "view DB",
		Short: "Render a viewport of a grid as text",
		Long: `Render a viewport of a grid as text through the virtualized renderer.

The viewport starts at the top-left tile, at --scroll COLUMN,ROW, or centered
on the cell named by --cell (full display name) or --anchor (a link or
#fragment produced for a cell).`,
		Args: locationArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			return e.run(args[0], func(a *app.App) error {
				ctx := a.Context(cmd.Context())
				if ms := e.settings.Minimap; ms.URL != "" {
					p, err := minimapio.Dial(ctx, ms.URL, minimapio.DialOptions{Namespace: ms.Namespace, Timeout: e.settings.FetchTimeout})
					if err != nil {
						return err
					}
					defer p.Close()
					req.Minimap = p
				}
				res, err := a.View(ctx, req)
				if err != nil {
					return err
				}
				return writeView(cmd.OutOrStdout(), res)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.grid, "grid", "g", db.DefaultGridID, "Grid id (unknown ids fall back to the default grid)")
	fs.StringVar(&f.cell, "cell", "", "Activate and center the cell with this full name")
	fs.StringVar(&f.anchor, "anchor", "", "Activate the cell named by a link or #fragment")
	fs.StringVar(&f.scroll, "scroll", "", "Scroll to COLUMN,ROW (0-based tile position)")
	fs.Int("width", 0, "Viewport width in characters")
	fs.Int("height", 0, "Viewport height in lines")
	fs.Int("tile-width", 0, "Tile width in characters")
	fs.Int("margin", 0, "Extra tiles kept bound around the viewport")
	fs.Int("pool-surplus", 0, "Spare tiles kept before the pool shrinks")
	fs.Bool("color", false, "Paint tiles with their cell color")
	fs.String("minimap-url", "", "Publish the minimap to this socket.io server")
	fs.String("minimap-namespace", "", "socket.io namespace of the minimap")
	cmd.MarkFlagsMutuallyExclusive("cell", "anchor", "scroll")

	mustBind(e.v, config.KeyViewWidth, fs, "width")
	mustBind(e.v, config.KeyViewHeight, fs, "height")
	mustBind(e.v, config.KeyViewTileWidth, fs, "tile-width")
	mustBind(e.v, config.KeyViewMargin, fs, "margin")
	mustBind(e.v, config.KeyViewPoolSurplus, fs, "pool-surplus")
	mustBind(e.v, config.KeyViewColor, fs, "color")
	mustBind(e.v, config.KeyMinimapURL, fs, "minimap-url")
	mustBind(e.v, config.KeyMinimapNamespace, fs, "minimap-namespace")
	return cmd
}

func (f *viewFlags) request() (app.ViewRequest, error) {
	req := app.ViewRequest{GridID: f.grid, Cell: f.cell}
	if f.anchor != "" {
		name, err := cellFromAnchor(f.anchor)
		if err != nil {
			return req, usageError(err)
		}
		req.Cell = name
	}
	if f.scroll != "" {
		col, row, err := parseScroll(f.scroll)
		if err != nil {
			return req, usageError(err)
		}
		req.ScrollColumn, req.ScrollRow = col, row
	}
	return req, nil
}

func cellFromAnchor(s string) (string, error) {
	if strings.HasPrefix(s, "#") {
		return anchor.Decode(s)
	}
	name, ok, err := anchor.FromURL(s)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("invalid --anchor: the link has no #fragment")
	}
	return name, nil
}

func parseScroll(s string) (int, int, error) {
	cs, rs, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --scroll %q: expected COLUMN,ROW", s)
	}
	col, err := strconv.Atoi(strings.TrimSpace(cs))
	if err != nil || col < 0 {
		return 0, 0, fmt.Errorf("invalid --scroll %q: bad column", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil || row < 0 {
		return 0, 0, fmt.Errorf("invalid --scroll %q: bad row", s)
	}
	return col, row, nil
}
