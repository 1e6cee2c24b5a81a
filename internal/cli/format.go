package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-wordwrap"
	"github.com/vk/sdbv/internal/app"
	"github.com/vk/sdbv/internal/db"
)

const wrapWidth = 72

func writeInfo(w io.Writer, info *app.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Location:\t%s\n", info.Location)
	fmt.Fprintf(tw, "Name:\t%s\n", orDash(info.Name))
	fmt.Fprintf(tw, "Version:\t%s\n", orDash(info.Version))
	fmt.Fprintf(tw, "Built:\t%s\n", buildDate(info.BuildDate, time.Now()))
	for i, s := range info.BuildSources {
		label := ""
		if i == 0 {
			label = "Sources:"
		}
		fmt.Fprintf(tw, "%s\t%s\n", label, source(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(info.Description) > 0 {
		fmt.Fprintln(w)
		writeDescription(w, info.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Grids:")
	return writeGrids(w, info.Grids)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func buildDate(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Format(time.DateOnly), humanize.RelTime(t, now, "ago", "from now"))
}

func source(s db.BuildSource) string {
	if s.URL == "" {
		return s.Text
	}
	return fmt.Sprintf("%s <%s>", s.Text, s.URL)
}

func writeDescription(w io.Writer, d db.Description) {
	for _, b := range d {
		switch b.Kind {
		case db.Heading:
			fmt.Fprintln(w, b.Text)
			fmt.Fprintln(w, strings.Repeat("=", len([]rune(b.Text))))
		case db.Entry:
			if b.List {
				fmt.Fprintf(w, "%s:\n", b.Key)
				for _, v := range b.Values {
					fmt.Fprintf(w, "  - %s\n", v)
				}
			} else {
				fmt.Fprintln(w, wordwrap.WrapString(b.Key+": "+b.Value(), wrapWidth))
			}
		default:
			fmt.Fprintln(w, wordwrap.WrapString(b.Text, wrapWidth))
		}
	}
}

func writeGrids(w io.Writer, grids []app.GridSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, g := range grids {
		id := g.ID
		if id == db.DefaultGridID {
			id = `""`
		}
		if g.Err != nil {
			fmt.Fprintf(tw, "  %s\t%s\tinvalid: %v\n", id, orDash(g.Name), g.Err)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%dx%d\n", id, orDash(g.Name), g.Columns, g.Rows)
	}
	return tw.Flush()
}

func writeView(w io.Writer, res *app.ViewResult) error {
	if _, err := fmt.Fprintln(w, res.Text); err != nil {
		return err
	}
	if res.Active == nil {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Active: %s (id %s)\n", res.Active.FullName(), strconv.Itoa(res.Active.ID))
	fmt.Fprintf(w, "Anchor: #%s\n", res.Anchor)
	if target, ok := res.Active.TargetGrid(); ok {
		fmt.Fprintf(w, "Opens grid: %q\n", target)
	}
	if len(res.Active.Description) > 0 {
		fmt.Fprintln(w)
		writeDescription(w, res.Active.Description)
	}
	return nil
}

func writeDatabases(w io.Writer, dbs []app.DatabaseFile) error {
	if len(dbs) == 0 {
		_, err := fmt.Fprintln(w, "No databases found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range dbs {
		fmt.Fprintf(tw, "%s\t%s\t%d grids\n", d.Path, orDash(d.Name), d.Grids)
	}
	return tw.Flush()
}
