package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/jsonstore"
	"github.com/vk/sdbv/internal/testutil"
	"gopkg.in/yaml.v3"
)

func open(t *testing.T, files map[string]string) (context.Context, *db.Database, *testutil.MapFetcher, *testutil.SafeBuffer) {
	t.Helper()
	ctx, logs := testutil.LoggedContext(t)
	f := testutil.NewMapFetcher(files)
	return ctx, db.New(jsonstore.New("db.json", f)), f, logs
}

const scenarioDB = `{"grids":{"":{"colsRange":[0,2],"rowsRange":[0,1],"cells":{"fieldOrder":["name"],"data":[["A"],["B"],["C"],["D"],["E"],["F"]]}}}}`

func TestGrid_Scenario(t *testing.T) {
	ctx, d, _, _ := open(t, map[string]string{"db.json": scenarioDB})

	g, err := d.Grid(ctx, db.DefaultGridID)
	require.NoError(t, err)

	cols, err := g.ColumnsRange(ctx)
	require.NoError(t, err)
	rows, err := g.RowsRange(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cols.Len())
	assert.Equal(t, 2, rows.Len())

	cells, err := g.Cells(ctx)
	require.NoError(t, err)
	require.NoError(t, cells.InitData(ctx))

	var names []string
	for r := range cells.All() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, names)

	// The sequence restarts.
	count := 0
	for range cells.All() {
		count++
	}
	assert.Equal(t, 6, count)
}

func TestDatabase_Metadata(t *testing.T) {
	ctx, d, f, _ := open(t, map[string]string{"db.json": `{
		"name": "Tiles",
		"version": 3,
		"buildDate": "2023-04-05T06:07:08Z",
		"buildSources": ["gen.py", {"archdefs": "https://example.com/a", "local": null}],
		"description": ["# About", "Some text", {"Bits": [1, 2], "Owner": "me"}],
		"grids": {"b": {}, "a": {}}
	}`})

	name, err := d.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tiles", name)

	version, err := d.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", version)

	date, err := d.BuildDate(ctx)
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)))

	sources, err := d.BuildSources(ctx)
	require.NoError(t, err)
	want := []db.BuildSource{
		{Text: "gen.py"},
		{Text: "archdefs", URL: "https://example.com/a"},
		{Text: "local"},
	}
	if diff := cmp.Diff(want, sources); diff != "" {
		t.Errorf("BuildSources() mismatch (-want +got):\n%s", diff)
	}

	desc, err := d.Description(ctx)
	require.NoError(t, err)
	wantDesc := db.Description{
		{Kind: db.Heading, Text: "About"},
		{Kind: db.Paragraph, Text: "Some text"},
		{Kind: db.Entry, Key: "Bits", Values: []string{"1", "2"}, List: true},
		{Kind: db.Entry, Key: "Owner", Values: []string{"me"}},
	}
	if diff := cmp.Diff(wantDesc, desc); diff != "" {
		t.Errorf("Description() mismatch (-want +got):\n%s", diff)
	}

	grids, err := d.GridsList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, grids)

	// Memoized values survive the disposal of their raw source.
	name, err = d.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tiles", name)
	assert.Equal(t, 1, f.Count("db.json"))
}

func TestDatabase_MetadataDefaults(t *testing.T) {
	ctx, d, _, logs := open(t, map[string]string{"db.json": `{"name": 5, "buildDate": "yesterday"}`})

	name, err := d.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	version, err := d.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", version)

	date, err := d.BuildDate(ctx)
	require.NoError(t, err)
	assert.True(t, date.IsZero())

	sources, err := d.BuildSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)

	desc, err := d.Description(ctx)
	require.NoError(t, err)
	assert.Nil(t, desc)

	assert.Contains(t, logs.String(), "Invalid date")
	assert.Contains(t, logs.String(), "path=(db.json).name")
}

func TestDatabase_BuildDateEpochMillis(t *testing.T) {
	ctx, d, _, _ := open(t, map[string]string{"db.json": `{"buildDate": 1700000000000}`})
	date, err := d.BuildDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), date)
}

func TestDatabase_GridIndexErrors(t *testing.T) {
	t.Run("missing index", func(t *testing.T) {
		ctx, d, _, _ := open(t, map[string]string{"db.json": `{}`})
		_, err := d.GridsList(ctx)
		assert.ErrorIs(t, err, db.ErrInvalidData)
	})
	t.Run("index not an object", func(t *testing.T) {
		ctx, d, _, _ := open(t, map[string]string{"db.json": `{"grids": []}`})
		_, err := d.GridsList(ctx)
		assert.ErrorIs(t, err, db.ErrInvalidData)
	})
	t.Run("missing grid", func(t *testing.T) {
		ctx, d, _, _ := open(t, map[string]string{"db.json": `{"grids": {"a": {}}}`})
		_, err := d.Grid(ctx, "b")
		require.ErrorIs(t, err, db.ErrInvalidData)
		assert.Contains(t, err.Error(), `(db.json).grids.b`)
	})
	t.Run("transport failure is not data", func(t *testing.T) {
		ctx, d, _, _ := open(t, map[string]string{})
		_, err := d.GridsList(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, db.ErrInvalidData)
	})
}

func TestDatabase_GridIsCached(t *testing.T) {
	ctx, d, _, _ := open(t, map[string]string{"db.json": `{"grids": {"a": {"name": "A"}}}`})
	g1, err := d.Grid(ctx, "a")
	require.NoError(t, err)
	g2, err := d.Grid(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	g3, err := d.ResolveGrid(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, g1, g3)
}

func TestDatabase_ResolveGridFallsBack(t *testing.T) {
	ctx, d, _, logs := open(t, map[string]string{"db.json": `{"grids": {"": {"name": "default"}}}`})
	g, err := d.ResolveGrid(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, db.DefaultGridID, g.ID())
	assert.Contains(t, logs.String(), "grid=nope")
}

func TestGrid_Ranges(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		want    db.Range
		wantErr bool
	}{
		{"bare number", `4`, db.Range{First: 0, Last: 4}, false},
		{"single element", `[4]`, db.Range{First: 0, Last: 4}, false},
		{"pair", `[2, 5]`, db.Range{First: 2, Last: 5}, false},
		{"descending", `[5, 2]`, db.Range{First: 5, Last: 2}, false},
		{"bad second element", `[3, "x"]`, db.Range{First: 0, Last: 3}, false},
		{"too many elements", `[1, 2, 3]`, db.Range{First: 1, Last: 2}, false},
		{"string", `"x"`, db.Range{}, true},
		{"empty array", `[]`, db.Range{}, true},
		{"bad first element", `["a"]`, db.Range{}, true},
		{"fraction", `2.5`, db.Range{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, d, _, _ := open(t, map[string]string{"db.json": `{"grids": {"": {"colsRange": ` + tc.value + `}}}`})
			g, err := d.Grid(ctx, "")
			require.NoError(t, err)
			got, err := g.ColumnsRange(ctx)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, isDataError(err), "err=%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGrid_MissingRangeIsFatal(t *testing.T) {
	ctx, d, _, _ := open(t, map[string]string{"db.json": `{"grids": {"": {}}}`})
	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	_, err = g.RowsRange(ctx)
	require.ErrorIs(t, err, db.ErrInvalidData)
	assert.Contains(t, err.Error(), `(db.json).grids."".rowsRange`)

	_, err = g.Cells(ctx)
	assert.ErrorIs(t, err, db.ErrInvalidData)
}

func TestGrid_Headers(t *testing.T) {
	testCases := []struct {
		name    string
		headers string
		want    []string
		wantErr bool
		wantLog string
	}{
		{"absent", ``, nil, false, ""},
		{"explicit", `"colHeaders": ["a", "b", 3],`, []string{"a", "b", "3"}, false, ""},
		{"longer is truncated", `"colHeaders": ["a", "b", "c", "d"],`, []string{"a", "b", "c"}, false, "extra headers ignored"},
		{"shorter is fatal", `"colHeaders": ["a"],`, nil, true, ""},
		{"bad item", `"colHeaders": ["a", null, "c"],`, nil, false, "Invalid value"},
		{"template", `"colHeaders": "X{col}/{x + 1} of {colsNum}",`, []string{"X10/1 of 3", "X11/2 of 3", "X12/3 of 3"}, false, ""},
		{"single expression template", `"colHeaders": "{col * 2}",`, []string{"20", "22", "24"}, false, ""},
		{"broken template", `"colHeaders": "c{missing}",`, []string{"c?", "c?", "c?"}, false, "Invalid expression"},
		{"wrong type", `"colHeaders": true,`, nil, false, "Invalid value"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, d, _, logs := open(t, map[string]string{
				"db.json": `{"grids": {"": {` + tc.headers + `"colsRange": [10, 12], "rowsRange": 0}}}`,
			})
			g, err := d.Grid(ctx, "")
			require.NoError(t, err)
			got, err := g.ColumnHeaders(ctx)
			if tc.wantErr {
				assert.ErrorIs(t, err, db.ErrInvalidData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			if tc.wantLog != "" {
				assert.Contains(t, logs.String(), tc.wantLog)
			}
		})
	}
}

func TestGrid_BrokenHeaderTemplateReportedOnce(t *testing.T) {
	ctx, d, _, logs := open(t, map[string]string{
		"db.json": `{"grids": {"": {"rowHeaders": "{nope}", "colsRange": 0, "rowsRange": 5}}}`,
	})
	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	got, err := g.RowHeaders(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.Equal(t, 1, countOf(logs.String(), "Invalid expression."))
}

func TestCells_Records(t *testing.T) {
	ctx, d, _, logs := open(t, map[string]string{"db.json": `{"grids": {"": {
		"colsRange": 1, "rowsRange": 1,
		"cells": {
			"fieldOrder": ["col", "row", "name", "type", "description"],
			"fieldTemplates": {
				"fullName": "{replace(name, '_', ' ')} #{id}",
				"color": "{get(COLORS, type, 0)}"
			},
			"templateConsts": {"colors": {"big": 3}},
			"data": [
				[0, 0, "a_b", "big", "Plain"],
				[1, 0, "c", "small"],
				"not a row",
				[0, 1, "d", "big", null, "extra"],
				[1, 1, "e_f", "big", {"Key": "v"}]
			]
		}
	}}}`})

	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	cells, err := g.Cells(ctx)
	require.NoError(t, err)

	_, err = cells.GetByIDSync(0)
	require.ErrorIs(t, err, db.ErrNotInitialized)

	require.NoError(t, cells.InitData(ctx))
	assert.Equal(t, 3, cells.Len())
	assert.Contains(t, logs.String(), "Invalid row, skipped.")
	assert.Contains(t, logs.String(), "Row longer than fieldOrder, skipped.")

	r0, err := cells.GetByIDSync(0)
	require.NoError(t, err)
	assert.Equal(t, "a b #0", r0.FullName())
	assert.Equal(t, "a_b", r0.Name())
	assert.Equal(t, 3.0, r0.Fields["color"])
	assert.Equal(t, db.Description{{Kind: db.Paragraph, Text: "Plain"}}, r0.Description)
	_, hasDesc := r0.Fields["description"]
	assert.False(t, hasDesc)

	r1, err := cells.GetByIDSync(1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r1.Fields["color"])
	assert.Nil(t, r1.Description)
	col, ok := r1.Int("col")
	assert.True(t, ok)
	assert.Equal(t, 1, col)

	r2, err := cells.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.ID)
	assert.Equal(t, "e f #2", r2.FullName())

	none, err := cells.GetByIDSync(3)
	require.NoError(t, err)
	assert.Nil(t, none)
	none, err = cells.GetByIDSync(-1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCells_ConcurrentInitDataFetchesOnce(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{
		"db.json":   `{"grids": {"": {"colsRange": 0, "rowsRange": 1, "cells": {"fieldOrder": ["name"], "data": {"@import": "rows.json"}}}}}`,
		"rows.json": `[["x"], ["y"]]`,
	})
	ctx, _ := testutil.LoggedContext(t)
	d := db.New(jsonstore.New("db.json", f))
	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	cells, err := g.Cells(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Count("rows.json"))

	gate := make(chan struct{})
	f.Gate = gate

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = cells.InitData(ctx)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.Count("rows.json"))
	assert.Equal(t, 2, cells.Len())
}

func TestCells_FailedInitRetries(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{
		"db.json":   `{"grids": {"": {"colsRange": 0, "rowsRange": 0, "cells": {"fieldOrder": ["name"], "data": {"@import": "rows.json"}}}}}`,
		"rows.json": `[["x"]]`,
	})
	ctx, _ := testutil.LoggedContext(t)
	d := db.New(jsonstore.New("db.json", f))
	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	cells, err := g.Cells(ctx)
	require.NoError(t, err)

	f.FailWith("rows.json", context.DeadlineExceeded)
	require.Error(t, cells.InitData(ctx))
	assert.False(t, cells.Initialized())

	f.FailWith("rows.json", nil)
	require.NoError(t, cells.InitData(ctx))
	assert.Equal(t, 1, cells.Len())
}

func TestCells_AllAsync(t *testing.T) {
	ctx, d, _, _ := open(t, map[string]string{"db.json": scenarioDB})
	g, err := d.Grid(ctx, "")
	require.NoError(t, err)
	cells, err := g.Cells(ctx)
	require.NoError(t, err)

	assert.Empty(t, collect(cells.All()))

	n := 0
	for r, err := range cells.AllAsync(ctx) {
		require.NoError(t, err)
		assert.Equal(t, n, r.ID)
		n++
	}
	assert.Equal(t, 6, n)
}

func TestCells_StructuralErrors(t *testing.T) {
	testCases := []struct {
		name  string
		cells string
	}{
		{"missing fieldOrder", `{"data": []}`},
		{"fieldOrder not strings", `{"fieldOrder": [1], "data": []}`},
		{"missing data", `{"fieldOrder": ["a"]}`},
		{"data not array", `{"fieldOrder": ["a"], "data": {}}`},
		{"templates not object", `{"fieldOrder": ["a"], "data": [], "fieldTemplates": []}`},
		{"template not string", `{"fieldOrder": ["a"], "data": [], "fieldTemplates": {"a": 1}}`},
		{"consts not object", `{"fieldOrder": ["a"], "data": [], "templateConsts": 1}`},
		{"cells not object", `[]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, d, _, _ := open(t, map[string]string{
				"db.json": `{"grids": {"": {"colsRange": 0, "rowsRange": 0, "cells": ` + tc.cells + `}}}`,
			})
			g, err := d.Grid(ctx, "")
			require.NoError(t, err)
			cells, err := g.Cells(ctx)
			require.NoError(t, err)
			err = cells.InitData(ctx)
			require.Error(t, err)
			assert.True(t, isDataError(err), "err=%v", err)
		})
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	r := &db.Record{ID: 4, Fields: map[string]any{"name": "x"}}
	raw, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 4, "name": "x"}`, string(raw))
}

func TestRecord_MarshalYAML(t *testing.T) {
	r := &db.Record{ID: 4, Fields: map[string]any{"name": "x"}, Description: db.Description{{Kind: db.Paragraph, Text: "hi"}}}
	raw, err := yaml.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, "description:\n    - kind: paragraph\n      text: hi\nid: 4\nname: x\n", string(raw))
}
