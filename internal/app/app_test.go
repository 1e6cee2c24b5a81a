package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sdbv/internal/app"
	"github.com/vk/sdbv/internal/config"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/fetch"
	"github.com/vk/sdbv/internal/testutil"
)

const birds = `{
	"name": "Birds",
	"version": 2,
	"buildDate": "2024-05-01",
	"buildSources": "manual",
	"description": ["# Intro", "Hello"],
	"grids": {
		"": {
			"name": "Main",
			"colsRange": 3,
			"rowsRange": [0, 1],
			"colHeaders": ["a", "b", "c", "d"],
			"cells": {
				"fieldOrder": ["name", "col", "row"],
				"data": [["Lesser Flamingo", 0, 0], ["Heron", 2, 1]]
			}
		},
		"broken": {"name": "Broken", "rowsRange": 1}
	}
}`

func settings() *config.Settings {
	return &config.Settings{
		LogLevel:  "debug",
		LogFormat: "text",
		View:      config.View{Width: 80, Height: 24, TileWidth: 8, Margin: 4, PoolSurplus: 128},
	}
}

func newApp(t *testing.T, doc string) (*app.App, *testutil.MapFetcher, *testutil.SafeBuffer) {
	t.Helper()
	logs := &testutil.SafeBuffer{}
	f := testutil.NewMapFetcher(map[string]string{"db.json": doc})
	a := app.NewApp(io.Discard, logs, &app.Config{Location: "db.json", Settings: settings(), Fetcher: f})
	return a, f, logs
}

func TestApp_Info(t *testing.T) {
	a, f, _ := newApp(t, birds)

	info, err := a.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db.json", info.Location)
	assert.Equal(t, "Birds", info.Name)
	assert.Equal(t, "2", info.Version)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), info.BuildDate)
	assert.Equal(t, []db.BuildSource{{Text: "manual"}}, info.BuildSources)
	require.Len(t, info.Description, 2)
	assert.Equal(t, db.Heading, info.Description[0].Kind)
	assert.Equal(t, "Hello", info.Description[1].Text)

	require.Len(t, info.Grids, 2)
	assert.Equal(t, app.GridSummary{ID: "", Name: "Main", Columns: 4, Rows: 2}, info.Grids[0])
	assert.Equal(t, "broken", info.Grids[1].ID)
	assert.ErrorIs(t, info.Grids[1].Err, db.ErrInvalidData)
	assert.Equal(t, 1, f.Count("db.json"))
}

func TestApp_Cells(t *testing.T) {
	a, _, logs := newApp(t, birds)

	var names []string
	err := a.Cells(context.Background(), "missing", func(r *db.Record) error {
		names = append(names, r.Name())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lesser Flamingo", "Heron"}, names)
	assert.Contains(t, logs.String(), "Invalid grid name")

	stop := errors.New("stop")
	err = a.Cells(context.Background(), "", func(*db.Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestApp_View(t *testing.T) {
	a, _, _ := newApp(t, birds)

	res, err := a.View(context.Background(), app.ViewRequest{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "      a       b       c       d\n")
	assert.Contains(t, res.Text, "0     Lesser\n")
	assert.Contains(t, res.Text, "1                     Heron")
	assert.Nil(t, res.Active)
	assert.Equal(t, app.PoolStats{Size: 2, Bound: 2, Free: 0}, res.Pool)
}

func TestApp_ViewActiveCell(t *testing.T) {
	a, _, _ := newApp(t, birds)

	res, err := a.View(context.Background(), app.ViewRequest{Cell: "Lesser Flamingo"})
	require.NoError(t, err)
	require.NotNil(t, res.Active)
	assert.Equal(t, 0, res.Active.ID)
	assert.Equal(t, "Lesser%20Flamingo", res.Anchor)
	assert.Contains(t, res.Text, "*a")
	assert.Contains(t, res.Text, "*0    *Lesser")

	_, err = a.View(context.Background(), app.ViewRequest{Cell: "Dodo"})
	assert.ErrorIs(t, err, app.ErrCellNotFound)
}

func TestApp_ViewScrolled(t *testing.T) {
	a, _, _ := newApp(t, birds)

	res, err := a.View(context.Background(), app.ViewRequest{ScrollColumn: 2})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "      c       d\n")
	assert.Contains(t, res.Text, "1     Heron")
	assert.NotContains(t, res.Text, "Lesser")
}

func TestApp_TransportFailure(t *testing.T) {
	a, f, _ := newApp(t, birds)
	f.FailWith("db.json", fmt.Errorf("connection refused"))

	_, err := a.Info(context.Background())
	require.Error(t, err)
	assert.Equal(t, app.FailureTransport, app.Classify(err))
	assert.Contains(t, app.Explain("db.json", err), "Could not load database file: db.json")
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want app.Failure
		msg  string
	}{
		{"nil", nil, app.FailureNone, ""},
		{"transport", fmt.Errorf("wrapped: %w", &fetch.TransportError{Location: "x", Err: io.EOF}), app.FailureTransport, "Could not load database file: db.json"},
		{"data", fmt.Errorf("wrapped: %w", db.ErrInvalidData), app.FailureData, "Error: wrapped: invalid data"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, app.Classify(tc.err))
			assert.Contains(t, app.Explain("db.json", tc.err), tc.msg)
		})
	}
}

func TestNewApp_LogFormat(t *testing.T) {
	logs := &testutil.SafeBuffer{}
	s := settings()
	s.LogFormat = "json"
	a := app.NewApp(io.Discard, logs, &app.Config{Location: "db.json", Settings: s, Fetcher: testutil.NewMapFetcher(nil)})
	a.Logger().Info("hello")
	assert.Contains(t, logs.String(), `"msg":"hello"`)
}
