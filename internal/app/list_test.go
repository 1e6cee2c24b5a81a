package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sdbv/internal/app"
	"github.com/vk/sdbv/internal/testutil"
)

func TestListDatabases(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"birds.json":       birds,
		"parts/cells.json": `{"fieldOrder": [], "data": []}`,
		"broken.json":      `{"grids": `,
		"unnamed/db.json":  `{"grids": {"": {}}}`,
		"readme.txt":       "not json",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	ctx, logs := testutil.LoggedContext(t)

	got, err := app.ListDatabases(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []app.DatabaseFile{
		{Path: filepath.Join(dir, "birds.json"), Name: "Birds", Grids: 2},
		{Path: filepath.Join(dir, "unnamed", "db.json"), Grids: 1},
	}, got)
	assert.Contains(t, logs.String(), "Not a database, skipped.")
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestListDatabases_MissingDir(t *testing.T) {
	ctx, _ := testutil.LoggedContext(t)
	_, err := app.ListDatabases(ctx, filepath.Join(t.TempDir(), "nope"), nil)
	assert.ErrorContains(t, err, "listing")
}
