package jsonstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sdbv/internal/fetch"
	"github.com/vk/sdbv/internal/jsonpath"
	"github.com/vk/sdbv/internal/jsonstore"
	"github.com/vk/sdbv/internal/testutil"
)

var p = jsonpath.MustParse

func TestStore_GetWalksPaths(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{
		"db.json": `{"name":"db","grids":{"":{"colsRange":[0,3]}},"list":[10,20,30],"s":"text"}`,
	})
	s := jsonstore.New("db.json", f)
	ctx := context.Background()

	v, err := s.Get(ctx, p("name"), true)
	require.NoError(t, err)
	assert.Equal(t, "db", v)

	v, err = s.Get(ctx, p(`grids."".colsRange[1]`), true)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	v, err = s.Get(ctx, p("list[2]"), true)
	require.NoError(t, err)
	assert.Equal(t, float64(30), v)

	root, err := s.Get(ctx, nil, true)
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, root)

	assert.Equal(t, 1, f.Count("db.json"), "document must be fetched once")
}

func TestStore_MissingValues(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{"db.json": `{"a":{"b":1},"s":"text","n":null}`})
	s := jsonstore.New("db.json", f)
	ctx := context.Background()

	t.Run("absent terminal key", func(t *testing.T) {
		_, err := s.Get(ctx, p("a.c"), true)
		require.ErrorIs(t, err, jsonstore.ErrNotFound)
	})

	t.Run("absent intermediate key", func(t *testing.T) {
		_, err := s.Get(ctx, p("x.y"), true)
		require.ErrorIs(t, err, jsonstore.ErrMissingPath)
	})

	t.Run("traversal into a scalar", func(t *testing.T) {
		_, err := s.Get(ctx, p("s.length"), true)
		require.ErrorIs(t, err, jsonstore.ErrMissingPath)
		var pe *jsonstore.PathError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "(db.json).s.length: object does not exist", pe.Error())
	})

	t.Run("null is a value", func(t *testing.T) {
		v, err := s.Get(ctx, p("n"), true)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("out of range index", func(t *testing.T) {
		_, err := s.Get(ctx, p("a[3]"), true)
		require.ErrorIs(t, err, jsonstore.ErrNotFound)
	})
}

func TestStore_ConcurrentFirstAccessFetchesOnce(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{"db.json": `{"v":42}`})
	f.Gate = make(chan struct{})
	s := jsonstore.New("db.json", f)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Get(ctx, p("v"), true)
		}(i)
	}
	close(f.Gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, float64(42), results[i])
	}
	assert.Equal(t, 1, f.Count("db.json"))
}

func TestStore_NestedImportIsResolvedLazily(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{
		"db.json":    `{"top":1,"a":{"b":{"@import":"child.json"}}}`,
		"child.json": `{"x":"from child"}`,
	})
	s := jsonstore.New("db.json", f)
	ctx := context.Background()

	_, err := s.Get(ctx, p("top"), true)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Count("child.json"), "child must not be fetched at root parse time")

	_, err = s.Get(ctx, p("a"), false)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Count("child.json"), "non-recursive get must not open nested imports")

	v, err := s.Get(ctx, p("a.b.x"), true)
	require.NoError(t, err)
	assert.Equal(t, "from child", v)
	assert.Equal(t, 1, f.Count("child.json"))

	_, err = s.Get(ctx, p("a.b.x"), true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Count("child.json"), "resolved value must be cached in place")
}

func TestStore_RecursiveGetResolvesWholeSubtree(t *testing.T) {
	dir := filepath.Join("data", "sub")
	root := filepath.Join(dir, "db.json")
	f := testutil.NewMapFetcher(map[string]string{
		root:                            `{"cells":{"fieldOrder":["name"],"data":{"@import":"data.json"}},"list":[{"@import":"item.json"}]}`,
		filepath.Join(dir, "data.json"): `[["A"],{"@import":"more.json"}]`,
		filepath.Join(dir, "more.json"): `["B"]`,
		filepath.Join(dir, "item.json"): `"item"`,
	})
	s := jsonstore.New(root, f)
	ctx := context.Background()

	v, err := s.Get(ctx, p("cells"), true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"fieldOrder": []any{"name"},
		"data":       []any{[]any{"A"}, []any{"B"}},
	}, v)
	assert.Equal(t, 0, f.Count(filepath.Join(dir, "item.json")))

	all, err := s.Get(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []any{"item"}, all.(map[string]any)["list"])
	assert.Equal(t, 1, f.Count(filepath.Join(dir, "more.json")))
}

func TestStore_Dispose(t *testing.T) {
	ctx, logs := testutil.LoggedContext(t)
	f := testutil.NewMapFetcher(map[string]string{
		"db.json":   `{"name":"db","grids":{"g":{"cells":[1,2]}},"lazy":{"@import":"lazy.json"}}`,
		"lazy.json": `{"k":1}`,
	})
	s := jsonstore.New("db.json", f)

	t.Run("before load is a no-op", func(t *testing.T) {
		s.Dispose(ctx, p("name"))
		v, err := s.Get(ctx, p("name"), true)
		require.NoError(t, err)
		assert.Equal(t, "db", v)
	})

	t.Run("disposed value is not returned", func(t *testing.T) {
		s.Dispose(ctx, p("name"))
		_, err := s.Get(ctx, p("name"), true)
		require.ErrorIs(t, err, jsonstore.ErrDisposed)
		assert.Equal(t, 1, f.Count("db.json"))
	})

	t.Run("twice is a no-op", func(t *testing.T) {
		s.Dispose(ctx, p("name"))
		assert.Contains(t, logs.String(), "Object already disposed.")
	})

	t.Run("below a disposed ancestor", func(t *testing.T) {
		s.Dispose(ctx, p("grids.g"))
		s.Dispose(ctx, p("grids.g.cells"))
		assert.Contains(t, logs.String(), "Object ancestor already disposed.")
		_, err := s.Get(ctx, p("grids.g.cells[0]"), true)
		require.ErrorIs(t, err, jsonstore.ErrDisposed)
	})

	t.Run("into an unopened document", func(t *testing.T) {
		s.Dispose(ctx, p("lazy.k"))
		assert.Contains(t, logs.String(), "unopened document")
		assert.Equal(t, 0, f.Count("lazy.json"))
		v, err := s.Get(ctx, p("lazy.k"), true)
		require.NoError(t, err)
		assert.Equal(t, float64(1), v)
	})

	t.Run("missing key only warns", func(t *testing.T) {
		s.Dispose(ctx, p("nothing.here"))
		assert.Contains(t, logs.String(), "Dispose target does not exist.")
	})

	t.Run("root", func(t *testing.T) {
		s.Dispose(ctx, nil)
		_, err := s.Get(ctx, p("grids"), true)
		require.ErrorIs(t, err, jsonstore.ErrDisposed)
	})
}

func TestStore_FailedLoad(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{"db.json": `{"v":1}`, "bad.json": `{"v":`})
	ctx := context.Background()

	t.Run("transport failure is retried on the next call", func(t *testing.T) {
		boom := errors.New("connection refused")
		f.FailWith("db.json", boom)
		s := jsonstore.New("db.json", f)

		_, err := s.Get(ctx, nil, true)
		require.ErrorIs(t, err, fetch.ErrTransport)
		require.ErrorIs(t, err, boom)
		assert.False(t, s.Loaded())

		f.FailWith("db.json", nil)
		v, err := s.Get(ctx, p("v"), true)
		require.NoError(t, err)
		assert.Equal(t, float64(1), v)
	})

	t.Run("syntax error", func(t *testing.T) {
		s := jsonstore.New("bad.json", f)
		_, err := s.Get(ctx, nil, true)
		require.ErrorIs(t, err, jsonstore.ErrSyntax)
		assert.NotErrorIs(t, err, fetch.ErrTransport)
	})

	t.Run("failing import surfaces from recursive get", func(t *testing.T) {
		f2 := testutil.NewMapFetcher(map[string]string{"db.json": `{"a":[{"@import":"gone.json"}]}`})
		s := jsonstore.New("db.json", f2)
		_, err := s.Get(ctx, p("a"), true)
		require.ErrorIs(t, err, fetch.ErrTransport)
	})
}

func TestView_IsScoped(t *testing.T) {
	f := testutil.NewMapFetcher(map[string]string{"db.json": `{"grids":{"g":{"name":"G","cells":{"data":[]}}}}`})
	s := jsonstore.New("db.json", f)
	ctx := context.Background()

	view := s.View(p("grids.g"))
	assert.Equal(t, 0, f.Total(), "creating a view performs no I/O")

	v, err := view.Get(ctx, p("name"), true)
	require.NoError(t, err)
	assert.Equal(t, "G", v)

	cells := view.View(p("cells"))
	assert.Equal(t, ".grids.g.cells", cells.Path().String())

	cells.Dispose(ctx, p("data"))
	_, err = s.Get(ctx, p("grids.g.cells.data"), true)
	require.ErrorIs(t, err, jsonstore.ErrDisposed)
}

func TestStore_Keys(t *testing.T) {
	ctx, _ := testutil.LoggedContext(t)
	f := testutil.NewMapFetcher(map[string]string{
		"db.json": `{"grids": {"b": {}, "a": {}, "": {}}, "n": 1}`,
	})
	s := jsonstore.New("db.json", f)

	keys, ok, err := s.Keys(ctx, p("grids"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"", "a", "b"}, keys)

	_, ok, err = s.Keys(ctx, p("n"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Keys(ctx, p("missing"))
	assert.ErrorIs(t, err, jsonstore.ErrNotFound)
}
