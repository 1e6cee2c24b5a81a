package jsonstore

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/fetch"
	"github.com/vk/sdbv/internal/jsonpath"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ImportDirectiveKey marks an object that stands for another document.
const ImportDirectiveKey = "@import"

// Reader is the read/dispose contract shared by Store and View.
type Reader interface {
	Get(ctx context.Context, path jsonpath.Path, recursive bool) (any, error)
	View(path jsonpath.Path) *View
	Dispose(ctx context.Context, path jsonpath.Path)
}

// disposedMarker replaces released values in the tree.
type disposedMarker struct{}

var disposed = &disposedMarker{}

// family is shared by a root store and every child created while parsing,
// so all mutations of the combined tree are serialized by one lock.
type family struct {
	mu      sync.Mutex
	fetcher fetch.Fetcher
}

// Store owns one JSON document, fetched and parsed at most once.
type Store struct {
	location string
	fam      *family
	flight   singleflight.Group

	// guarded by fam.mu
	loaded bool
	root   any
}

// New creates a store for the document at location. No I/O happens until
// the first Get.
func New(location string, fetcher fetch.Fetcher) *Store {
	return &Store{location: location, fam: &family{fetcher: fetcher}}
}

// Location returns the document location this store reads from.
func (s *Store) Location() string { return s.location }

// Loaded reports whether the document has been fetched and parsed.
func (s *Store) Loaded() bool {
	s.fam.mu.Lock()
	defer s.fam.mu.Unlock()
	return s.loaded
}

// View returns a scoped accessor rooted at path. It performs no I/O.
func (s *Store) View(path jsonpath.Path) *View {
	return &View{store: s, base: path.Append()}
}

// Get walks path and returns the raw value found there, resolving any
// import placeholders met on the way. When recursive is true every
// placeholder inside the returned subtree is resolved too.
func (s *Store) Get(ctx context.Context, path jsonpath.Path, recursive bool) (any, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	s.fam.mu.Lock()
	cur := s.root
	s.fam.mu.Unlock()

	if cur == any(disposed) {
		return nil, s.pathError(nil, ErrDisposed, "")
	}

	for i, seg := range path {
		s.fam.mu.Lock()
		next, found, err := s.step(cur, path[:i], seg)
		s.fam.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if !found {
			if i == len(path)-1 {
				return nil, s.pathError(path, ErrNotFound, "")
			}
			return nil, s.pathError(path[:i+1], ErrMissingPath, "")
		}
		if child, ok := next.(*Store); ok {
			v, err := child.Get(ctx, nil, false)
			if err != nil {
				return nil, err
			}
			s.fam.mu.Lock()
			replaceChild(cur, seg, child, v)
			s.fam.mu.Unlock()
			next = v
		}
		if next == any(disposed) {
			return nil, s.pathError(path[:i+1], ErrDisposed, "")
		}
		cur = next
	}

	if recursive {
		if err := s.resolveAll(ctx, cur); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Keys returns the sorted keys of the object at path. ok is false when the
// value there is not an object. Keys are copied under the store lock, so
// the result is safe to use while other goroutines read or dispose.
func (s *Store) Keys(ctx context.Context, path jsonpath.Path) (keys []string, ok bool, err error) {
	v, err := s.Get(ctx, path, false)
	if err != nil {
		return nil, false, err
	}
	s.fam.mu.Lock()
	defer s.fam.mu.Unlock()
	obj, isObj := v.(map[string]any)
	if !isObj {
		return nil, false, nil
	}
	keys = make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, true, nil
}

// step returns the value stored under seg inside cur. found is false when
// the key or index is absent.
func (s *Store) step(cur any, at jsonpath.Path, seg jsonpath.Segment) (any, bool, error) {
	switch c := cur.(type) {
	case map[string]any:
		key := seg.Key
		if seg.Kind == jsonpath.KindIndex {
			key = strconv.Itoa(seg.Index)
		}
		v, ok := c[key]
		return v, ok, nil
	case []any:
		idx := seg.Index
		if seg.Kind != jsonpath.KindIndex {
			n, err := strconv.Atoi(seg.Key)
			if err != nil {
				return nil, false, nil
			}
			idx = n
		}
		if idx < 0 || idx >= len(c) {
			return nil, false, nil
		}
		return c[idx], true, nil
	case *disposedMarker:
		return nil, false, s.pathError(at, ErrDisposed, "")
	default:
		return nil, false, s.pathError(at.Append(seg), ErrMissingPath, "")
	}
}

// replaceChild swaps a resolved child store for its value, unless another
// caller already did.
func replaceChild(container any, seg jsonpath.Segment, child *Store, v any) {
	switch c := container.(type) {
	case map[string]any:
		key := seg.Key
		if seg.Kind == jsonpath.KindIndex {
			key = strconv.Itoa(seg.Index)
		}
		if cur, ok := c[key].(*Store); ok && cur == child {
			c[key] = v
		}
	case []any:
		idx := seg.Index
		if seg.Kind != jsonpath.KindIndex {
			idx, _ = strconv.Atoi(seg.Key)
		}
		if idx >= 0 && idx < len(c) {
			if cur, ok := c[idx].(*Store); ok && cur == child {
				c[idx] = v
			}
		}
	}
}

type pendingImport struct {
	container any
	seg       jsonpath.Segment
	child     *Store
}

// resolveAll loads every child store reachable from node, concurrently,
// and splices the results into the tree.
func (s *Store) resolveAll(ctx context.Context, node any) error {
	s.fam.mu.Lock()
	var pending []pendingImport
	collectImports(node, &pending)
	s.fam.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	results := make([]any, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		g.Go(func() error {
			v, err := p.child.Get(gctx, nil, true)
			results[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.fam.mu.Lock()
	for i, p := range pending {
		replaceChild(p.container, p.seg, p.child, results[i])
	}
	s.fam.mu.Unlock()
	return nil
}

func collectImports(node any, out *[]pendingImport) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if child, ok := v.(*Store); ok {
				*out = append(*out, pendingImport{container: n, seg: jsonpath.Key(k), child: child})
				continue
			}
			collectImports(v, out)
		}
	case []any:
		for i, v := range n {
			if child, ok := v.(*Store); ok {
				*out = append(*out, pendingImport{container: n, seg: jsonpath.Index(i), child: child})
				continue
			}
			collectImports(v, out)
		}
	}
}

// load fetches and parses the document once. Concurrent callers wait for
// the same in-flight load.
func (s *Store) load(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	_, err, _ := s.flight.Do("load", func() (any, error) {
		if s.Loaded() {
			return nil, nil
		}
		logger := ctxlog.FromContext(ctx)
		logger.Debug("Loading document.", "location", s.location)

		data, err := s.fam.fetcher.Fetch(ctx, s.location)
		if err != nil {
			return nil, err
		}
		var root any
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, s.pathError(nil, ErrSyntax, err.Error())
		}
		root = s.replaceImports(ctx, root, nil)

		s.fam.mu.Lock()
		s.root = root
		s.loaded = true
		s.fam.mu.Unlock()
		logger.Debug("Document loaded.", "location", s.location, "bytes", len(data))
		return nil, nil
	})
	return err
}

// replaceImports turns every import directive object into a child store.
func (s *Store) replaceImports(ctx context.Context, node any, at jsonpath.Path) any {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n[ImportDirectiveKey]; ok {
			if loc, ok := ref.(string); ok {
				return &Store{location: fetch.Resolve(s.location, loc), fam: s.fam}
			}
			ctxlog.FromContext(ctx).Warn("Ignoring import directive with non-string location.",
				"path", s.displayPath(at))
		}
		for k, v := range n {
			n[k] = s.replaceImports(ctx, v, at.Append(jsonpath.Key(k)))
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = s.replaceImports(ctx, v, at.Append(jsonpath.Index(i)))
		}
		return n
	default:
		return node
	}
}

// Dispose releases the value at path. Redundant or impossible disposals
// are logged and otherwise ignored.
func (s *Store) Dispose(ctx context.Context, path jsonpath.Path) {
	logger := ctxlog.FromContext(ctx)
	s.fam.mu.Lock()
	defer s.fam.mu.Unlock()

	if !s.loaded {
		logger.Debug("Dispose skipped: document not loaded.", "path", s.displayPath(path))
		return
	}
	if len(path) == 0 {
		if s.root == any(disposed) {
			logger.Debug("Object already disposed.", "path", s.displayPath(path))
			return
		}
		s.root = disposed
		return
	}

	container := s.root
	for i, seg := range path[:len(path)-1] {
		if container == any(disposed) {
			logger.Debug("Object ancestor already disposed.", "path", s.displayPath(path), "ancestor", s.displayPath(path[:i]))
			return
		}
		next, found, _ := s.step(container, path[:i], seg)
		if !found {
			logger.Warn("Dispose target does not exist.", "path", s.displayPath(path), "missing", s.displayPath(path[:i+1]))
			return
		}
		if _, ok := next.(*Store); ok {
			logger.Debug("Dispose skipped: path leads into an unopened document.", "path", s.displayPath(path))
			return
		}
		container = next
	}
	if container == any(disposed) {
		logger.Debug("Object ancestor already disposed.", "path", s.displayPath(path))
		return
	}

	last := path[len(path)-1]
	cur, found, _ := s.step(container, path[:len(path)-1], last)
	if !found {
		logger.Warn("Dispose target does not exist.", "path", s.displayPath(path))
		return
	}
	if cur == any(disposed) {
		logger.Debug("Object already disposed.", "path", s.displayPath(path))
		return
	}
	switch c := container.(type) {
	case map[string]any:
		key := last.Key
		if last.Kind == jsonpath.KindIndex {
			key = strconv.Itoa(last.Index)
		}
		c[key] = disposed
	case []any:
		idx := last.Index
		if last.Kind != jsonpath.KindIndex {
			idx, _ = strconv.Atoi(last.Key)
		}
		c[idx] = disposed
	}
}

func (s *Store) pathError(path jsonpath.Path, kind error, detail string) error {
	return &PathError{File: s.location, Path: path.Append(), Err: kind, Detail: detail}
}

func (s *Store) displayPath(path jsonpath.Path) string {
	return jsonpath.Path{jsonpath.File(s.location)}.Concat(path).String()
}

// Describe renders path prefixed with the document marker, the notation
// used in diagnostics.
func (s *Store) Describe(path jsonpath.Path) string { return s.displayPath(path) }

// View is a non-owning accessor scoped to a base path of a Store.
type View struct {
	store *Store
	base  jsonpath.Path
}

// Path returns the view's base path.
func (v *View) Path() jsonpath.Path { return v.base.Append() }

// Store returns the owning store.
func (v *View) Store() *Store { return v.store }

// Get implements Reader relative to the view's base path.
func (v *View) Get(ctx context.Context, path jsonpath.Path, recursive bool) (any, error) {
	return v.store.Get(ctx, v.base.Concat(path), recursive)
}

// View implements Reader.
func (v *View) View(path jsonpath.Path) *View {
	return &View{store: v.store, base: v.base.Concat(path)}
}

// Keys implements Store.Keys relative to the view's base path.
func (v *View) Keys(ctx context.Context, path jsonpath.Path) ([]string, bool, error) {
	return v.store.Keys(ctx, v.base.Concat(path))
}

// Describe renders path, relative to the view, for diagnostics.
func (v *View) Describe(path jsonpath.Path) string {
	return v.store.displayPath(v.base.Concat(path))
}

// Dispose implements Reader relative to the view's base path.
func (v *View) Dispose(ctx context.Context, path jsonpath.Path) {
	v.store.Dispose(ctx, v.base.Concat(path))
}
