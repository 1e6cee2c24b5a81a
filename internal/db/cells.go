package db

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/vk/sdbv/internal/jsonpath"
	"github.com/vk/sdbv/internal/jsonstore"
	"github.com/vk/sdbv/internal/sdbvexpr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cells is the columnar cell table of a grid.
type Cells struct {
	grid   *Grid
	view   *jsonstore.View
	flight singleflight.Group

	mu   sync.RWMutex
	data *cellsData
}

type cellsData struct {
	fieldOrder []string
	// templates are evaluated in templateFields order, each seeing the
	// results of the previous ones.
	templateFields []string
	templates      map[string]*sdbvexpr.Template
	consts         map[string]any
	rows           [][]any
	log            *slog.Logger
}

func newCells(g *Grid, view *jsonstore.View) *Cells {
	return &Cells{grid: g, view: view}
}

// Grid returns the owning grid.
func (c *Cells) Grid() *Grid { return c.grid }

// Initialized reports whether InitData has completed successfully.
func (c *Cells) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data != nil
}

// Len returns the number of valid rows, 0 before InitData.
func (c *Cells) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return 0
	}
	return len(c.data.rows)
}

// FieldOrder returns the row layout.
func (c *Cells) FieldOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil
	}
	return append([]string(nil), c.data.fieldOrder...)
}

// InitData loads the table. Concurrent callers share one load; once loaded
// further calls return immediately. A failed load leaves the table
// uninitialized so a later call retries.
func (c *Cells) InitData(ctx context.Context) error {
	if c.Initialized() {
		return nil
	}
	_, err, _ := c.flight.Do("init", func() (any, error) {
		if c.Initialized() {
			return nil, nil
		}
		data, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.data = data
		c.mu.Unlock()
		c.view.Dispose(ctx, nil)
		return nil, nil
	})
	return err
}

func (c *Cells) load(ctx context.Context) (*cellsData, error) {
	log := logger(ctx)
	if _, ok, err := c.view.Keys(ctx, nil); err != nil {
		return nil, err
	} else if !ok {
		return nil, invalidData(c.view.Describe(nil), "value", nil, "Cells must be an object", "Object")
	}

	data := &cellsData{log: log}

	// Row data is usually the bulk of the document and may live in its own
	// file, so fetch it while the small fields are interpreted.
	g, gctx := errgroup.WithContext(ctx)
	var raw []any
	g.Go(func() error {
		p := jsonpath.Keys("data")
		value, err := c.view.Get(gctx, p, true)
		if err != nil {
			if errors.Is(err, jsonstore.ErrNotFound) {
				return invalidData(c.view.Describe(p), "value", nil, "Missing row data", "Array")
			}
			return err
		}
		rows, ok := value.([]any)
		if !ok {
			return invalidType(c.view.Describe(p), value, "Array")
		}
		raw = rows
		return nil
	})
	g.Go(func() error {
		return c.loadFields(gctx, data)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	at := c.view.Describe(jsonpath.Keys("data"))
	data.rows = make([][]any, 0, len(raw))
	width := len(data.fieldOrder)
	for i, item := range raw {
		row, ok := item.([]any)
		if !ok {
			warnValue(log, fmt.Sprintf("%s[%d]", at, i), "Invalid row, skipped.", item)
			continue
		}
		if len(row) > width {
			log.Warn("Row longer than fieldOrder, skipped.", "path", fmt.Sprintf("%s[%d]", at, i), "length", len(row), "fields", width)
			continue
		}
		copied := make([]any, width)
		for j, v := range row {
			copied[j] = deepCopy(v)
		}
		data.rows = append(data.rows, copied)
	}
	return data, nil
}

func (c *Cells) loadFields(ctx context.Context, data *cellsData) error {
	log := logger(ctx)

	p := jsonpath.Keys("fieldOrder")
	value, err := c.view.Get(ctx, p, true)
	if err != nil && !errors.Is(err, jsonstore.ErrNotFound) {
		return err
	}
	order, ok := value.([]any)
	if err != nil || !ok {
		return invalidData(c.view.Describe(p), "value", value, "", "Array")
	}
	data.fieldOrder = make([]string, len(order))
	for i, f := range order {
		name, ok := f.(string)
		if !ok {
			return invalidData(c.view.Describe(p.Append(jsonpath.Index(i))), "value", f, "", "String")
		}
		data.fieldOrder[i] = name
	}

	p = jsonpath.Keys("fieldTemplates")
	value, err = c.view.Get(ctx, p, true)
	switch {
	case errors.Is(err, jsonstore.ErrNotFound):
	case err != nil:
		return err
	default:
		templates, ok := value.(map[string]any)
		if !ok {
			return invalidType(c.view.Describe(p), value, "Object")
		}
		data.templates = make(map[string]*sdbvexpr.Template, len(templates))
		for _, field := range sortedKeys(templates) {
			src, ok := templates[field].(string)
			if !ok {
				return invalidType(c.view.Describe(p.Append(jsonpath.Key(field))), templates[field], "String")
			}
			tpl, err := c.grid.parser.Parse(src, func(template, expr string, err error) {
				log.Warn("Invalid expression in template.", "field", field, "expr", expr, "template", template, "error", err)
			})
			if err != nil {
				return err
			}
			data.templates[field] = tpl
			data.templateFields = append(data.templateFields, field)
		}
	}

	p = jsonpath.Keys("templateConsts")
	value, err = c.view.Get(ctx, p, true)
	switch {
	case errors.Is(err, jsonstore.ErrNotFound):
	case err != nil:
		return err
	default:
		consts, ok := value.(map[string]any)
		if !ok {
			return invalidType(c.view.Describe(p), value, "Object")
		}
		data.consts = make(map[string]any, len(consts))
		for k, v := range consts {
			data.consts[strings.ToUpper(k)] = deepCopy(v)
		}
	}
	return nil
}

// GetByIDSync returns the record at index. It requires a completed
// InitData and returns nil for an out of range index.
func (c *Cells) GetByIDSync(index int) (*Record, error) {
	c.mu.RLock()
	data := c.data
	c.mu.RUnlock()
	if data == nil {
		return nil, ErrNotInitialized
	}
	if index < 0 || index >= len(data.rows) {
		return nil, nil
	}
	return data.record(index), nil
}

// GetByID is GetByIDSync that loads the table first when needed.
func (c *Cells) GetByID(ctx context.Context, index int) (*Record, error) {
	if err := c.InitData(ctx); err != nil {
		return nil, err
	}
	return c.GetByIDSync(index)
}

// All yields every record in row order. It yields nothing before InitData
// has completed. The sequence can be ranged over any number of times.
func (c *Cells) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		c.mu.RLock()
		data := c.data
		c.mu.RUnlock()
		if data == nil {
			return
		}
		for i := range data.rows {
			if !yield(data.record(i)) {
				return
			}
		}
	}
}

// AllAsync loads the table when needed and yields every record. A load
// failure is yielded once as the error.
func (c *Cells) AllAsync(ctx context.Context) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		if err := c.InitData(ctx); err != nil {
			yield(nil, err)
			return
		}
		for r := range c.All() {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (d *cellsData) record(index int) *Record {
	row := d.rows[index]
	fields := make(map[string]any, len(d.fieldOrder)+len(d.templates))
	for i, name := range d.fieldOrder {
		fields[name] = row[i]
	}
	for _, field := range d.templateFields {
		bindings := make(map[string]any, len(fields)+len(d.consts)+1)
		bindings["id"] = float64(index)
		for k, v := range fields {
			bindings[k] = v
		}
		for k, v := range d.consts {
			bindings[k] = v
		}
		v, err := d.templates[field].Evaluate(bindings, func(expr string, err error) {
			d.log.Debug("Template evaluation failed.", "id", index, "field", field, "expr", expr, "error", err)
		})
		if err != nil {
			d.log.Warn("Template evaluation failed.", "id", index, "field", field, "error", err)
			v = nil
		}
		fields[field] = v
	}
	rec := &Record{ID: index, Fields: fields}
	if desc, ok := fields["description"]; ok && desc != nil {
		rec.Description = parseDescription(d.log, fmt.Sprintf("cells[%d].description", index), desc)
		delete(fields, "description")
	}
	return rec
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	}
	return v
}
