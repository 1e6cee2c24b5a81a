// Package minimapio publishes minimap updates to a remote drawing surface
// over socket.io.
package minimapio

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/gridview"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted by the publisher.
const (
	EventSize     = "minimap:size"
	EventViewRect = "minimap:view"
	EventCells    = "minimap:cells"
)

// DefaultConnectTimeout bounds Dial when no timeout is given.
const DefaultConnectTimeout = 15 * time.Second

// EmitFunc sends one event with a JSON-serializable payload.
type EmitFunc func(event string, payload any)

// SizePayload is the body of EventSize.
type SizePayload struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// ViewRectPayload is the body of EventViewRect.
type ViewRectPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CellPayload is one element of the EventCells body.
type CellPayload struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Color  string `json:"color,omitempty"`
}

// Publisher implements gridview.Minimap by emitting events.
type Publisher struct {
	emit   EmitFunc
	close  func()
	logger *slog.Logger
	last   *gridview.FracRect
}

var _ gridview.Minimap = (*Publisher)(nil)

// New creates a publisher sending through emit.
func New(ctx context.Context, emit EmitFunc) *Publisher {
	return &Publisher{emit: emit, close: func() {}, logger: ctxlog.FromContext(ctx)}
}

// SetSize emits the grid extent and forgets the last view rect.
func (p *Publisher) SetSize(columns, rows int) {
	p.last = nil
	p.emit(EventSize, SizePayload{Columns: columns, Rows: rows})
}

// SetViewRect emits the rect unless it equals the previous one.
func (p *Publisher) SetViewRect(r gridview.FracRect) {
	if p.last != nil && *p.last == r {
		return
	}
	p.last = &r
	p.emit(EventViewRect, ViewRectPayload{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
}

// DrawCells emits the coloured cell rectangles.
func (p *Publisher) DrawCells(cells []gridview.MinimapCell) {
	out := make([]CellPayload, len(cells))
	for i, c := range cells {
		out[i] = CellPayload{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height, Color: c.Color}
	}
	p.logger.Debug("Publishing minimap cells.", "count", len(out))
	p.emit(EventCells, out)
}

// Close disconnects the underlying socket, if any.
func (p *Publisher) Close() error {
	p.close()
	return nil
}

// DialOptions configures Dial.
type DialOptions struct {
	Namespace          string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Dial connects to a socket.io server and returns a publisher bound to the
// connection.
func Dial(ctx context.Context, rawURL string, o DialOptions) (*Publisher, error) {
	base, path, err := splitURL(rawURL)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("url", rawURL)
	if o.Timeout <= 0 {
		o.Timeout = DefaultConnectTimeout
	}
	ns := o.Namespace
	if ns == "" {
		ns = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(base, opts)
	io := manager.Socket(ns, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Minimap connected.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", errs[0])
			}
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("minimap connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("minimap connection: %w", ctx.Err())
	case <-time.After(o.Timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for minimap connection", o.Timeout)
	}

	p := New(ctx, func(event string, payload any) { io.Emit(event, payload) })
	p.close = func() {
		logger.Debug("Minimap disconnected.", "sid", io.Id())
		io.Disconnect()
	}
	return p, nil
}

// splitURL separates the manager base URL from the socket.io path.
func splitURL(raw string) (base, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid minimap URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return "", "", fmt.Errorf("invalid minimap URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid minimap URL %q: missing host", raw)
	}
	path = u.Path
	if path == "" || path == "/" {
		path = "/socket.io/"
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), path, nil
}
