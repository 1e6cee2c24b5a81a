// Package gridview renders a Model of possibly millions of cells through a
// small, bounded pool of reusable tiles.
//
// The renderer never draws anything itself. A Host creates tiles and
// headers and reports the viewport; the renderer decides which coordinates
// are visible, binds pooled tiles to them, and keeps the active cell, its
// column header and its row header highlighted together. All work runs as
// units on a scheduler.Queue, so a fresh scroll or resize cancels stale
// rebinding instead of competing with it.
//
// Lifecycle per model: Empty, then Configuring (pool torn down, headers
// attached, geometry probed), then Interactive. SetModel re-enters
// Configuring.
package gridview
