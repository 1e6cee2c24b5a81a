package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/sdbv/internal/config"
	"github.com/vk/sdbv/internal/ctxlog"
	"github.com/vk/sdbv/internal/db"
	"github.com/vk/sdbv/internal/fetch"
	"github.com/vk/sdbv/internal/jsonstore"
)

// Config holds everything an App needs.
type Config struct {
	// Location is the database document path or URL.
	Location string
	Settings *config.Settings
	// Fetcher overrides the default file/HTTP router.
	Fetcher fetch.Fetcher
}

// App encapsulates one opened database and its logger.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	settings *config.Settings
	db       *db.Database
}

// NewApp builds an App. Logs go to logW, command output to outW. Nothing is
// fetched until a use case runs.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	s := cfg.Settings
	if s == nil {
		s = &config.Settings{LogLevel: "info", LogFormat: "text"}
	}
	logger := newLogger(logW, s.LogLevel, s.LogFormat)
	f := cfg.Fetcher
	if f == nil {
		f = fetch.NewRouter(s.FetchTimeout)
	}
	logger.Debug("App configured.", "location", cfg.Location, "remote", fetch.IsRemote(cfg.Location))
	return &App{
		outW:     outW,
		logger:   logger,
		settings: s,
		db:       db.New(jsonstore.New(cfg.Location, f)),
	}
}

// Context attaches the App logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Database returns the opened database.
func (a *App) Database() *db.Database { return a.db }

// Logger returns the App logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Output returns the writer command output goes to.
func (a *App) Output() io.Writer { return a.outW }

// Settings returns the settings the App was built with.
func (a *App) Settings() *config.Settings { return a.settings }
