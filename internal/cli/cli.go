package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vk/sdbv/internal/app"
	"github.com/vk/sdbv/internal/config"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
}

// env carries what every command needs once flags are parsed.
type env struct {
	outW, errW io.Writer
	v          *viper.Viper
	configPath string
	settings   *config.Settings
}

// newApp opens the database at location.
func (e *env) newApp(location string) *app.App {
	return app.NewApp(e.outW, e.errW, &app.Config{Location: location, Settings: e.settings})
}

// run executes fn and turns its failure into an exit code 1 error.
func (e *env) run(location string, fn func(*app.App) error) error {
	a := e.newApp(location)
	if err := fn(a); err != nil {
		a.Logger().Debug("Command failed.", "failure", app.Classify(err), "error", err)
		var exit *ExitError
		if errors.As(err, &exit) {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: app.Explain(location, err), Err: err}
	}
	return nil
}

// NewRootCommand builds the command tree writing to outW and errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	e := &env{outW: outW, errW: errW, v: config.New()}

	root := &cobra.Command{
		Use:   "sdbv",
		Short: "Browse grid databases stored as JSON documents",
		Long: `sdbv reads a grid database (a JSON document, possibly split across files
with {"@import": "..."} references) and shows its metadata, grids and cells.

Configuration sources, in order of precedence:
  1. Command line flags
  2. Environment variables (SDBV_*, e.g. SDBV_VIEW_WIDTH)
  3. The settings file (--config, or ./sdbv.yaml)
  4. Defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadFile(e.v, e.configPath); err != nil {
				return usageError(err)
			}
			s, err := config.Decode(e.v)
			if err != nil {
				return usageError(err)
			}
			e.settings = s
			slog.Debug("Settings resolved.", "command", cmd.Name(), "config", e.v.ConfigFileUsed())
			return nil
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	flags := root.PersistentFlags()
	flags.StringVar(&e.configPath, "config", "", "Settings file (default ./sdbv.yaml)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-format", "text", "Log output format: text or json")
	flags.Duration("timeout", 0, "Timeout for fetching remote documents (default 30s)")
	mustBind(e.v, config.KeyLogLevel, flags, "log-level")
	mustBind(e.v, config.KeyLogFormat, flags, "log-format")
	mustBind(e.v, config.KeyFetchTimeout, flags, "timeout")

	root.AddCommand(
		newListCommand(e),
		newInfoCommand(e),
		newGridsCommand(e),
		newCellsCommand(e),
		newViewCommand(e),
	)
	return root
}

func mustBind(v *viper.Viper, key string, fs *pflag.FlagSet, name string) {
	if err := config.BindFlag(v, key, fs.Lookup(name)); err != nil {
		panic(err)
	}
}

// Execute runs the command line and returns an *ExitError on failure.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit
	}
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf("%v\nRun 'sdbv --help' for usage.", err), Err: err}
}
