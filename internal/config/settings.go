package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SDBV"
	configFileName = "sdbv"
	configFileType = "yaml"
)

// Keys.
const (
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyFetchTimeout     = "fetch_timeout"
	KeyViewWidth        = "view.width"
	KeyViewHeight       = "view.height"
	KeyViewTileWidth    = "view.tile_width"
	KeyViewMargin       = "view.margin"
	KeyViewPoolSurplus  = "view.pool_surplus"
	KeyViewColor        = "view.color"
	KeyMinimapURL       = "minimap.url"
	KeyMinimapNamespace = "minimap.namespace"
)

// ErrInvalid is returned for settings outside their allowed values.
var ErrInvalid = errors.New("invalid setting")

// Settings is the decoded configuration.
type Settings struct {
	LogLevel     string
	LogFormat    string
	FetchTimeout time.Duration
	View         View
	Minimap      Minimap
}

// View sizes the text viewport.
type View struct {
	Width       int
	Height      int
	TileWidth   int
	Margin      int
	PoolSurplus int
	Color       bool
}

// Minimap locates the optional socket.io minimap.
type Minimap struct {
	URL       string
	Namespace string
}

// New returns a viper instance with defaults and environment lookup.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyFetchTimeout, 30*time.Second)
	v.SetDefault(KeyViewWidth, 80)
	v.SetDefault(KeyViewHeight, 24)
	v.SetDefault(KeyViewTileWidth, 8)
	v.SetDefault(KeyViewMargin, 4)
	v.SetDefault(KeyViewPoolSurplus, 128)
	v.SetDefault(KeyViewColor, false)
	v.SetDefault(KeyMinimapURL, "")
	v.SetDefault(KeyMinimapNamespace, "/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads the settings file. With an explicit path the file must
// exist; otherwise sdbv.yaml is looked up in the working directory and the
// user config directory, and a missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sdbv"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// BindFlag binds a flag to a key so an explicitly set flag wins.
func BindFlag(v *viper.Viper, key string, f *pflag.Flag) error {
	if f == nil {
		return fmt.Errorf("bind %s: no such flag", key)
	}
	return v.BindPFlag(key, f)
}

// Decode reads and validates the settings.
func Decode(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:    strings.ToLower(v.GetString(KeyLogFormat)),
		FetchTimeout: v.GetDuration(KeyFetchTimeout),
		View: View{
			Width:       v.GetInt(KeyViewWidth),
			Height:      v.GetInt(KeyViewHeight),
			TileWidth:   v.GetInt(KeyViewTileWidth),
			Margin:      v.GetInt(KeyViewMargin),
			PoolSurplus: v.GetInt(KeyViewPoolSurplus),
			Color:       v.GetBool(KeyViewColor),
		},
		Minimap: Minimap{
			URL:       v.GetString(KeyMinimapURL),
			Namespace: v.GetString(KeyMinimapNamespace),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks enumerated and positive values.
func (s *Settings) Validate() error {
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log-level must be 'debug', 'info', 'warn', or 'error', got %q", ErrInvalid, s.LogLevel)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("%w: log-format must be 'text' or 'json', got %q", ErrInvalid, s.LogFormat)
	}
	if s.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch timeout must not be negative", ErrInvalid)
	}
	for name, n := range map[string]int{"view width": s.View.Width, "view height": s.View.Height, "tile width": s.View.TileWidth} {
		if n <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, name, n)
		}
	}
	if s.View.TileWidth < 2 {
		return fmt.Errorf("%w: tile width must be at least 2", ErrInvalid)
	}
	return nil
}
