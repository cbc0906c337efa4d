// Package config loads docmap settings from an optional .docmap.yaml file and
// DOCMAP_* environment variables, and sets up process logging from them.
//
// Precedence, lowest first: built-in defaults, config file, environment.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
// DOCMAP_LOG_LEVEL sets log.level, DOCMAP_STORE sets store, and so on.
const EnvPrefix = "DOCMAP"

// FileName is the config file searched for when no explicit file is given.
const FileName = ".docmap"

// Config holds docmap settings.
type Config struct {
	Log LogConfig `mapstructure:"log"`

	// Codec names the identifier codec: objectid or uuid.
	Codec string `mapstructure:"codec"`

	// Views are the view modes applied when a request names none.
	Views []string `mapstructure:"views"`

	// Store is the plan store path. Empty disables persistence.
	Store string `mapstructure:"store"`

	// Format is the default CLI output format: text or json.
	Format string `mapstructure:"format"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "warn", Format: "text"},
		Codec:  "objectid",
		Views:  []string{},
		Format: "text",
	}
}

// Load reads settings. When file is empty, FileName is looked up in dirs
// (the working directory when none are given) and may be absent; an explicit
// file must exist.
func Load(file string, dirs ...string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("codec", def.Codec)
	v.SetDefault("views", def.Views)
	v.SetDefault("store", def.Store)
	v.SetDefault("format", def.Format)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if len(dirs) == 0 {
			dirs = []string{"."}
		}
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Codec) {
	case "objectid", "uuid":
	default:
		return fmt.Errorf("config: codec must be objectid or uuid, got %q", c.Codec)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: format must be text or json, got %q", c.Format)
	}
	return nil
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (c LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(c.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// SetupLogging installs the configured logger as the slog default.
func (c LogConfig) SetupLogging(w io.Writer, verbose bool) *slog.Logger {
	logger := c.NewLogger(w, verbose)
	slog.SetDefault(logger)
	return logger
}
