// Package config loads settings from defaults, an optional .env file,
// CLASSWORK_ environment variables and command line flags, in that order of
// precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"classwork/internal/models"
	"classwork/internal/realtime"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "CLASSWORK"

// Config is the resolved application configuration.
type Config struct {
	Addr              string        `mapstructure:"addr"`
	DBPath            string        `mapstructure:"db_path"`
	StaticDir         string        `mapstructure:"static_dir"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	StrictTransitions bool          `mapstructure:"strict_transitions"`
	DueSoonWindow     time.Duration `mapstructure:"due_soon_window"`
	AI                AI            `mapstructure:"ai"`
	Redis             Redis         `mapstructure:"redis"`
}

// AI configures the suggestion adapter. An empty APIKey disables it.
type AI struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	MaxTokens         int    `mapstructure:"max_tokens"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// Redis configures cross-instance change fan-out. An empty Addr disables it.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Channel  string `mapstructure:"channel"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"addr":               "addr",
	"db":                 "db_path",
	"static":             "static_dir",
	"log-level":          "log_level",
	"log-format":         "log_format",
	"strict-transitions": "strict_transitions",
	"redis-addr":         "redis.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "data/classwork.db")
	v.SetDefault("static_dir", "web/dist")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("strict_transitions", false)
	v.SetDefault("due_soon_window", models.DefaultDueSoonWindow)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.max_concurrent", 4)
	v.SetDefault("ai.requests_per_minute", 30)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.channel", realtime.DefaultRedisChannel)
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db", "data/classwork.db", "Path to sqlite database file")
	fs.String("static", "web/dist", "Directory with built frontend")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("log-format", "text", "Log format (text, json)")
	fs.Bool("strict-transitions", false, "Reject project status regressions")
	fs.String("redis-addr", "", "Redis address for change fan-out between instances")
	fs.String("env-file", ".env", "Optional dotenv file")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return Config{}, err
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// loadDotEnv loads path when it exists. Variables already set win.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.DueSoonWindow <= 0 {
		errs = append(errs, errors.New("due_soon_window must be positive"))
	}
	if c.AI.MaxConcurrent < 0 || c.AI.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("ai limits must not be negative"))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
