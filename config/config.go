// Package config loads the settings of a beam client from a config file,
// a .env file and BEAM_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/beam"
	"github.com/adamwoolhether/beam/client"
)

const (
	envPrefix      = "BEAM"
	defaultEnvFile = ".env"
)

// Config holds everything needed to build an Environment and its transport.
type Config struct {
	Name              string            `mapstructure:"name"`
	BaseURL           string            `mapstructure:"base_url"`
	Headers           map[string]string `mapstructure:"headers"`
	CachePolicy       string            `mapstructure:"cache_policy"`
	UserAgent         string            `mapstructure:"user_agent"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	ThrottleRPS       float64           `mapstructure:"throttle_rps"`
	ThrottleBurst     int               `mapstructure:"throttle_burst"`
	NoFollowRedirects bool              `mapstructure:"no_follow_redirects"`
	LogLevel          string            `mapstructure:"log_level"`
}

// Option is a functional option for configuring Load.
type Option func(*options) error
type options struct {
	file    string
	envFile string
}

// WithFile reads the given config file. Its format follows the extension.
func WithFile(path string) Option {
	return func(opts *options) error {
		if path == "" {
			return errors.New("config file path must not be empty")
		}
		opts.file = path
		return nil
	}
}

// WithEnvFile loads variables from path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(opts *options) error {
		if path == "" {
			return errors.New("env file path must not be empty")
		}
		opts.envFile = path
		return nil
	}
}

// Load resolves the configuration. Without WithFile it looks for an
// optional beam.{yaml,json,toml} in the working directory. Without
// WithEnvFile a missing ./.env is not an error; variables already set in
// the process win over the env file.
func Load(optFns ...Option) (*Config, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying config option: %w", err)
		}
	}

	if err := loadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetDefault("name", "default")
	v.SetDefault("base_url", "")
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("cache_policy", beam.CacheBypass.String())
	v.SetDefault("user_agent", "")
	v.SetDefault("timeout", beam.DefaultTimeout)
	v.SetDefault("throttle_rps", 0)
	v.SetDefault("throttle_burst", 0)
	v.SetDefault("no_follow_redirects", false)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.file != "" {
		v.SetConfigFile(opts.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file[%s]: %w", opts.file, err)
		}
	} else {
		v.SetConfigName("beam")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// viper lower-cases map keys.
	headers := make(map[string]string, len(cfg.Headers))
	for k, val := range cfg.Headers {
		headers[http.CanonicalHeaderKey(k)] = val
	}
	cfg.Headers = headers

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout[%s] (must not be negative)", cfg.Timeout)
	}

	return &cfg, nil
}

// loadEnvFile loads path, or ./.env when path is empty. Only the implicit
// ./.env may be absent.
func loadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load(defaultEnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading env file[%s]: %w", defaultEnvFile, err)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file[%s]: %w", path, err)
	}

	return nil
}

// Environment builds the validated Environment. Default headers are
// detected from the process locale and build, then overridden by the
// configured user agent and headers.
func (c Config) Environment() (beam.Environment, error) {
	policy, err := beam.ParseCachePolicy(c.CachePolicy)
	if err != nil {
		return beam.Environment{}, fmt.Errorf("parsing cache policy: %w", err)
	}

	hc := beam.DetectHeaderConfig()
	if c.UserAgent != "" {
		hc.UserAgent = c.UserAgent
	}

	headers := hc.Headers()
	maps.Copy(headers, c.Headers)

	env, err := beam.NewEnvironment(c.Name, c.BaseURL,
		beam.WithHeaders(headers),
		beam.WithCachePolicy(policy),
	)
	if err != nil {
		return beam.Environment{}, err
	}

	return env, nil
}

// ClientOptions translates the transport settings into client options.
func (c Config) ClientOptions() []client.Option {
	opts := []client.Option{client.WithTimeout(c.Timeout)}

	if c.ThrottleRPS > 0 || c.ThrottleBurst > 0 {
		opts = append(opts, client.WithThrottle(c.ThrottleRPS, c.ThrottleBurst))
	}

	if c.NoFollowRedirects {
		opts = append(opts, client.WithNoFollowRedirects())
	}

	return opts
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parsing log level[%s]: %w", c.LogLevel, err)
	}

	return level, nil
}
