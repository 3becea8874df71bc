// Package config loads the eventstate configuration from YAML, an optional
// .env file and EVENTSTATE_* environment variables, and validates the result
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/eventstate/internal/state"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTSTATE_"

type Config struct {
	State struct {
		// Path of the SQLite state database.
		Path string `yaml:"path"`
	} `yaml:"state"`

	Log struct {
		// Path of the SQLite event log replayed by `replay` and `serve`.
		Path string `yaml:"path"`
	} `yaml:"log"`

	UsageMetrics struct {
		BucketDuration time.Duration `yaml:"bucket_duration"`
	} `yaml:"usage_metrics"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// debug | info | warn | error
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	c := &Config{}
	c.State.Path = "eventstate.db"
	c.UsageMetrics.BucketDuration = state.DefaultUsageBucketDuration
	c.Server.Addr = ":8080"
	c.LogLevel = "info"
	return c
}

// Load builds the effective configuration. path and envFile are optional;
// a missing .env file is not an error, a missing config file is.
// Precedence, lowest first: defaults, YAML file, .env file, environment.
func Load(path, envFile string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := c.decode(b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decode(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("STATE_PATH"); ok {
		c.State.Path = v
	}
	if v, ok := get("LOG_PATH"); ok {
		c.Log.Path = v
	}
	if v, ok := get("USAGE_BUCKET_DURATION"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sUSAGE_BUCKET_DURATION: %w", EnvPrefix, err)
		}
		c.UsageMetrics.BucketDuration = d
	}
	if v, ok := get("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// Validate unifies the configuration with the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(map[string]any{
		"state":         map[string]any{"path": c.State.Path},
		"log":           map[string]any{"path": c.Log.Path},
		"usage_metrics": map[string]any{"bucket_duration_ms": c.UsageMetrics.BucketDuration.Milliseconds()},
		"server":        map[string]any{"addr": c.Server.Addr},
		"log_level":     c.LogLevel,
	})

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StateOptions returns the partition options derived from the config.
func (c *Config) StateOptions() state.Options {
	return state.Options{UsageBucketDuration: c.UsageMetrics.BucketDuration}
}
