// Package config loads hub configuration.
//
// Configuration is read from a TOML, YAML or JSON file, selected by
// extension, and then overlaid with EVENTHUB_* environment variables:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[hub]
//	max_chain_depth = 1
//	response_timeout = "5s"
//
//	[metrics]
//	addr = ":9090"
//
//	[store]
//	dir = "/var/lib/eventhub"
//
// Missing keys keep their defaults.
package config

import (
	"fmt"
	"slices"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTHUB_"

// Log levels accepted by Validate.
var logLevels = []string{"trace", "debug", "info", "warn", "error", "disabled"}

// Config is the complete hub configuration.
type Config struct {
	Log     LogConfig
	Hub     HubConfig
	Metrics MetricsConfig
	Store   StoreConfig
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string
	Format string // console or json
}

// HubConfig maps onto hub options.
type HubConfig struct {
	MaxChainDepth   int
	ResponseTimeout time.Duration
}

// MetricsConfig controls the metrics listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// StoreConfig selects the extension data store. An empty Dir keeps data in
// memory.
type StoreConfig struct {
	Dir string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Hub: HubConfig{
			MaxChainDepth:   1,
			ResponseTimeout: 5 * time.Second,
		},
	}
}

// Load builds a configuration from defaults, the file at path and the
// environment, in increasing precedence. An empty path skips the file.
func Load(path string) (Config, error) {
	merged := make(map[string]any)
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		merged = DeepMerge(merged, file)
	}

	env, err := NewEnvLoader(EnvPrefix).Load()
	if err != nil {
		return Config{}, err
	}
	merged = DeepMerge(merged, env)

	cfg := Default()
	if err := cfg.apply(merged); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the hub cannot use.
func (c Config) Validate() error {
	if c.Hub.MaxChainDepth < 0 {
		return &ValidationError{Path: "hub.max_chain_depth", Message: "must not be negative"}
	}
	if c.Hub.ResponseTimeout < 0 {
		return &ValidationError{Path: "hub.response_timeout", Message: "must not be negative"}
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return &ValidationError{Path: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return &ValidationError{Path: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// apply copies recognised keys from a merged configuration map.
func (c *Config) apply(m map[string]any) error {
	var err error
	set := func(path string, fn func(v any) error) {
		v, ok := getByPath(m, path)
		if !ok || err != nil {
			return
		}
		if e := fn(v); e != nil {
			err = &ValidationError{Path: path, Message: e.Error()}
		}
	}

	set("log.level", func(v any) error { return asString(v, &c.Log.Level) })
	set("log.format", func(v any) error { return asString(v, &c.Log.Format) })
	set("hub.max_chain_depth", func(v any) error { return asInt(v, &c.Hub.MaxChainDepth) })
	set("hub.response_timeout", func(v any) error { return asDuration(v, &c.Hub.ResponseTimeout) })
	set("metrics.addr", func(v any) error { return asString(v, &c.Metrics.Addr) })
	set("store.dir", func(v any) error { return asString(v, &c.Store.Dir) })
	return err
}
