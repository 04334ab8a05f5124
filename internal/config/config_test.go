package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Hub.MaxChainDepth != 1 {
		t.Errorf("MaxChainDepth = %d, want 1", cfg.Hub.MaxChainDepth)
	}
	if cfg.Hub.ResponseTimeout != 5*time.Second {
		t.Errorf("ResponseTimeout = %v, want 5s", cfg.Hub.ResponseTimeout)
	}
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "hub.toml", `
[log]
level = "debug"
format = "json"

[hub]
max_chain_depth = 3
response_timeout = "250ms"

[metrics]
addr = ":9090"
`},
		{"yaml", "hub.yaml", `
log:
  level: debug
  format: json
hub:
  max_chain_depth: 3
  response_timeout: 250ms
metrics:
  addr: ":9090"
`},
		{"json", "hub.json", `{
  "log": {"level": "debug", "format": "json"},
  "hub": {"max_chain_depth": 3, "response_timeout": "250ms"},
  "metrics": {"addr": ":9090"}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
				t.Errorf("Log = %+v", cfg.Log)
			}
			if cfg.Hub.MaxChainDepth != 3 {
				t.Errorf("MaxChainDepth = %d, want 3", cfg.Hub.MaxChainDepth)
			}
			if cfg.Hub.ResponseTimeout != 250*time.Millisecond {
				t.Errorf("ResponseTimeout = %v, want 250ms", cfg.Hub.ResponseTimeout)
			}
			if cfg.Metrics.Addr != ":9090" {
				t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
			}
			if cfg.Store.Dir != "" {
				t.Errorf("Store.Dir = %q, want default", cfg.Store.Dir)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EVENTHUB_LOG_LEVEL", "warn")
	t.Setenv("EVENTHUB_MAX_CHAIN_DEPTH", "0")
	t.Setenv("EVENTHUB_RESPONSE_TIMEOUT", "2s")
	t.Setenv("EVENTHUB_DATA_DIR", "/tmp/eventhub")

	path := writeFile(t, "hub.toml", "[log]\nlevel = \"debug\"\n[hub]\nmax_chain_depth = 4\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Hub.MaxChainDepth != 0 {
		t.Errorf("MaxChainDepth = %d, want 0", cfg.Hub.MaxChainDepth)
	}
	if cfg.Hub.ResponseTimeout != 2*time.Second {
		t.Errorf("ResponseTimeout = %v, want 2s", cfg.Hub.ResponseTimeout)
	}
	if cfg.Store.Dir != "/tmp/eventhub" {
		t.Errorf("Store.Dir = %q", cfg.Store.Dir)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(error) bool
	}{
		{"unsupported", "hub.ini", "x=1", func(err error) bool { return errors.Is(err, ErrUnsupportedFormat) }},
		{"malformed", "hub.toml", "[log\nlevel=", func(err error) bool {
			var pe *ParseError
			return errors.As(err, &pe)
		}},
		{"wrong type", "hub.yaml", "hub:\n  max_chain_depth: lots\n", func(err error) bool {
			var ve *ValidationError
			return errors.As(err, &ve) && ve.Path == "hub.max_chain_depth"
		}},
		{"negative depth", "hub.json", `{"hub": {"max_chain_depth": -1}}`, func(err error) bool {
			var ve *ValidationError
			return errors.As(err, &ve) && ve.Path == "hub.max_chain_depth"
		}},
		{"unknown level", "hub.yaml", "log:\n  level: loud\n", func(err error) bool {
			var ve *ValidationError
			return errors.As(err, &ve) && ve.Path == "log.level"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil || !tt.check(err) {
				t.Errorf("Load() error = %v", err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	loader := NewEnvLoader(EnvPrefix)

	tests := []struct {
		env  string
		want string
	}{
		{"EVENTHUB_HUB_MAX_CHAIN_DEPTH", "hub.max_chain_depth"},
		{"EVENTHUB_LOG_LEVEL", "log.level"},
		{"EVENTHUB_SIMPLE", "simple"},
	}
	for _, tt := range tests {
		if got := loader.envToPath(tt.env); got != tt.want {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestEnvLoader_parseValue(t *testing.T) {
	loader := NewEnvLoader(EnvPrefix)

	tests := []struct {
		path string
		in   string
		want any
	}{
		{"hub.max_chain_depth", "2", int64(2)},
		{"hub.response_timeout", "1m", time.Minute},
		{"x.flag", "yes", true},
		{"x.ratio", "0.5", 0.5},
		{"x.name", "plain", "plain"},
		{"log.level", "1", "1"},
	}
	for _, tt := range tests {
		if got := loader.parseValue(tt.path, tt.in); got != tt.want {
			t.Errorf("parseValue(%q, %q) = %v (%T), want %v", tt.path, tt.in, got, got, tt.want)
		}
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{"log": map[string]any{"level": "info", "format": "console"}}
	src := map[string]any{"log": map[string]any{"level": "debug"}, "hub": map[string]any{"max_chain_depth": 2}}

	got := DeepMerge(dst, src)
	log := got["log"].(map[string]any)
	if log["level"] != "debug" || log["format"] != "console" {
		t.Errorf("log = %v", log)
	}
	if _, ok := got["hub"]; !ok {
		t.Error("hub section not merged")
	}
}
