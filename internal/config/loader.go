package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoadFile parses a configuration file into a map. The format is chosen by
// extension: .toml, .yaml/.yml or .json.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data according to the extension of source.
func Parse(source string, data []byte) (map[string]any, error) {
	var (
		config map[string]any
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	if config == nil {
		config = make(map[string]any)
	}
	return config, nil
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst; maps are merged recursively.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}

func getByPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if current, ok = v.(map[string]any); !ok {
			return nil, false
		}
	}
	return nil, false
}

func asString(v any, dst *string) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	*dst = s
	return nil
}

func asInt(v any, dst *int) error {
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case uint64:
		*dst = int(n)
	case float64:
		if n != math.Trunc(n) {
			return fmt.Errorf("expected integer, got %v", n)
		}
		*dst = int(n)
	default:
		return fmt.Errorf("expected integer, got %T", v)
	}
	return nil
}

// asDuration accepts Go duration strings or a number of seconds.
func asDuration(v any, dst *time.Duration) error {
	switch d := v.(type) {
	case time.Duration:
		*dst = d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return err
		}
		*dst = parsed
	default:
		var secs int
		if err := asInt(v, &secs); err != nil {
			return fmt.Errorf("expected duration, got %T", v)
		}
		*dst = time.Duration(secs) * time.Second
	}
	return nil
}
