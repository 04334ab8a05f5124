package datastore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLFile persists each collection as <dir>/<name>.yaml. Every write
// rewrites the file through a temporary file and rename.
type YAMLFile struct {
	dir string

	mu          sync.Mutex
	collections map[string]*fileCollection
}

// NewYAMLFile creates the directory if needed and returns a store rooted there.
func NewYAMLFile(dir string) (*YAMLFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &YAMLFile{
		dir:         dir,
		collections: make(map[string]*fileCollection),
	}, nil
}

// Dir returns the root directory.
func (s *YAMLFile) Dir() string {
	return s.dir
}

// Collection implements Store. The backing file is loaded on first use.
func (s *YAMLFile) Collection(name string) (Collection, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	c := &fileCollection{
		path:   filepath.Join(s.dir, name+".yaml"),
		values: make(map[string]any),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	s.collections[name] = c
	return c, nil
}

type fileCollection struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

func (c *fileCollection) load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &c.values); err != nil {
		return fmt.Errorf("parse %s: %w", c.path, err)
	}
	if c.values == nil {
		c.values = make(map[string]any)
	}
	return nil
}

// flush must be called with mu held.
func (c *fileCollection) flush() error {
	data, err := yaml.Marshal(c.values)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *fileCollection) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *fileCollection) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.values[key]
	c.values[key] = value
	if err := c.flush(); err != nil {
		if had {
			c.values[key] = prev
		} else {
			delete(c.values, key)
		}
		return err
	}
	return nil
}

func (c *fileCollection) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.values[key]
	if !had {
		return nil
	}
	delete(c.values, key)
	if err := c.flush(); err != nil {
		c.values[key] = prev
		return err
	}
	return nil
}

func (c *fileCollection) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for k := range c.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
