package datastore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exercise(t *testing.T, s Store) {
	t.Helper()

	c, err := s.Collection("prefs")
	if err != nil {
		t.Fatalf("Collection() failed: %v", err)
	}
	if err := c.Set("b", "two"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := c.Set("a", 1); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if v, ok := c.Get("b"); !ok || v != "two" {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}

	if err := c.Remove("b"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("removed key still present")
	}

	again, _ := s.Collection("prefs")
	if v, ok := again.Get("a"); !ok || v != 1 {
		t.Errorf("same-name collection Get(a) = %v, %v", v, ok)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestYAMLFile(t *testing.T) {
	s, err := NewYAMLFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewYAMLFile() failed: %v", err)
	}
	exercise(t, s)
}

func TestYAMLFile_Persists(t *testing.T) {
	dir := t.TempDir()

	first, _ := NewYAMLFile(dir)
	c, _ := first.Collection("session")
	if err := c.Set("user", "u1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "session.yaml")); err != nil {
		t.Fatalf("collection file missing: %v", err)
	}

	second, _ := NewYAMLFile(dir)
	reopened, err := second.Collection("session")
	if err != nil {
		t.Fatalf("Collection() failed: %v", err)
	}
	if v, ok := reopened.Get("user"); !ok || v != "u1" {
		t.Errorf("reloaded Get(user) = %v, %v", v, ok)
	}
}

func TestYAMLFile_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("- a\n- b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, _ := NewYAMLFile(dir)
	if _, err := s.Collection("bad"); err == nil {
		t.Error("expected parse error")
	}
}

func TestCollection_InvalidName(t *testing.T) {
	for _, name := range []string{"", "..", "a/b", "sp ace"} {
		if _, err := NewMemory().Collection(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Collection(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}
