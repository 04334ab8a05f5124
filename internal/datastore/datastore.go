// Package datastore gives extensions named key-value collections that
// outlive a single registration.
package datastore

import (
	"errors"
	"regexp"
)

// ErrInvalidName is returned for collection names that are empty or contain
// characters other than letters, digits, '.', '_' and '-'.
var ErrInvalidName = errors.New("invalid collection name")

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Collection is a named key-value map.
type Collection interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Remove(key string) error
	Keys() []string
}

// Store hands out collections by name. Asking for the same name twice
// returns the same collection.
type Store interface {
	Collection(name string) (Collection, error)
}

func checkName(name string) error {
	if !validName.MatchString(name) || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}
