// Package history records which events occurred and when, keyed by event
// content hash, so extensions can ask "has this happened, and how often".
//
// The durable store is an external collaborator; Memory is the in-process
// implementation used by default and in tests.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("history store is closed")

// Request selects records with one hash inside a time range.
// A zero From or To leaves that side of the range open.
type Request struct {
	Hash uint64
	From time.Time
	To   time.Time
}

// contains reports whether ts lies inside the request range (inclusive).
func (r Request) contains(ts time.Time) bool {
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

// Result summarises the records matching one Request.
type Result struct {
	Count  int
	Oldest time.Time
	Newest time.Time
}

// Store persists (hash, timestamp) records.
type Store interface {
	// Record stores one occurrence.
	Record(ctx context.Context, hash uint64, ts time.Time) error

	// Query returns one Result per request. With enforceOrder, each request
	// only counts records newer than the oldest match of the previous request,
	// and a request with no match zeroes every later result.
	Query(ctx context.Context, requests []Request, enforceOrder bool) ([]Result, error)

	// Delete removes every record matching any request and returns the count.
	Delete(ctx context.Context, requests []Request) (int, error)
}
