package history

import (
	"context"
	"sync"
	"time"
)

type record struct {
	hash uint64
	ts   time.Time
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []record
	closed  bool
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores one occurrence.
func (m *Memory) Record(ctx context.Context, hash uint64, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, record{hash: hash, ts: ts})
	return nil
}

// Query implements Store.
func (m *Memory) Query(ctx context.Context, requests []Request, enforceOrder bool) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	results := make([]Result, len(requests))
	var after time.Time
	for i, req := range requests {
		if enforceOrder && i > 0 && results[i-1].Count == 0 {
			// Order broken: nothing after this point can match.
			break
		}

		var res Result
		for _, rec := range m.records {
			if rec.hash != req.Hash || !req.contains(rec.ts) {
				continue
			}
			if enforceOrder && !after.IsZero() && !rec.ts.After(after) {
				continue
			}
			res.Count++
			if res.Oldest.IsZero() || rec.ts.Before(res.Oldest) {
				res.Oldest = rec.ts
			}
			if rec.ts.After(res.Newest) {
				res.Newest = rec.ts
			}
		}
		results[i] = res
		after = res.Oldest
	}
	return results, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, requests []Request) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	kept := m.records[:0]
	deleted := 0
	for _, rec := range m.records {
		if matchesAny(rec, requests) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return deleted, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close releases the store. Later calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}

func matchesAny(rec record, requests []Request) bool {
	for _, req := range requests {
		if rec.hash == req.Hash && req.contains(rec.ts) {
			return true
		}
	}
	return false
}
