package sharedstate

import (
	"sort"

	"github.com/dshills/eventhub/internal/event"
)

// Manager holds the snapshot history for one (extension, kind) pair.
type Manager struct {
	owner  string
	states []SharedState
}

// NewManager creates an empty history owned by the named extension.
func NewManager(owner string) *Manager {
	return &Manager{owner: owner}
}

// Owner returns the name of the extension the history belongs to.
func (m *Manager) Owner() string {
	return m.owner
}

// Create appends a snapshot at version. It succeeds only if version is
// strictly greater than every version already recorded; otherwise it returns
// StatusNotSet and the history is unchanged.
func (m *Manager) Create(data map[string]any, version int64, pending bool) Status {
	if n := len(m.states); n > 0 && version <= m.states[n-1].Version {
		return StatusNotSet
	}

	status := StatusSet
	if pending {
		status = StatusPending
	}
	m.states = append(m.states, SharedState{
		Version: version,
		Status:  status,
		Data:    event.CloneData(data),
	})
	return status
}

// Update replaces a pending snapshot at exactly version in place. Any other
// case, including a snapshot that is already set, returns StatusNotSet.
func (m *Manager) Update(data map[string]any, version int64, pending bool) Status {
	i, ok := m.find(version)
	if !ok || m.states[i].Status != StatusPending {
		return StatusNotSet
	}

	status := StatusSet
	if pending {
		status = StatusPending
	}
	m.states[i].Status = status
	m.states[i].Data = event.CloneData(data)
	return status
}

// Get returns the snapshot with the largest version not greater than
// version, or nil if there is none.
func (m *Manager) Get(version int64) *SharedState {
	i := m.floor(version)
	if i < 0 {
		return nil
	}
	return m.snapshot(i)
}

// GetLastSet is Get restricted to set snapshots.
func (m *Manager) GetLastSet(version int64) *SharedState {
	for i := m.floor(version); i >= 0; i-- {
		if m.states[i].Status == StatusSet {
			return m.snapshot(i)
		}
	}
	return nil
}

// Resolve dispatches to Get or GetLastSet.
func (m *Manager) Resolve(version int64, resolution Resolution) *SharedState {
	if resolution == ResolutionLastSet {
		return m.GetLastSet(version)
	}
	return m.Get(version)
}

// Latest returns the newest snapshot, or nil if the history is empty.
func (m *Manager) Latest() *SharedState {
	if len(m.states) == 0 {
		return nil
	}
	return m.snapshot(len(m.states) - 1)
}

// Clear removes every snapshot.
func (m *Manager) Clear() {
	m.states = nil
}

// Len returns the number of snapshots.
func (m *Manager) Len() int {
	return len(m.states)
}

// snapshot returns a copy of the i'th snapshot that shares no data with the
// history.
func (m *Manager) snapshot(i int) *SharedState {
	s := m.states[i]
	s.Data = event.CloneData(s.Data)
	return &s
}

// floor returns the index of the last snapshot with Version <= version, or -1.
func (m *Manager) floor(version int64) int {
	return sort.Search(len(m.states), func(i int) bool {
		return m.states[i].Version > version
	}) - 1
}

func (m *Manager) find(version int64) (int, bool) {
	i := m.floor(version)
	if i < 0 || m.states[i].Version != version {
		return 0, false
	}
	return i, true
}
