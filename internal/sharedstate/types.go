package sharedstate

// Status is the status of a shared-state snapshot or of a write attempt.
type Status int

const (
	// StatusNotSet means no snapshot resolves, or a write was rejected.
	StatusNotSet Status = iota

	// StatusSet is a completed snapshot.
	StatusSet

	// StatusPending is a placeholder reserved at a version and completed later.
	StatusPending
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSet:
		return "set"
	case StatusPending:
		return "pending"
	default:
		return "not_set"
	}
}

// Kind selects one of the two histories an extension owns.
type Kind int

const (
	// KindStandard is the regular shared state.
	KindStandard Kind = iota

	// KindXDM is the experience-data-model shared state.
	KindXDM
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindXDM:
		return "xdm"
	default:
		return "unknown"
	}
}

// Kinds lists every shared-state kind.
var Kinds = []Kind{KindStandard, KindXDM}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Resolution selects which snapshot a read resolves to.
type Resolution int

const (
	// ResolutionAny resolves to the newest snapshot at or before the version.
	ResolutionAny Resolution = iota

	// ResolutionLastSet skips pending snapshots.
	ResolutionLastSet
)

// SharedState is one snapshot in a history.
type SharedState struct {
	// Version is the event sequence number the snapshot is stamped with.
	Version int64

	// Status is StatusSet or StatusPending.
	Status Status

	// Data is the snapshot payload. It may be nil. Readers receive their own
	// copy.
	Data map[string]any
}
