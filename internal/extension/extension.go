package extension

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/dshills/eventhub/internal/datastore"
	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/topic"
	"github.com/dshills/eventhub/internal/history"
	"github.com/dshills/eventhub/internal/sharedstate"
)

// ErrInvalidName is returned by ValidateName.
var ErrInvalidName = errors.New("invalid extension name")

// Extension is a feature module registered with the hub.
type Extension interface {
	// Name is the unique registration name. It must be stable.
	Name() string

	// FriendlyName is a human-readable name.
	FriendlyName() string

	// Version is the extension version string.
	Version() string

	// OnRegistered runs on the extension's event goroutine before any event
	// is delivered.
	OnRegistered()

	// OnUnregistered runs once after the last event has been delivered.
	OnUnregistered()

	// ReadyForEvent gates delivery. Returning false holds evt, and every
	// event behind it, until shared state changes or another event arrives.
	ReadyForEvent(evt *event.Event) bool
}

// MetadataProvider is implemented by extensions that publish extra
// key/value details in the hub's shared state.
type MetadataProvider interface {
	Metadata() map[string]string
}

// Listener handles one delivered event.
type Listener func(ctx context.Context, evt *event.Event)

// Factory constructs an extension bound to api. A returned error or a panic
// fails the registration.
type Factory func(api API) (Extension, error)

// Resolver completes a pending shared state.
type Resolver func(data map[string]any) sharedstate.Status

// API is the hub surface available to one registered extension.
type API interface {
	// RegisterListener adds a listener for events whose type and source
	// match the given patterns.
	RegisterListener(eventType, source topic.Topic, listener Listener)

	// Dispatch sends an event through the hub.
	Dispatch(evt *event.Event)

	// CreateSharedState records data at the version of evt, or at a fresh
	// version when evt is nil.
	CreateSharedState(kind sharedstate.Kind, data map[string]any, evt *event.Event) sharedstate.Status

	// CreatePendingSharedState reserves a version for state that will be
	// completed later through the returned Resolver.
	CreatePendingSharedState(kind sharedstate.Kind, evt *event.Event) (sharedstate.Status, Resolver)

	// GetSharedState resolves another extension's state as of evt.
	GetSharedState(kind sharedstate.Kind, owner string, evt *event.Event, barrier bool, resolution sharedstate.Resolution) *sharedstate.SharedState

	// ClearSharedState removes this extension's history for kind.
	ClearSharedState(kind sharedstate.Kind) bool

	// RegisterResponseListener calls fn once with the response to trigger,
	// or with nil after timeout.
	RegisterResponseListener(trigger *event.Event, timeout time.Duration, fn func(*event.Event))

	// StopEvents holds event delivery until StartEvents.
	StopEvents()

	// StartEvents resumes event delivery.
	StartEvents()

	// Unregister removes this extension from the hub.
	Unregister()

	// DataStore returns a named persistent collection.
	DataStore(name string) (datastore.Collection, error)

	// History returns the event history store, or nil if none is configured.
	History() history.Store

	// Logger returns a logger tagged with the extension name.
	Logger() zerolog.Logger
}

// ValidateName reports whether name can be used as a registration name:
// non-empty, no surrounding whitespace, no control characters.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}
