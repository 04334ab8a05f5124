package event

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/dshills/eventhub/internal/event/topic"
)

// Event types and sources the hub itself dispatches.
const (
	// TypeHub is the type of events generated by the hub.
	TypeHub topic.Topic = "hub"

	// SourceSharedState is the source of shared-state change notifications.
	SourceSharedState topic.Topic = "shared-state"

	// SourceBooted is the source of the event dispatched when the hub starts.
	SourceBooted topic.Topic = "booted"

	// KeyStateOwner names the extension whose shared state changed.
	KeyStateOwner = "stateowner"

	// KeyStateKind is "standard" or "xdm" on shared-state change events.
	KeyStateKind = "kind"
)

// Event is an immutable message dispatched through the hub.
type Event struct {
	id         string
	name       string
	eventType  topic.Topic
	source     topic.Topic
	data       map[string]any
	mask       []string
	parentID   string
	responseID string
	chainDepth int
	timestamp  time.Time
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Name returns the human-readable event name.
func (e *Event) Name() string { return e.name }

// Type returns the event type.
func (e *Event) Type() topic.Topic { return e.eventType }

// Source returns the event source.
func (e *Event) Source() topic.Topic { return e.source }

// ParentID returns the ID of the event whose processing produced this one.
func (e *Event) ParentID() string { return e.parentID }

// ResponseID returns the ID of the trigger event this one responds to.
func (e *Event) ResponseID() string { return e.responseID }

// ChainDepth returns the number of dispatch hops since the originating event.
func (e *Event) ChainDepth() int { return e.chainDepth }

// Timestamp returns the creation time.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Mask returns a copy of the payload keys that participate in Hash.
func (e *Event) Mask() []string {
	if e.mask == nil {
		return nil
	}
	return append([]string(nil), e.mask...)
}

// Data returns a deep copy of the payload. Returns nil if the event has no payload.
func (e *Event) Data() map[string]any {
	return CloneData(e.data)
}

// Value returns a top-level payload value.
func (e *Event) Value(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// IsResponse reports whether the event answers a trigger event.
func (e *Event) IsResponse() bool {
	return e.responseID != ""
}

// Hash returns the xxhash64 of the flattened payload, restricted to the mask
// when one is set. Keys are sorted so the hash does not depend on map order.
// Returns 0 when no payload key participates.
func (e *Event) Hash() uint64 {
	flat := make(map[string]any)
	flatten("", e.data, flat)

	keys := make([]string, 0, len(flat))
	if e.mask != nil {
		for _, k := range e.mask {
			if _, ok := flat[k]; ok {
				keys = append(keys, k)
			}
		}
	} else {
		for k := range flat {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte(':')
		fmt.Fprint(&sb, flat[k])
	}
	return xxhash.Sum64String(sb.String())
}

// String returns a short description for logs.
func (e *Event) String() string {
	return fmt.Sprintf("%s (%s/%s id=%s)", e.name, e.eventType, e.source, e.id)
}

// Builder assembles an Event.
type Builder struct {
	e   Event
	err error
}

// NewBuilder starts an event with the given name, type and source.
func NewBuilder(name string, eventType, source topic.Topic) *Builder {
	return &Builder{e: Event{
		name:      name,
		eventType: eventType,
		source:    source,
	}}
}

// Data sets the payload. The map is deep-copied.
func (b *Builder) Data(data map[string]any) *Builder {
	b.e.data = CloneData(data)
	return b
}

// Mask restricts Hash to the given flattened payload keys ("a.b" for nested values).
func (b *Builder) Mask(keys ...string) *Builder {
	b.e.mask = append([]string(nil), keys...)
	return b
}

// ChainedFrom records parent as the cause of this event.
func (b *Builder) ChainedFrom(parent *Event) *Builder {
	if parent == nil {
		return b
	}
	b.e.parentID = parent.id
	b.e.chainDepth = parent.chainDepth + 1
	return b
}

// InResponseTo pairs this event with the trigger it answers.
func (b *Builder) InResponseTo(trigger *Event) *Builder {
	if trigger == nil {
		return b
	}
	b.e.responseID = trigger.id
	return b
}

// Timestamp overrides the creation time.
func (b *Builder) Timestamp(ts time.Time) *Builder {
	b.e.timestamp = ts
	return b
}

// Build validates and returns the event.
func (b *Builder) Build() (*Event, error) {
	if b.e.name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidEvent)
	}
	if !b.e.eventType.IsValid() || b.e.eventType.IsWildcard() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, b.e.eventType)
	}
	if !b.e.source.IsValid() || b.e.source.IsWildcard() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, b.e.source)
	}

	evt := b.e
	evt.id = uuid.NewString()
	if evt.timestamp.IsZero() {
		evt.timestamp = time.Now()
	}
	return &evt, nil
}

// flatten writes nested map values into out using dotted keys.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// CloneData deep-copies nested maps and slices so payloads cannot be mutated
// through a retained reference.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
