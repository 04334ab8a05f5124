package hub

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/eventhub/internal/datastore"
	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/dispatch"
	"github.com/dshills/eventhub/internal/event/topic"
	"github.com/dshills/eventhub/internal/extension"
	"github.com/dshills/eventhub/internal/history"
	"github.com/dshills/eventhub/internal/sharedstate"
)

type listenerEntry struct {
	eventType topic.Topic
	source    topic.Topic
	fn        extension.Listener
}

// container runs one extension. Events are delivered on a dedicated
// dispatcher; shared-state histories are confined to a separate executor so a
// listener can read and write state synchronously.
type container struct {
	hub *Hub

	// Set by bind before the container is published in the registry.
	name   string
	ident  ExtensionInfo
	ext    extension.Extension
	logger zerolog.Logger
	events *dispatch.SerialWorkDispatcher[*event.Event]
	state  *dispatch.Executor

	// Touched only from tasks running on state.
	managers map[sharedstate.Kind]*sharedstate.Manager

	listenersMu sync.Mutex
	listeners   []listenerEntry

	bound         atomic.Bool
	stopped       atomic.Bool
	lastProcessed atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

func newContainer(h *Hub) *container {
	return &container{
		hub:    h,
		logger: h.logger,
		done:   make(chan struct{}),
	}
}

// bind attaches the constructed extension and starts the container.
func (c *container) bind(ident ExtensionInfo, ext extension.Extension) {
	name := ident.Name
	c.name = name
	c.ident = ident
	c.ext = ext
	c.logger = c.hub.logger.With().
		Str("component", "container").
		Str("extension", name).
		Logger()

	c.managers = make(map[sharedstate.Kind]*sharedstate.Manager, len(sharedstate.Kinds))
	for _, kind := range sharedstate.Kinds {
		c.managers[kind] = sharedstate.NewManager(name)
	}
	c.state = dispatch.NewExecutor(name+"/state", dispatch.WithLogger(c.logger))

	c.events = dispatch.NewSerialWorkDispatcher(name+"/events", c.handle, dispatch.WithLogger(c.logger))
	c.events.SetCondition(func() bool { return !c.stopped.Load() })
	c.events.SetInitialJob(ext.OnRegistered)
	c.events.SetFinalJob(ext.OnUnregistered)

	c.bound.Store(true)
	_, _ = c.events.Start()
}

// discard releases a container whose registration failed.
func (c *container) discard() {
	c.closeOnce.Do(func() { close(c.done) })
}

// shutdown stops event delivery, waits for OnUnregistered, then stops the
// state executor. It does not block.
func (c *container) shutdown() {
	if !c.bound.Load() {
		c.discard()
		return
	}
	c.events.Shutdown()
	go func() {
		<-c.events.Done()
		c.state.Shutdown()
		<-c.state.Done()
		c.closeOnce.Do(func() { close(c.done) })
	}()
}

// Done is closed when the container has fully stopped.
func (c *container) Done() <-chan struct{} {
	return c.done
}

// offer queues evt for delivery.
func (c *container) offer(evt *event.Event) bool {
	return c.events.Offer(evt)
}

// wake re-evaluates a held event.
func (c *container) wake() {
	_, _ = c.events.Resume()
}

// handle is the event dispatcher handler.
func (c *container) handle(ctx context.Context, evt *event.Event) bool {
	if !c.ext.ReadyForEvent(evt) {
		return false
	}

	for _, l := range c.matching(evt) {
		result := dispatch.Execute(func() { l.fn(ctx, evt) })
		if result.IsPanic() {
			c.logger.Error().
				Interface("panic", result.PanicValue).
				Str("event", evt.ID()).
				Msg("listener panicked")
		}
	}

	if seq, ok := c.hub.sequenceOf(evt); ok {
		c.lastProcessed.Store(seq)
	}
	return true
}

func (c *container) matching(evt *event.Event) []listenerEntry {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	var out []listenerEntry
	for _, l := range c.listeners {
		if evt.Type().Matches(l.eventType) && evt.Source().Matches(l.source) {
			out = append(out, l)
		}
	}
	return out
}

// setState runs Create or Update on the state executor.
func (c *container) setState(kind sharedstate.Kind, data map[string]any, version int64, pending, update bool) sharedstate.Status {
	if !c.bound.Load() {
		return sharedstate.StatusNotSet
	}
	m, ok := c.managers[kind]
	if !ok {
		return sharedstate.StatusNotSet
	}

	status := sharedstate.StatusNotSet
	if !c.state.Do(func() {
		if update {
			status = m.Update(data, version, pending)
		} else {
			status = m.Create(data, version, pending)
		}
	}) {
		return sharedstate.StatusNotSet
	}
	return status
}

// resolveState reads a snapshot on the state executor.
func (c *container) resolveState(kind sharedstate.Kind, version int64, resolution sharedstate.Resolution) *sharedstate.SharedState {
	if !c.bound.Load() {
		return nil
	}
	m, ok := c.managers[kind]
	if !ok {
		return nil
	}

	var state *sharedstate.SharedState
	if !c.state.Do(func() { state = m.Resolve(version, resolution) }) {
		return nil
	}
	return state
}

func (c *container) latestState(kind sharedstate.Kind) *sharedstate.SharedState {
	if !c.bound.Load() {
		return nil
	}
	m, ok := c.managers[kind]
	if !ok {
		return nil
	}

	var state *sharedstate.SharedState
	if !c.state.Do(func() { state = m.Latest() }) {
		return nil
	}
	return state
}

// info returns the identity read at registration.
func (c *container) info() ExtensionInfo {
	info := c.ident
	info.Metadata = maps.Clone(c.ident.Metadata)
	return info
}

// extension.API implementation.

func (c *container) RegisterListener(eventType, source topic.Topic, listener extension.Listener) {
	if listener == nil {
		return
	}
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, listenerEntry{eventType: eventType, source: source, fn: listener})
	c.listenersMu.Unlock()
}

func (c *container) Dispatch(evt *event.Event) {
	c.hub.Dispatch(evt)
}

func (c *container) CreateSharedState(kind sharedstate.Kind, data map[string]any, evt *event.Event) sharedstate.Status {
	return c.hub.createState(c, kind, data, c.hub.versionFor(evt), false)
}

func (c *container) CreatePendingSharedState(kind sharedstate.Kind, evt *event.Event) (sharedstate.Status, extension.Resolver) {
	return c.hub.createPendingState(c, kind, c.hub.versionFor(evt))
}

func (c *container) GetSharedState(kind sharedstate.Kind, owner string, evt *event.Event, barrier bool, resolution sharedstate.Resolution) *sharedstate.SharedState {
	return c.hub.GetSharedState(kind, owner, evt, barrier, resolution)
}

func (c *container) ClearSharedState(kind sharedstate.Kind) bool {
	return c.hub.clearState(c, kind)
}

func (c *container) RegisterResponseListener(trigger *event.Event, timeout time.Duration, fn func(*event.Event)) {
	c.hub.RegisterResponseListener(trigger, timeout, fn)
}

func (c *container) StopEvents() {
	c.stopped.Store(true)
}

func (c *container) StartEvents() {
	if c.stopped.CompareAndSwap(true, false) && c.bound.Load() {
		c.wake()
	}
}

func (c *container) Unregister() {
	if c.bound.Load() {
		c.hub.Unregister(c.name, nil)
	}
}

func (c *container) DataStore(name string) (datastore.Collection, error) {
	return c.hub.opts.store.Collection(name)
}

func (c *container) History() history.Store {
	return c.hub.opts.history
}

func (c *container) Logger() zerolog.Logger {
	return c.logger
}
