package hub

import (
	"context"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/eventhub/internal/datastore"
	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/dispatch"
	"github.com/dshills/eventhub/internal/extension"
	"github.com/dshills/eventhub/internal/history"
	"github.com/dshills/eventhub/internal/sharedstate"
)

// Version is reported in the hub's own shared state.
const Version = "1.0.0"

// Callback receives the outcome of Register or Unregister.
type Callback func(Error)

// ExtensionInfo describes a registered extension.
type ExtensionInfo struct {
	Name         string            `json:"name" yaml:"name"`
	FriendlyName string            `json:"friendlyName" yaml:"friendlyName"`
	Version      string            `json:"version" yaml:"version"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Hub routes events between registered extensions and resolves their shared
// state.
//
// Registration bookkeeping runs on a private executor; dispatched events flow
// through a serial queue that fans each event out to every container in
// registration order.
type Hub struct {
	opts    options
	logger  zerolog.Logger
	metrics *metrics

	executor *dispatch.Executor
	queue    *dispatch.SerialWorkDispatcher[*event.Event]

	// Replaced only from tasks on executor; read lock-free.
	registry atomic.Pointer[registry]

	seqMu    sync.Mutex
	lastSeq  int64
	seqs     map[string]int64
	seqOrder []sequenced

	respMu    sync.Mutex
	responses map[string][]*responseListener

	started      atomic.Bool
	closed       atomic.Bool
	shutdownOnce sync.Once
	stopping     []<-chan struct{}
}

// New creates a hub. Events dispatched before Start are held in order.
func New(opts ...Option) *Hub {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = datastore.NewMemory()
	}

	h := &Hub{
		opts:      o,
		logger:    o.logger.With().Str("component", "hub").Logger(),
		metrics:   newMetrics(o.registerer),
		seqs:      make(map[string]int64),
		responses: make(map[string][]*responseListener),
	}
	h.registry.Store(&registry{byName: map[string]*container{}})
	h.executor = dispatch.NewExecutor("hub", dispatch.WithLogger(h.logger))
	h.queue = dispatch.NewSerialWorkDispatcher("hub/events", h.fanOut, dispatch.WithLogger(h.logger))

	h.Register(newHubExtension(), nil)
	return h
}

// Start begins event processing, publishes the hub's shared state and
// dispatches the booted event. Calling Start more than once has no effect.
func (h *Hub) Start() error {
	ok, err := h.queue.Start()
	if err != nil || !ok {
		return err
	}
	h.started.Store(true)

	// Queued behind any pending registrations.
	h.executor.Submit(h.publishHubState)

	booted, err := event.NewBuilder("EventHub Booted", event.TypeHub, event.SourceBooted).Build()
	if err != nil {
		return err
	}
	h.Dispatch(booted)
	h.logger.Info().Msg("hub started")
	return nil
}

// Register constructs an extension with factory and registers it.
// The outcome is delivered to callback on its own goroutine once the
// registry reflects it. The factory runs on the hub's registration
// goroutine and must not call Register, Unregister or Shutdown and wait.
func (h *Hub) Register(factory extension.Factory, callback Callback) {
	if !h.executor.Submit(func() {
		result := h.register(factory)
		h.metrics.registrations.WithLabelValues(result.String()).Inc()
		if callback != nil {
			go notify(callback, result)
		}
	}) {
		notify(callback, ErrorUnknown)
	}
}

func (h *Hub) register(factory extension.Factory) Error {
	if factory == nil {
		return ErrorExtensionInitializationFailure
	}

	c := newContainer(h)
	var (
		ext     extension.Extension
		initErr error
	)
	if res := dispatch.Execute(func() { ext, initErr = factory(c) }); res.IsPanic() || initErr != nil || ext == nil {
		h.logger.Warn().
			Err(initErr).
			Interface("panic", res.PanicValue).
			Msg("extension construction failed")
		c.discard()
		return ErrorExtensionInitializationFailure
	}

	info, ok := describe(ext)
	if !ok {
		h.logger.Warn().Str("name", info.Name).Msg("invalid extension name, friendly name or version")
		release(c, ext)
		return ErrorInvalidExtensionName
	}
	name := info.Name

	reg := h.registry.Load()
	if _, exists := reg.byName[name]; exists {
		h.logger.Warn().Str("name", name).Msg("duplicate extension name")
		release(c, ext)
		return ErrorDuplicateExtensionName
	}

	c.bind(info, ext)
	next := reg.with(c)
	h.registry.Store(next)
	h.metrics.registered.Set(float64(next.len()))
	h.logger.Info().Str("extension", name).Msg("extension registered")

	if name != hubExtensionName && h.started.Load() {
		h.publishHubState()
	}
	return ErrorNone
}

// Unregister removes the named extension. The callback runs after the
// extension's OnUnregistered has returned.
func (h *Hub) Unregister(name string, callback Callback) {
	if !h.executor.Submit(func() {
		reg := h.registry.Load()
		c, ok := reg.byName[name]
		if !ok || name == hubExtensionName {
			notify(callback, ErrorExtensionNotRegistered)
			return
		}

		next := reg.without(name)
		h.registry.Store(next)
		h.metrics.registered.Set(float64(next.len()))
		c.shutdown()
		h.logger.Info().Str("extension", name).Msg("extension unregistered")

		if h.started.Load() {
			h.publishHubState()
		}
		if callback != nil {
			go func() {
				<-c.Done()
				notify(callback, ErrorNone)
			}()
		}
	}) {
		notify(callback, ErrorUnknown)
	}
}

// Dispatch assigns evt the next sequence number and queues it for fan-out.
// Events deeper than the configured chain depth are dropped.
func (h *Hub) Dispatch(evt *event.Event) {
	if evt == nil {
		return
	}
	if evt.ChainDepth() > h.opts.maxChainDepth {
		h.logger.Warn().
			Str("event", evt.ID()).
			Str("parent", evt.ParentID()).
			Int("depth", evt.ChainDepth()).
			Msg("event exceeds chain depth, dropped")
		h.metrics.dropped.WithLabelValues(dropChainDepth).Inc()
		return
	}

	h.seqMu.Lock()
	h.lastSeq++
	seq := h.lastSeq
	h.seqs[evt.ID()] = seq
	ok := h.queue.Offer(evt)
	if ok {
		h.seqOrder = append(h.seqOrder, sequenced{id: evt.ID(), seq: seq})
	} else {
		delete(h.seqs, evt.ID())
	}
	h.seqMu.Unlock()

	if !ok {
		h.metrics.dropped.WithLabelValues(dropShutdown).Inc()
		return
	}
	h.logger.Debug().Str("event", evt.String()).Int64("seq", seq).Msg("dispatched")
}

// fanOut is the hub queue handler.
func (h *Hub) fanOut(ctx context.Context, evt *event.Event) bool {
	order := h.registry.Load().order
	if seq, ok := h.sequenceOf(evt); ok {
		h.pruneSequences(order, seq)
	}
	for _, c := range order {
		c.offer(evt)
	}
	h.metrics.dispatched.Inc()

	if h.opts.history != nil && evt.Mask() != nil {
		if hash := evt.Hash(); hash != 0 {
			if err := h.opts.history.Record(ctx, hash, evt.Timestamp()); err != nil {
				h.logger.Warn().Err(err).Str("event", evt.ID()).Msg("history record failed")
			}
		}
	}

	h.notifyResponse(evt)

	if h.opts.rules != nil {
		for _, consequence := range h.opts.rules.Evaluate(ctx, evt) {
			h.Dispatch(consequence)
		}
	}
	return true
}

// sequenceOf returns the sequence number assigned to evt by Dispatch.
func (h *Hub) sequenceOf(evt *event.Event) (int64, bool) {
	if evt == nil {
		return 0, false
	}
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	seq, ok := h.seqs[evt.ID()]
	return seq, ok
}

// pruneSequences forgets the numbers of events that every container has
// moved past, keeping the newest seqRetention entries so reads tied to
// recent events still resolve at their own version. current is the event
// about to be fanned out.
func (h *Hub) pruneSequences(order []*container, current int64) {
	floor := current
	for _, c := range order {
		if s := c.events.Stats(); s.Offered != s.Processed {
			floor = min(floor, c.lastProcessed.Load())
		}
	}

	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	n := 0
	for len(h.seqOrder)-n > h.opts.seqRetention && h.seqOrder[n].seq < floor {
		delete(h.seqs, h.seqOrder[n].id)
		n++
	}
	if n > 0 {
		h.seqOrder = slices.Delete(h.seqOrder, 0, n)
	}
}

// LatestSequence returns the most recently assigned sequence number.
func (h *Hub) LatestSequence() int64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	return h.lastSeq
}

// versionFor returns the state version for a write tied to evt. Writes not
// tied to a dispatched event take a fresh number so they order after
// everything dispatched so far.
func (h *Hub) versionFor(evt *event.Event) int64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()

	if evt != nil {
		if seq, ok := h.seqs[evt.ID()]; ok {
			return seq
		}
	}
	h.lastSeq++
	return h.lastSeq
}

// readVersion returns the version a read tied to evt resolves at.
func (h *Hub) readVersion(evt *event.Event) int64 {
	if seq, ok := h.sequenceOf(evt); ok {
		return seq
	}
	return h.LatestSequence()
}

func (h *Hub) lookup(name string) *container {
	return h.registry.Load().byName[name]
}

// GetSharedState resolves the named extension's state as of evt, or as of
// the latest dispatched event when evt is nil or unknown. Events older than
// the sequence retention window that every extension has processed count as
// unknown. With barrier, a set
// snapshot is reported as pending until the owner has processed every event
// before evt.
func (h *Hub) GetSharedState(kind sharedstate.Kind, name string, evt *event.Event, barrier bool, resolution sharedstate.Resolution) *sharedstate.SharedState {
	c := h.lookup(name)
	if c == nil {
		return nil
	}

	version := h.readVersion(evt)
	state := c.resolveState(kind, version, resolution)
	if state == nil {
		return nil
	}
	if barrier && state.Status == sharedstate.StatusSet && c.lastProcessed.Load() < version-1 {
		state.Status = sharedstate.StatusPending
	}
	return state
}

// SetSharedState records data for the named extension at version.
func (h *Hub) SetSharedState(kind sharedstate.Kind, name string, data map[string]any, version int64) sharedstate.Status {
	c := h.lookup(name)
	if c == nil {
		return sharedstate.StatusNotSet
	}
	return h.createState(c, kind, data, version, false)
}

// CreatePendingSharedState reserves version for the named extension.
func (h *Hub) CreatePendingSharedState(kind sharedstate.Kind, name string, version int64) (sharedstate.Status, extension.Resolver) {
	c := h.lookup(name)
	if c == nil {
		return sharedstate.StatusNotSet, nil
	}
	return h.createPendingState(c, kind, version)
}

// LatestSharedState returns the newest snapshot of the named extension.
func (h *Hub) LatestSharedState(kind sharedstate.Kind, name string) *sharedstate.SharedState {
	c := h.lookup(name)
	if c == nil {
		return nil
	}
	return c.latestState(kind)
}

func (h *Hub) createState(c *container, kind sharedstate.Kind, data map[string]any, version int64, pending bool) sharedstate.Status {
	status := c.setState(kind, data, version, pending, false)
	if status != sharedstate.StatusNotSet {
		h.stateChanged(c, kind, status)
	}
	return status
}

func (h *Hub) createPendingState(c *container, kind sharedstate.Kind, version int64) (sharedstate.Status, extension.Resolver) {
	status := h.createState(c, kind, nil, version, true)
	if status == sharedstate.StatusNotSet {
		return status, nil
	}
	return status, func(data map[string]any) sharedstate.Status {
		s := c.setState(kind, data, version, false, true)
		if s != sharedstate.StatusNotSet {
			h.stateChanged(c, kind, s)
		}
		return s
	}
}

func (h *Hub) clearState(c *container, kind sharedstate.Kind) bool {
	m, ok := c.managers[kind]
	if !ok || !c.bound.Load() {
		return false
	}
	if !c.state.Do(m.Clear) {
		return false
	}
	h.stateChanged(c, kind, sharedstate.StatusNotSet)
	return true
}

// stateChanged publishes a state change event and lets held events re-check
// readiness.
func (h *Hub) stateChanged(c *container, kind sharedstate.Kind, status sharedstate.Status) {
	h.metrics.stateUpdates.WithLabelValues(kind.String(), status.String()).Inc()

	evt, err := event.NewBuilder("Shared state change", event.TypeHub, event.SourceSharedState).
		Data(map[string]any{
			event.KeyStateOwner: c.name,
			event.KeyStateKind:  kind.String(),
		}).
		Build()
	if err == nil {
		h.Dispatch(evt)
	}

	for _, other := range h.registry.Load().order {
		other.wake()
	}
}

// Running reports whether the hub has started and not yet shut down.
func (h *Hub) Running() bool {
	return h.started.Load() && !h.closed.Load()
}

// Extensions lists registered extensions in registration order.
func (h *Hub) Extensions() []ExtensionInfo {
	reg := h.registry.Load()
	out := make([]ExtensionInfo, 0, len(reg.order))
	for _, c := range reg.order {
		out = append(out, c.info())
	}
	return out
}

// Idle waits until every event and registration task offered so far has
// been processed. Events held by an extension that is not ready keep Idle
// waiting until ctx ends.
func (h *Hub) Idle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	var prev []uint64
	for {
		// Counters only grow, so two equal snapshots with nothing
		// outstanding mean nothing moved in between.
		snap, busy := h.activity()
		if !busy && slices.Equal(snap, prev) {
			return nil
		}
		prev = snap

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Hub) activity() (snap []uint64, busy bool) {
	add := func(s dispatch.Stats) {
		snap = append(snap, s.Offered, s.Processed)
		if s.Offered != s.Processed {
			busy = true
		}
	}
	add(h.queue.Stats())
	add(h.executor.Stats())
	for _, c := range h.registry.Load().order {
		add(c.events.Stats())
	}
	return snap, busy
}

// Shutdown unregisters every extension and stops the hub. It waits for
// OnUnregistered callbacks and worker goroutines, or for ctx.
//
// Shutdown may be called from a Register or Unregister callback. Called from
// an extension factory it deadlocks. Called from a listener it returns only
// when ctx ends, since the listener's own goroutine cannot stop first.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.closed.Store(true)
		h.queue.Shutdown()
		h.stopping = append(h.stopping, h.queue.Done())

		h.executor.Do(func() {
			reg := h.registry.Load()
			h.registry.Store(&registry{byName: map[string]*container{}})
			h.metrics.registered.Set(0)
			for i := len(reg.order) - 1; i >= 0; i-- {
				c := reg.order[i]
				c.shutdown()
				h.stopping = append(h.stopping, c.Done())
			}
		})
		h.executor.Shutdown()
		h.stopping = append(h.stopping, h.executor.Done())

		h.respMu.Lock()
		for id, listeners := range h.responses {
			for _, rl := range listeners {
				rl.timer.Stop()
			}
			delete(h.responses, id)
		}
		h.respMu.Unlock()
		h.logger.Info().Msg("hub shutting down")
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, done := range h.stopping {
		done := done
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// describe reads the identity of ext. It fails when any accessor panics, the
// name is invalid, or the friendly name or version is empty.
func describe(ext extension.Extension) (ExtensionInfo, bool) {
	var info ExtensionInfo
	res := dispatch.Execute(func() {
		info.Name = ext.Name()
		info.FriendlyName = ext.FriendlyName()
		info.Version = ext.Version()
	})
	if res.IsPanic() || extension.ValidateName(info.Name) != nil || info.FriendlyName == "" || info.Version == "" {
		return info, false
	}

	if mp, ok := ext.(extension.MetadataProvider); ok {
		if res := dispatch.Execute(func() { info.Metadata = maps.Clone(mp.Metadata()) }); res.IsPanic() {
			info.Metadata = nil
		}
	}
	return info, true
}

// release drops a constructed extension that was not registered.
func release(c *container, ext extension.Extension) {
	c.discard()
	if closer, ok := ext.(io.Closer); ok {
		dispatch.Execute(func() { _ = closer.Close() })
	}
}

func notify(callback Callback, result Error) {
	if callback == nil {
		return
	}
	dispatch.Execute(func() { callback(result) })
}

// sequenced pairs an event ID with its sequence number in dispatch order.
type sequenced struct {
	id  string
	seq int64
}

// registry is an immutable snapshot of registered containers.
type registry struct {
	order  []*container
	byName map[string]*container
}

func (r *registry) len() int {
	return len(r.order)
}

func (r *registry) with(c *container) *registry {
	next := &registry{
		order:  make([]*container, 0, len(r.order)+1),
		byName: make(map[string]*container, len(r.byName)+1),
	}
	next.order = append(next.order, r.order...)
	next.order = append(next.order, c)
	for k, v := range r.byName {
		next.byName[k] = v
	}
	next.byName[c.name] = c
	return next
}

func (r *registry) without(name string) *registry {
	next := &registry{
		order:  make([]*container, 0, len(r.order)),
		byName: make(map[string]*container, len(r.byName)),
	}
	for _, c := range r.order {
		if c.name == name {
			continue
		}
		next.order = append(next.order, c)
		next.byName[c.name] = c
	}
	return next
}

// DataStore returns a collection from the configured store.
func (h *Hub) DataStore(name string) (datastore.Collection, error) {
	return h.opts.store.Collection(name)
}

// History returns the configured history store, or nil.
func (h *Hub) History() history.Store {
	return h.opts.history
}
