// Package hub implements the event hub: extension registration, ordered event
// dispatch, and versioned shared state.
//
// Each registered extension runs in its own container with two goroutines of
// its own: one delivers events to its listeners in dispatch order, the other
// owns its shared-state histories. Containers never share locks, so a slow
// extension only delays itself.
//
// Every dispatched event receives a sequence number. Shared state written
// while handling an event is stamped with that number, which lets readers ask
// what another extension's state was as of a particular event:
//
//	h := hub.New(hub.WithLogger(logger))
//	h.Register(analytics.New, func(err hub.Error) { ... })
//	h.Start()
//	h.Dispatch(evt)
//	state := h.GetSharedState(sharedstate.KindStandard, "analytics", evt, false, sharedstate.ResolutionAny)
//
// Events produced in response to other events carry a chain depth. Dispatch
// drops events deeper than the configured maximum, which bounds feedback
// loops between extensions and rules.
package hub
