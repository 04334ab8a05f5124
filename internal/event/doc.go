// Package event defines the immutable events exchanged through the hub.
//
// An Event carries a name, a type and a source (dot-separated topics, see
// package topic), a key/value payload, and its causal links:
//
//   - ParentID and ChainDepth: the event whose processing produced this one.
//     Externally dispatched events have depth 0; ChainedFrom sets parent depth + 1.
//   - ResponseID: the trigger event this one answers.
//
// An optional mask limits which payload keys participate in Hash, the
// content hash used by event history.
//
// # Usage
//
//	evt, err := event.NewBuilder("track action", "analytics.track", "request.content").
//	    Data(map[string]any{"action": "login"}).
//	    Mask("action").
//	    Build()
//
// Events are never mutated after Build. Data returns a copy.
package event
