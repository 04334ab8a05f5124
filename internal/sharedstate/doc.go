// Package sharedstate keeps the versioned shared-state history an extension
// publishes for other extensions to read.
//
// A Manager holds an append-only list of snapshots ordered by version.
// Versions are the hub's event sequence numbers, so a reader can ask "what
// did this extension publish as of event N" even when the writer stored the
// snapshot after N was dispatched.
//
//	m := sharedstate.NewManager("identity")
//	m.Create(nil, 1, true)                          // PENDING at 1
//	m.Update(map[string]any{"id": "abc"}, 1, false) // SET at 1
//	m.Get(8)                                        // version-1 snapshot
//
// A Manager is not safe for concurrent use. Its owner confines every call to
// a single goroutine.
package sharedstate
