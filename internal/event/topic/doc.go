// Package topic provides the dot-separated names used for event types and
// event sources, and the wildcard patterns listeners and rules match them with.
//
// # Format
//
//	lifecycle.start
//	analytics.track
//	hub.shared-state
//
// Matching ignores case.
//
// # Wildcards
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	analytics.*     matches analytics.track (not analytics.track.batch)
//	analytics.**    matches analytics.track, analytics.track.batch
//	*.start         matches lifecycle.start, session.start
//	**              matches everything
package topic
