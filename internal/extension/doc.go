// Package extension defines the contract between the hub and the feature
// modules registered with it.
//
// An extension is built by a Factory that receives the API it will use for
// the rest of its life. The hub never inspects extension types; everything it
// needs is in the Extension interface:
//
//	func NewAnalytics(api extension.API) (extension.Extension, error) {
//		a := &Analytics{api: api}
//		api.RegisterListener("analytics.track", "**", a.onTrack)
//		return a, nil
//	}
//
// Listeners run on the extension's own event goroutine, one event at a time,
// in dispatch order. Shared-state calls made from a listener are serialized
// with the extension's event handling.
package extension
