package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrShutdown is returned by lifecycle calls made after Shutdown.
	ErrShutdown = errors.New("dispatcher is shut down")
)
