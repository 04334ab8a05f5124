package dispatch

import "github.com/rs/zerolog"

// PanicHandler is called when a work handler, job or task panics.
// It receives the item being processed, the panic value, and the stack trace.
type PanicHandler func(item any, panicValue any, stack []byte)

// Option configures a SerialWorkDispatcher or Executor.
type Option func(*options)

type options struct {
	logger       zerolog.Logger
	panicHandler PanicHandler
}

func defaultOptions() options {
	return options{
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger used for panics and shutdown diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPanicHandler sets a callback invoked after a panic is recovered.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = h
	}
}
