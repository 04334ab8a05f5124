package hub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dshills/eventhub/internal/datastore"
	"github.com/dshills/eventhub/internal/history"
	"github.com/dshills/eventhub/internal/rules"
)

// Default settings.
const (
	DefaultMaxChainDepth   = 1
	DefaultResponseTimeout = 5 * time.Second
	DefaultSeqRetention    = 4096
)

// Option configures a Hub.
type Option func(*options)

type options struct {
	logger          zerolog.Logger
	maxChainDepth   int
	responseTimeout time.Duration
	registerer      prometheus.Registerer
	history         history.Store
	rules           rules.Evaluator
	store           datastore.Store
	seqRetention    int
}

func defaultOptions() options {
	return options{
		logger:          zerolog.Nop(),
		maxChainDepth:   DefaultMaxChainDepth,
		responseTimeout: DefaultResponseTimeout,
		seqRetention:    DefaultSeqRetention,
	}
}

// WithLogger sets the root logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxChainDepth sets how many consequence hops an event may start.
// Events deeper than this are dropped by Dispatch. Negative values are ignored.
func WithMaxChainDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.maxChainDepth = depth
		}
	}
}

// WithResponseTimeout sets the default response listener timeout.
func WithResponseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.responseTimeout = d
		}
	}
}

// WithRegisterer registers hub metrics on r instead of a private registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithHistory records masked events in store.
func WithHistory(store history.Store) Option {
	return func(o *options) {
		o.history = store
	}
}

// WithRules evaluates every processed event and dispatches the consequences.
func WithRules(evaluator rules.Evaluator) Option {
	return func(o *options) {
		o.rules = evaluator
	}
}

// WithDataStore sets the store behind API.DataStore. The default keeps
// collections in memory.
func WithDataStore(store datastore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSequenceRetention sets how many event sequence numbers are kept after
// every extension has processed them. Negative values are ignored.
func WithSequenceRetention(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.seqRetention = n
		}
	}
}
