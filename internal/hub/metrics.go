package hub

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	dropChainDepth = "chain_depth"
	dropShutdown   = "shutdown"
)

type metrics struct {
	dispatched    prometheus.Counter
	dropped       *prometheus.CounterVec
	registrations *prometheus.CounterVec
	stateUpdates  *prometheus.CounterVec
	registered    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "events_dispatched_total",
			Help:      "Events fanned out to registered extensions",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "events_dropped_total",
			Help:      "Events rejected by Dispatch",
		}, []string{"reason"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "registrations_total",
			Help:      "Extension registration attempts by outcome",
		}, []string{"result"}),
		stateUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "shared_state_updates_total",
			Help:      "Successful shared state changes",
		}, []string{"kind", "status"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventhub",
			Name:      "extensions_registered",
			Help:      "Currently registered extensions",
		}),
	}

	m.dispatched = registerCollector(reg, m.dispatched)
	m.dropped = registerCollector(reg, m.dropped)
	m.registrations = registerCollector(reg, m.registrations)
	m.stateUpdates = registerCollector(reg, m.stateUpdates)
	m.registered = registerCollector(reg, m.registered)
	return m
}

// registerCollector adds c to reg, reusing a collector that is already registered
// under the same descriptor.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
