package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/eventhub/internal/datastore"
	"github.com/dshills/eventhub/internal/history"
	"github.com/dshills/eventhub/internal/hub"
	"github.com/dshills/eventhub/internal/rules"
	"github.com/dshills/eventhub/internal/script"
)

const registerTimeout = 10 * time.Second

// hubFlags are the flags shared by commands that build a hub.
type hubFlags struct {
	extensions []string
	rulesPath  string
}

// runtime is a started hub with its collaborators.
type runtime struct {
	hub      *hub.Hub
	registry *prometheus.Registry
	history  *history.Memory
}

// buildHub creates and starts a hub from the configuration and registers
// every scripted extension.
func buildHub(g *globals, f hubFlags) (*runtime, error) {
	rt := &runtime{
		registry: prometheus.NewRegistry(),
		history:  history.NewMemory(),
	}

	opts := []hub.Option{
		hub.WithLogger(g.logger),
		hub.WithMaxChainDepth(g.cfg.Hub.MaxChainDepth),
		hub.WithResponseTimeout(g.cfg.Hub.ResponseTimeout),
		hub.WithRegisterer(rt.registry),
		hub.WithHistory(rt.history),
	}

	if g.cfg.Store.Dir != "" {
		store, err := datastore.NewYAMLFile(g.cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hub.WithDataStore(store))
	}

	if f.rulesPath != "" {
		set, err := rules.LoadFile(f.rulesPath, rules.WithLogger(g.logger))
		if err != nil {
			return nil, err
		}
		g.logger.Debug().Int("rules", set.Len()).Str("path", f.rulesPath).Msg("rules loaded")
		opts = append(opts, hub.WithRules(set))
	}

	rt.hub = hub.New(opts...)
	for _, path := range f.extensions {
		if err := registerScript(rt.hub, path); err != nil {
			_ = rt.shutdown(context.Background())
			return nil, err
		}
	}

	if err := rt.hub.Start(); err != nil {
		_ = rt.shutdown(context.Background())
		return nil, err
	}
	return rt, nil
}

func registerScript(h *hub.Hub, path string) error {
	factory, err := script.Load(path)
	if err != nil {
		return err
	}

	result := make(chan hub.Error, 1)
	h.Register(factory, func(e hub.Error) { result <- e })
	select {
	case e := <-result:
		if e != hub.ErrorNone {
			return fmt.Errorf("registering %s: %w", path, e)
		}
		return nil
	case <-time.After(registerTimeout):
		return fmt.Errorf("registering %s: timed out", path)
	}
}

func (rt *runtime) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()
	err := rt.hub.Shutdown(ctx)
	_ = rt.history.Close()
	return err
}
