package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/topic"
	"github.com/dshills/eventhub/internal/hub"
	"github.com/dshills/eventhub/internal/sharedstate"
)

// eventScript is the YAML document replayed by the run command:
//
//	events:
//	  - name: login
//	    type: analytics.track
//	    source: request.content
//	    data: {action: login}
//	    mask: [action]
type eventScript struct {
	Events []scriptedEvent `yaml:"events"`
}

type scriptedEvent struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Source string         `yaml:"source"`
	Data   map[string]any `yaml:"data"`
	Mask   []string       `yaml:"mask"`
}

// stateReport is the YAML printed for one extension.
type stateReport struct {
	Status  string         `yaml:"status"`
	Version int64          `yaml:"version"`
	Data    map[string]any `yaml:"data,omitempty"`
}

func newRunCmd(g *globals) *cobra.Command {
	var (
		f          hubFlags
		scriptPath string
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay an event script through scripted extensions",
		Long: `Register the Lua extensions, dispatch every event in the script in order,
wait for all extensions to finish processing and print each extension's
latest shared state as YAML.`,
		Example: "  eventhub run --script events.yaml --ext counter.lua --rules rules.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadEventScript(scriptPath)
			if err != nil {
				return err
			}

			rt, err := buildHub(g, f)
			if err != nil {
				return err
			}
			defer func() { _ = rt.shutdown(context.Background()) }()

			for _, evt := range events {
				rt.hub.Dispatch(evt)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			if err := rt.hub.Idle(ctx); err != nil {
				return fmt.Errorf("waiting for extensions: %w", err)
			}
			g.logger.Debug().Int("events", len(events)).Int("history", rt.history.Len()).Msg("script replayed")

			return writeStates(cmd.OutOrStdout(), rt.hub)
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "YAML event script to replay")
	cmd.Flags().StringArrayVarP(&f.extensions, "ext", "e", nil, "Lua extension script (repeatable)")
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "YAML rules file")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "Maximum time to wait for processing")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func loadEventScript(path string) ([]*event.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc eventScript
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	events := make([]*event.Event, 0, len(doc.Events))
	for i, se := range doc.Events {
		name := se.Name
		if name == "" {
			name = se.Type
		}
		evt, err := event.NewBuilder(name, topic.Topic(se.Type), topic.Topic(se.Source)).
			Data(se.Data).
			Mask(se.Mask...).
			Build()
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

// writeStates prints the latest shared state of every extension, keyed by
// extension name and kind.
func writeStates(w io.Writer, h *hub.Hub) error {
	out := make(map[string]map[string]stateReport)
	for _, info := range h.Extensions() {
		for _, kind := range sharedstate.Kinds {
			state := h.LatestSharedState(kind, info.Name)
			if state == nil {
				continue
			}
			if out[info.Name] == nil {
				out[info.Name] = make(map[string]stateReport)
			}
			out[info.Name][kind.String()] = stateReport{
				Status:  state.Status.String(),
				Version: state.Version,
				Data:    state.Data,
			}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
