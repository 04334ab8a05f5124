// Package rules derives consequence events from dispatched events.
//
// A Rule matches an event by type and source pattern plus a list of payload
// conditions evaluated with gjson paths. When every condition holds the rule
// builds its consequence, chained from the trigger, for the hub to dispatch.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/topic"
)

// Evaluator turns a processed event into zero or more consequence events.
type Evaluator interface {
	Evaluate(ctx context.Context, evt *event.Event) []*event.Event
}

// Condition is one payload test. A nil Equals only requires the path to exist.
type Condition struct {
	Path   string `yaml:"path"`
	Equals any    `yaml:"equals,omitempty"`
}

// Consequence describes the event a rule produces. String values of the form
// "{%path%}" are replaced with the trigger payload value at path.
type Consequence struct {
	Name   string         `yaml:"name"`
	Type   topic.Topic    `yaml:"type"`
	Source topic.Topic    `yaml:"source"`
	Data   map[string]any `yaml:"data,omitempty"`
}

// Rule pairs a trigger selector with a consequence.
type Rule struct {
	Name        string      `yaml:"name"`
	Type        topic.Topic `yaml:"type"`
	Source      topic.Topic `yaml:"source"`
	Conditions  []Condition `yaml:"conditions,omitempty"`
	Consequence Consequence `yaml:"consequence"`
}

// Validate checks the rule for missing fields.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule: empty name")
	}
	if !r.Type.IsValid() || !r.Source.IsValid() {
		return fmt.Errorf("rule %q: invalid type or source pattern", r.Name)
	}
	if r.Consequence.Name == "" {
		return fmt.Errorf("rule %q: consequence needs a name", r.Name)
	}
	if !r.Consequence.Type.IsValid() || r.Consequence.Type.IsWildcard() ||
		!r.Consequence.Source.IsValid() || r.Consequence.Source.IsWildcard() {
		return fmt.Errorf("rule %q: consequence needs a concrete type and source", r.Name)
	}
	for _, c := range r.Conditions {
		if c.Path == "" {
			return fmt.Errorf("rule %q: condition with empty path", r.Name)
		}
	}
	return nil
}

// Set is an ordered list of rules. It is read-only after construction and
// safe for concurrent use.
type Set struct {
	rules  []Rule
	logger zerolog.Logger
}

// Option configures a Set.
type Option func(*Set)

// WithLogger sets the logger used for build failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Set) {
		s.logger = logger
	}
}

// NewSet validates rules and returns a Set.
func NewSet(rules []Rule, opts ...Option) (*Set, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	s := &Set{
		rules:  append([]Rule(nil), rules...),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type file struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads a YAML document with a top-level "rules" list.
func LoadFile(path string, opts ...Option) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return NewSet(f.Rules, opts...)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Evaluate implements Evaluator. Rules fire in declaration order.
func (s *Set) Evaluate(ctx context.Context, evt *event.Event) []*event.Event {
	if evt == nil || len(s.rules) == 0 {
		return nil
	}

	raw, err := json.Marshal(evt.Data())
	if err != nil {
		s.logger.Warn().Err(err).Str("event", evt.ID()).Msg("payload not representable as JSON")
		return nil
	}

	var out []*event.Event
	for _, r := range s.rules {
		if ctx.Err() != nil {
			break
		}
		if !evt.Type().Matches(r.Type) || !evt.Source().Matches(r.Source) {
			continue
		}
		if !conditionsHold(raw, r.Conditions) {
			continue
		}

		consequence, err := event.NewBuilder(r.Consequence.Name, r.Consequence.Type, r.Consequence.Source).
			Data(expand(raw, r.Consequence.Data)).
			ChainedFrom(evt).
			Build()
		if err != nil {
			s.logger.Warn().Err(err).Str("rule", r.Name).Msg("consequence not built")
			continue
		}
		out = append(out, consequence)
	}
	return out
}

func conditionsHold(raw []byte, conditions []Condition) bool {
	for _, c := range conditions {
		res := gjson.GetBytes(raw, c.Path)
		if !res.Exists() {
			return false
		}
		if c.Equals != nil && res.String() != fmt.Sprint(c.Equals) {
			return false
		}
	}
	return true
}

// expand copies data, resolving "{%path%}" tokens against the trigger payload.
func expand(raw []byte, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = expandToken(raw, val)
		case map[string]any:
			out[k] = expand(raw, val)
		default:
			out[k] = v
		}
	}
	return out
}

func expandToken(raw []byte, s string) any {
	if !strings.HasPrefix(s, "{%") || !strings.HasSuffix(s, "%}") || len(s) < 5 {
		return s
	}
	res := gjson.GetBytes(raw, s[2:len(s)-2])
	if !res.Exists() {
		return nil
	}
	return res.Value()
}
