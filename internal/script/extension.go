package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/topic"
	"github.com/dshills/eventhub/internal/extension"
	"github.com/dshills/eventhub/internal/sharedstate"
)

// DefaultVersion is reported by scripts that do not set the version global.
const DefaultVersion = "0.0.0"

// Extension is an extension implemented by a Lua script.
//
// The script sets the globals name, friendly_name and version, and may
// define on_registered(), on_unregistered() and ready_for_event(evt). It
// talks to the hub through the global table "hub":
//
//	hub.listen(type, source, fn)       fn(evt) runs for matching events
//	hub.dispatch{name=, type=, source=, data=, mask=}
//	hub.set_state(data [, kind])       kind is "standard" (default) or "xdm"
//	hub.get_state(owner [, kind])      returns {status=, version=, data=} or nil
//	hub.log(msg)
//
// Events reach Lua as tables with id, name, type, source, parent_id,
// response_id, depth and data fields.
type Extension struct {
	state *State
	api   extension.API
	chunk string

	name         string
	friendlyName string
	version      string

	// Set while a hook or listener runs on the event goroutine.
	current *event.Event
}

// FromSource returns a factory that runs src as a new extension. chunk names
// the script in errors and logs.
func FromSource(chunk, src string, opts ...StateOption) extension.Factory {
	return func(api extension.API) (extension.Extension, error) {
		e := &Extension{
			state: NewState(opts...),
			api:   api,
			chunk: chunk,
		}
		e.installHubModule()

		if err := e.state.DoString(src); err != nil {
			e.state.Close()
			return nil, fmt.Errorf("%s: %w", chunk, err)
		}

		e.name = globalString(e.state, "name")
		e.friendlyName = globalString(e.state, "friendly_name")
		e.version = globalString(e.state, "version")
		if e.friendlyName == "" {
			e.friendlyName = e.name
		}
		if e.version == "" {
			e.version = DefaultVersion
		}
		return e, nil
	}
}

// Load reads a script file and returns its factory.
func Load(path string, opts ...StateOption) (extension.Factory, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromSource(filepath.Base(path), string(src), opts...), nil
}

func globalString(s *State, name string) string {
	if v, ok := s.GetGlobal(name).(lua.LString); ok {
		return string(v)
	}
	return ""
}

func (e *Extension) log() *zerolog.Logger {
	l := e.api.Logger()
	return &l
}

// Name implements extension.Extension.
func (e *Extension) Name() string { return e.name }

// FriendlyName implements extension.Extension.
func (e *Extension) FriendlyName() string { return e.friendlyName }

// Version implements extension.Extension.
func (e *Extension) Version() string { return e.version }

// Metadata reports the script chunk name.
func (e *Extension) Metadata() map[string]string {
	return map[string]string{"script": e.chunk}
}

// OnRegistered calls on_registered if the script defines it.
func (e *Extension) OnRegistered() {
	if _, err := e.state.CallGlobal("on_registered"); err != nil {
		e.log().Error().Err(err).Msg("on_registered failed")
	}
}

// OnUnregistered calls on_unregistered and closes the Lua state.
func (e *Extension) OnUnregistered() {
	if _, err := e.state.CallGlobal("on_unregistered"); err != nil {
		e.log().Error().Err(err).Msg("on_unregistered failed")
	}
	e.state.Close()
}

// Close releases the Lua state. The hub calls it when registration fails
// after construction.
func (e *Extension) Close() error {
	return e.state.Close()
}

// ReadyForEvent calls ready_for_event(evt). Scripts without the hook are
// always ready; a failing hook counts as not ready.
func (e *Extension) ReadyForEvent(evt *event.Event) bool {
	fn := e.state.GetGlobal("ready_for_event")
	if fn == lua.LNil {
		return true
	}

	e.current = evt
	defer func() { e.current = nil }()

	results, err := e.state.Call(fn, e.eventTable(evt))
	if err != nil {
		e.log().Error().Err(err).Msg("ready_for_event failed")
		return false
	}
	return len(results) > 0 && lua.LVAsBool(results[0])
}

func (e *Extension) listener(fn *lua.LFunction) extension.Listener {
	return func(_ context.Context, evt *event.Event) {
		e.current = evt
		defer func() { e.current = nil }()

		if _, err := e.state.Call(fn, e.eventTable(evt)); err != nil {
			e.log().Error().Err(err).Str("event", evt.ID()).Msg("lua listener failed")
		}
	}
}

func (e *Extension) eventTable(evt *event.Event) *lua.LTable {
	L := e.state.L
	t := L.NewTable()
	t.RawSetString("id", lua.LString(evt.ID()))
	t.RawSetString("name", lua.LString(evt.Name()))
	t.RawSetString("type", lua.LString(evt.Type()))
	t.RawSetString("source", lua.LString(evt.Source()))
	t.RawSetString("parent_id", lua.LString(evt.ParentID()))
	t.RawSetString("response_id", lua.LString(evt.ResponseID()))
	t.RawSetString("depth", lua.LNumber(evt.ChainDepth()))
	t.RawSetString("data", toLuaValue(L, evt.Data()))
	return t
}

func (e *Extension) installHubModule() {
	e.state.RegisterModule("hub", map[string]lua.LGFunction{
		"listen":    e.luaListen,
		"dispatch":  e.luaDispatch,
		"set_state": e.luaSetState,
		"get_state": e.luaGetState,
		"log":       e.luaLog,
	})
}

func (e *Extension) luaListen(L *lua.LState) int {
	eventType := L.CheckString(1)
	source := L.CheckString(2)
	fn := L.CheckFunction(3)
	e.api.RegisterListener(topic.Topic(eventType), topic.Topic(source), e.listener(fn))
	return 0
}

func (e *Extension) luaDispatch(L *lua.LState) int {
	spec := L.CheckTable(1)

	name := e.name
	if v, ok := spec.RawGetString("name").(lua.LString); ok {
		name = string(v)
	}
	b := event.NewBuilder(name,
		topic.Topic(lua.LVAsString(spec.RawGetString("type"))),
		topic.Topic(lua.LVAsString(spec.RawGetString("source")))).
		Data(toGoMap(spec.RawGetString("data"))).
		ChainedFrom(e.current)

	if mask, ok := spec.RawGetString("mask").(*lua.LTable); ok {
		var keys []string
		mask.ForEach(func(_, v lua.LValue) { keys = append(keys, lua.LVAsString(v)) })
		b.Mask(keys...)
	}

	evt, err := b.Build()
	if err != nil {
		L.RaiseError("dispatch: %v", err)
		return 0
	}
	e.api.Dispatch(evt)
	L.Push(lua.LString(evt.ID()))
	return 1
}

func (e *Extension) luaSetState(L *lua.LState) int {
	data := toGoMap(L.CheckTable(1))
	kind, ok := sharedstate.ParseKind(L.OptString(2, "standard"))
	if !ok {
		L.ArgError(2, "kind must be standard or xdm")
		return 0
	}
	status := e.api.CreateSharedState(kind, data, e.current)
	L.Push(lua.LString(status.String()))
	return 1
}

func (e *Extension) luaGetState(L *lua.LState) int {
	owner := L.CheckString(1)
	kind, ok := sharedstate.ParseKind(L.OptString(2, "standard"))
	if !ok {
		L.ArgError(2, "kind must be standard or xdm")
		return 0
	}

	state := e.api.GetSharedState(kind, owner, e.current, false, sharedstate.ResolutionAny)
	if state == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	t.RawSetString("status", lua.LString(state.Status.String()))
	t.RawSetString("version", lua.LNumber(state.Version))
	t.RawSetString("data", toLuaValue(L, state.Data))
	L.Push(t)
	return 1
}

func (e *Extension) luaLog(L *lua.LState) int {
	e.log().Info().Str("script", e.chunk).Msg(L.CheckString(1))
	return 0
}
