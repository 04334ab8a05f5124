package script

import (
	"errors"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestState_Sandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	tests := []struct {
		name string
		code string
	}{
		{"io", `io.open("/etc/passwd")`},
		{"os", `os.execute("true")`},
		{"dofile", `dofile("x.lua")`},
		{"loadstring", `loadstring("return 1")()`},
		{"require io", `require("io")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.DoString(tt.code); err == nil {
				t.Errorf("DoString(%q) succeeded, want error", tt.code)
			}
		})
	}

	if err := s.DoString(`local m = require("math"); x = m.floor(2.5) .. string.upper("a")`); err != nil {
		t.Fatalf("safe libraries unavailable: %v", err)
	}
	if got := s.GetGlobal("x").String(); got != "2A" {
		t.Errorf("x = %q, want 2A", got)
	}
}

func TestState_Call(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function add(a, b) return a + b, "ok" end`); err != nil {
		t.Fatal(err)
	}

	results, err := s.CallGlobal("add", lua.LNumber(2), lua.LNumber(3))
	if err != nil {
		t.Fatalf("CallGlobal() failed: %v", err)
	}
	if len(results) != 2 || results[0] != lua.LNumber(5) || results[1] != lua.LString("ok") {
		t.Errorf("results = %v", results)
	}

	if results, err := s.CallGlobal("missing"); err != nil || results != nil {
		t.Errorf("CallGlobal(missing) = %v, %v; want nil, nil", results, err)
	}

	if _, err := s.Call(lua.LString("nope")); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(string) error = %v, want ErrNotFunction", err)
	}
}

func TestState_Timeout(t *testing.T) {
	s := NewState(WithExecutionTimeout(20 * time.Millisecond))
	defer s.Close()

	err := s.DoString(`while true do end`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("DoString() error = %v, want ErrExecutionTimeout", err)
	}
}

func TestState_Closed(t *testing.T) {
	s := NewState()
	s.Close()

	if err := s.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() error = %v, want ErrStateClosed", err)
	}
	if !s.IsClosed() {
		t.Error("IsClosed() = false")
	}
	if s.Close() != nil {
		t.Error("second Close() returned error")
	}
}

func TestBridge_RoundTrip(t *testing.T) {
	s := NewState()
	defer s.Close()

	in := map[string]any{
		"s":    "text",
		"n":    int64(3),
		"f":    1.5,
		"b":    true,
		"list": []any{int64(1), "two"},
		"nested": map[string]any{
			"k": "v",
		},
	}
	out, ok := toGoValue(toLuaValue(s.L, in)).(map[string]any)
	if !ok {
		t.Fatal("table did not convert back to a map")
	}
	if out["s"] != "text" || out["n"] != int64(3) || out["f"] != 1.5 || out["b"] != true {
		t.Errorf("scalars = %v", out)
	}
	list, _ := out["list"].([]any)
	if len(list) != 2 || list[1] != "two" {
		t.Errorf("list = %v", out["list"])
	}
	if nested, _ := out["nested"].(map[string]any); nested["k"] != "v" {
		t.Errorf("nested = %v", out["nested"])
	}

	if !strings.Contains(toLuaValue(s.L, struct{ A int }{1}).String(), "1") {
		t.Error("unknown types should fall back to their string form")
	}
}
