package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"powertools-agent/internal/core"

	lua "github.com/yuin/gopher-lua"
)

type recordedCall struct {
	method string
	params core.Params
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeCaller) Call(_ context.Context, method string, params core.Params) (core.Params, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{method: method, params: params})
	switch method {
	case "get_charge_mode":
		return core.Values(core.Text("eco")), nil
	case "get_charge_rate":
		return core.Values(core.Empty()), nil
	case "broken":
		return nil, core.ErrChannelClosed
	}
	return core.Values(params.At(0)), nil
}

func (f *fakeCaller) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestEngine(t *testing.T) (*Engine, *fakeCaller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	caller := &fakeCaller{}
	return NewEngine(ctx, caller, t.TempDir(), core.NewEventBus()), caller
}

func TestExecuteCallsOperations(t *testing.T) {
	e, caller := newTestEngine(t)

	code := `
		local mode = call("get_charge_mode")
		if mode ~= "eco" then error("unexpected mode " .. tostring(mode)) end
		local rate = call("get_charge_rate")
		if rate ~= nil then error("expected nil rate") end
		call("set_charge_rate", 40, true, "x")
	`
	err := e.execute(context.Background(), "test", func(L *lua.LState) error {
		return L.DoString(code)
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	calls := caller.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	last := calls[2]
	if last.method != "set_charge_rate" {
		t.Fatalf("expected set_charge_rate, got %s", last.method)
	}
	want := core.Values(core.Number(40), core.Bool(true), core.Text("x"))
	if len(last.params) != len(want) {
		t.Fatalf("expected %d params, got %v", len(want), last.params)
	}
	for i := range want {
		if last.params[i] != want[i] {
			t.Fatalf("param %d: expected %v, got %v", i, want[i], last.params[i])
		}
	}
	if e.Running() != "" {
		t.Fatalf("expected idle engine, got %q", e.Running())
	}
}

func TestExecuteRaisesTransportErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.execute(context.Background(), "test", func(L *lua.LState) error {
		return L.DoString(`call("broken")`)
	})
	if err == nil || !strings.Contains(err.Error(), core.ErrChannelClosed.Error()) {
		t.Fatalf("expected channel closed error, got %v", err)
	}

	err = e.execute(context.Background(), "test", func(L *lua.LState) error {
		return L.DoString(`call("set_charge_rate", {})`)
	})
	if err == nil {
		t.Fatal("expected error for table argument")
	}
}

func TestExecuteCancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := e.execute(ctx, "loop", func(L *lua.LState) error {
		return L.DoString(`while not should_stop() do sleep(5) end`)
	})
	if err != nil {
		t.Fatalf("expected cancellation to be clean, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("script did not stop promptly")
	}
}

func TestRunScriptThroughWorker(t *testing.T) {
	e, caller := newTestEngine(t)

	if err := e.SaveScriptCode("night.lua", `call("set_charge_mode", "night")`); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.RunScript("night.lua"); err != nil {
		t.Fatalf("run: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		calls := caller.snapshot()
		if len(calls) == 1 {
			if calls[0].method != "set_charge_mode" || calls[0].params.At(0) != core.Text("night") {
				t.Fatalf("unexpected call %#v", calls[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("script did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunScriptMissing(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.RunScript("absent.lua"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestScriptFiles(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, bad := range []string{"x.txt", "../x.lua", ".lua", "dir/x.lua"} {
		if _, err := e.ScriptPath(bad); !errors.Is(err, ErrInvalidScriptName) {
			t.Fatalf("%q: expected ErrInvalidScriptName, got %v", bad, err)
		}
	}

	if err := e.SaveScriptCode("b.lua", "print('b')"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.SaveScriptCode("a.lua", "print('a')"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e.scriptsDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	list, err := e.GetScriptList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0] != "a.lua" || list[1] != "b.lua" {
		t.Fatalf("unexpected list %v", list)
	}

	code, err := e.GetScriptCode("a.lua")
	if err != nil || code != "print('a')" {
		t.Fatalf("unexpected code %q (%v)", code, err)
	}
	if err := e.DeleteScript("a.lua"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.GetScriptCode("a.lua"); err == nil {
		t.Fatal("expected deleted script to be gone")
	}
}

func TestScriptHandlers(t *testing.T) {
	e, _ := newTestEngine(t)
	h := e.Handlers()
	ctx := context.Background()

	out, _ := h[MethodSaveScript].Call(ctx, core.Values(core.Text("a.lua")))
	if out[0] != core.Text("save_script missing parameter") {
		t.Fatalf("expected missing parameter, got %v", out)
	}
	out, _ = h[MethodSaveScript].Call(ctx, core.Values(core.Text("a.lua"), core.Text("print(1)")))
	if out[0] != core.Bool(true) {
		t.Fatalf("expected true, got %v", out)
	}
	out, _ = h[MethodListScripts].Call(ctx, nil)
	if len(out) != 1 || out[0] != core.Text("a.lua") {
		t.Fatalf("unexpected list %v", out)
	}
	out, _ = h[MethodGetScript].Call(ctx, core.Values(core.Text("a.lua")))
	if out[0] != core.Text("print(1)") {
		t.Fatalf("unexpected code %v", out)
	}
	out, _ = h[MethodRunScript].Call(ctx, core.Values(core.Text("../etc.lua")))
	if s, ok := out[0].AsText(); !ok || !strings.Contains(s, "invalid script name") {
		t.Fatalf("expected invalid name text, got %v", out)
	}
	out, _ = h[MethodStopScript].Call(ctx, nil)
	if out[0] != core.Bool(true) {
		t.Fatalf("expected true, got %v", out)
	}
	out, _ = h[MethodDeleteScript].Call(ctx, core.Values(core.Text("a.lua")))
	if out[0] != core.Bool(true) {
		t.Fatalf("expected true, got %v", out)
	}
}

func TestExecuteScriptStopsPreviousScript(t *testing.T) {
	e, caller := newTestEngine(t)
	h := e.Handlers()[MethodExecuteScript]
	ctx := context.Background()

	out, _ := h.Call(ctx, nil)
	if out[0] != core.Text("execute_script missing parameter") {
		t.Fatalf("expected missing parameter, got %v", out)
	}
	out, _ = h.Call(ctx, core.Values(core.Text(`while not should_stop() do sleep(5) end`)))
	if out[0] != core.Bool(true) {
		t.Fatalf("expected true, got %v", out)
	}
	out, _ = h.Call(ctx, core.Values(core.Text(`call("unset_charge_rate")`)))
	if out[0] != core.Bool(true) {
		t.Fatalf("expected true, got %v", out)
	}

	deadline := time.After(3 * time.Second)
	for len(caller.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("second chunk did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := caller.snapshot()[0].method; got != "unset_charge_rate" {
		t.Fatalf("expected unset_charge_rate, got %s", got)
	}
}
