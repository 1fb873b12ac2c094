package lua

import (
	"context"
	"log"
	"time"

	"powertools-agent/internal/core"

	lua "github.com/yuin/gopher-lua"
)

// registerGoFunctions exposes Go functions to the given Lua state.
func (e *Engine) registerGoFunctions(ctx context.Context, L *lua.LState) {
	L.SetGlobal("call", L.NewFunction(e.luaCall(ctx)))
	L.SetGlobal("sleep", L.NewFunction(luaSleep(ctx)))
	L.SetGlobal("should_stop", L.NewFunction(luaShouldStop(ctx)))
	L.SetGlobal("print", L.NewFunction(luaPrint))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[LUA] %s", L.ToString(1))
	return 0
}

// luaCall implements call(method, ...). It returns the operation's results
// as Lua values and raises a Lua error on transport failures.
func (e *Engine) luaCall(ctx context.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		method := L.CheckString(1)

		params := make(core.Params, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			p, ok := toPrimitive(L.Get(i))
			if !ok {
				L.ArgError(i, "expected number, string, boolean or nil")
				return 0
			}
			params = append(params, p)
		}

		results, err := e.caller.Call(ctx, method, params)
		if err != nil {
			L.RaiseError("%s: %v", method, err)
			return 0
		}
		for _, r := range results {
			L.Push(fromPrimitive(r))
		}
		return len(results)
	}
}

func toPrimitive(v lua.LValue) (core.Primitive, bool) {
	switch t := v.(type) {
	case lua.LNumber:
		return core.Number(float64(t)), true
	case lua.LString:
		return core.Text(string(t)), true
	case lua.LBool:
		return core.Bool(bool(t)), true
	}
	if v == lua.LNil {
		return core.Empty(), true
	}
	return core.Primitive{}, false
}

func fromPrimitive(p core.Primitive) lua.LValue {
	switch p.Kind() {
	case core.KindNumber:
		v, _ := p.AsNumber()
		return lua.LNumber(v)
	case core.KindText:
		v, _ := p.AsText()
		return lua.LString(v)
	case core.KindBool:
		v, _ := p.AsBool()
		return lua.LBool(v)
	}
	return lua.LNil
}

// cancellableSleep sleeps for d, returning true early if ctx is cancelled.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func luaSleep(ctx context.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		ms := L.ToInt(1)
		cancellableSleep(ctx, time.Duration(ms)*time.Millisecond)
		return 0
	}
}

func luaShouldStop(ctx context.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		select {
		case <-ctx.Done():
			L.Push(lua.LTrue)
		default:
			L.Push(lua.LFalse)
		}
		return 1
	}
}
