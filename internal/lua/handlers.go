package lua

import (
	"context"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"
)

// Operation names for script management.
const (
	MethodListScripts  = "list_scripts"
	MethodRunScript    = "run_script"
	MethodStopScript   = "stop_script"
	MethodGetScript    = "get_script"
	MethodSaveScript   = "save_script"
	MethodDeleteScript = "delete_script"
	// MethodExecuteScript runs a chunk of Lua source without saving it.
	MethodExecuteScript = "execute_script"
)

// Handlers returns the script management operations. Like the battery
// operations they report bad arguments and failures as a Text result.
func (e *Engine) Handlers() map[string]api.Handler {
	return map[string]api.Handler{
		MethodListScripts: api.HandlerFunc(func(context.Context, core.Params) (core.Params, error) {
			names, err := e.GetScriptList()
			if err != nil {
				return api.Failure(err), nil
			}
			out := make(core.Params, 0, len(names))
			for _, n := range names {
				out = append(out, core.Text(n))
			}
			return out, nil
		}),
		MethodRunScript: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			name, ok := params.TextAt(0)
			if !ok {
				return api.MissingParameter(MethodRunScript), nil
			}
			if err := e.RunScript(name); err != nil {
				return api.Failure(err), nil
			}
			return api.Accepted(), nil
		}),
		MethodExecuteScript: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			code, ok := params.TextAt(0)
			if !ok {
				return api.MissingParameter(MethodExecuteScript), nil
			}
			if err := e.ExecuteString(code); err != nil {
				return api.Failure(err), nil
			}
			return api.Accepted(), nil
		}),
		MethodStopScript: api.HandlerFunc(func(context.Context, core.Params) (core.Params, error) {
			if err := e.StopCurrentScript(); err != nil {
				return api.Failure(err), nil
			}
			return api.Accepted(), nil
		}),
		MethodGetScript: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			name, ok := params.TextAt(0)
			if !ok {
				return api.MissingParameter(MethodGetScript), nil
			}
			code, err := e.GetScriptCode(name)
			if err != nil {
				return api.Failure(err), nil
			}
			return core.Values(core.Text(code)), nil
		}),
		MethodSaveScript: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			name, ok := params.TextAt(0)
			code, codeOK := params.TextAt(1)
			if !ok || !codeOK {
				return api.MissingParameter(MethodSaveScript), nil
			}
			if err := e.SaveScriptCode(name, code); err != nil {
				return api.Failure(err), nil
			}
			return api.Accepted(), nil
		}),
		MethodDeleteScript: api.HandlerFunc(func(_ context.Context, params core.Params) (core.Params, error) {
			name, ok := params.TextAt(0)
			if !ok {
				return api.MissingParameter(MethodDeleteScript), nil
			}
			if err := e.DeleteScript(name); err != nil {
				return api.Failure(err), nil
			}
			return api.Accepted(), nil
		}),
	}
}
