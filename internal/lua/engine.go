// Package lua runs user automation scripts that drive the battery operations.
package lua

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"

	lua "github.com/yuin/gopher-lua"
)

// ErrEngineBusy is returned when the engine's command queue is full.
var ErrEngineBusy = errors.New("script engine busy")

// cmdType defines the type of engine command.
type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

// engineCmd represents a command sent to the Lua engine.
type engineCmd struct {
	kind cmdType
	name string
	code string
}

// Engine runs at most one script at a time from a single worker goroutine.
// Scripts reach the battery only through the operations of caller.
type Engine struct {
	caller     api.Caller
	scriptsDir string
	eventBus   *core.EventBus

	cmdChan chan engineCmd
	done    chan struct{}

	mu      sync.RWMutex
	running string
}

// NewEngine creates a Lua engine and starts its worker; the worker and any
// running script stop when ctx ends.
func NewEngine(ctx context.Context, caller api.Caller, scriptsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		caller:     caller,
		scriptsDir: scriptsDir,
		eventBus:   eb,
		cmdChan:    make(chan engineCmd, 10),
		done:       make(chan struct{}),
	}

	go e.runLoop(ctx)

	return e
}

// Done is closed when the worker has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Running returns the name of the running script, or "" when idle.
func (e *Engine) Running() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// runLoop processes engine commands sequentially. A new command always stops
// the script that is currently running.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			log.Println("[Lua] Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}
	defer stopCurrent()

	for {
		var cmd engineCmd
		select {
		case <-ctx.Done():
			return
		case cmd = <-e.cmdChan:
		}

		stopCurrent()
		if cmd.kind == cmdStop {
			continue
		}

		scriptCtx, cancel := context.WithCancel(ctx)
		currentCancel = cancel
		scriptDone = make(chan struct{})

		go func(cmd engineCmd, ctx context.Context, done chan struct{}) {
			defer close(done)
			var err error
			switch cmd.kind {
			case cmdRunFile:
				err = e.execute(ctx, cmd.name, func(L *lua.LState) error {
					return L.DoFile(cmd.code)
				})
			case cmdRunString:
				err = e.execute(ctx, cmd.name, func(L *lua.LState) error {
					return L.DoString(cmd.code)
				})
			}
			if err != nil {
				log.Printf("[Lua] Error executing script '%s': %v", cmd.name, err)
			}
		}(cmd, scriptCtx, scriptDone)
	}
}

func (e *Engine) enqueue(cmd engineCmd) error {
	select {
	case e.cmdChan <- cmd:
		return nil
	default:
		return ErrEngineBusy
	}
}

// StopCurrentScript stops the running script if any.
func (e *Engine) StopCurrentScript() error {
	return e.enqueue(engineCmd{kind: cmdStop})
}

// RunScript queues the script file name for execution.
func (e *Engine) RunScript(name string) error {
	path, err := e.existingScriptPath(name)
	if err != nil {
		return err
	}
	return e.enqueue(engineCmd{kind: cmdRunFile, name: name, code: path})
}

// ExecuteString queues a one-off chunk of Lua code.
func (e *Engine) ExecuteString(code string) error {
	return e.enqueue(engineCmd{kind: cmdRunString, name: "single line command", code: code})
}

// execute runs a script in a fresh Lua state bound to ctx.
func (e *Engine) execute(ctx context.Context, name string, executor func(*lua.LState) error) error {
	log.Printf("[Lua] Starting script '%s'...", name)
	e.setRunning(name)

	defer func() {
		log.Printf("[Lua] Script '%s' finished.", name)
		e.setRunning("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	e.registerGoFunctions(ctx, L)

	if err := executor(L); err != nil {
		if ctx.Err() != nil {
			log.Printf("[Lua] Script '%s' execution was canceled.", name)
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) setRunning(name string) {
	e.mu.Lock()
	e.running = name
	e.mu.Unlock()

	if e.eventBus != nil {
		e.eventBus.Publish(core.Event{
			Type:    core.ScriptChangedEvent,
			Payload: core.ScriptPayload{Running: name},
		})
	}
}
