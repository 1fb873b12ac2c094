package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"powertools-agent/internal/battery"
	"powertools-agent/internal/core"
)

// ErrUnknownMethod is returned by Registry.Call for unregistered names.
var ErrUnknownMethod = errors.New("unknown method")

// Operation names exposed to web clients.
const (
	MethodCurrentNow      = "current_now"
	MethodChargeNow       = "charge_now"
	MethodChargeFull      = "charge_full"
	MethodChargeDesign    = "charge_design"
	MethodSetChargeRate   = "set_charge_rate"
	MethodGetChargeRate   = "get_charge_rate"
	MethodUnsetChargeRate = "unset_charge_rate"
	MethodSetChargeMode   = "set_charge_mode"
	MethodGetChargeMode   = "get_charge_mode"
	MethodUnsetChargeMode = "unset_charge_mode"
)

// Caller dispatches a named operation.
type Caller interface {
	Call(ctx context.Context, method string, params core.Params) (core.Params, error)
}

// Registry maps operation names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry registers the battery operations. Readings go straight to the
// driver; everything touching charge settings goes through sender.
func NewRegistry(sender *core.Sender, driver battery.Reader) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}

	r.Register(MethodCurrentNow, ReadHandler{Read: driver.ReadCurrentNow})
	r.Register(MethodChargeNow, ReadHandler{Read: driver.ReadChargeNow})
	r.Register(MethodChargeFull, ReadHandler{Read: driver.ReadChargeFull})
	r.Register(MethodChargeDesign, ReadHandler{Read: driver.ReadChargeDesign})

	r.Register(MethodSetChargeRate, SetChargeRate{Sender: sender})
	r.Register(MethodGetChargeRate, GetChargeRate{Sender: sender})
	r.Register(MethodUnsetChargeRate, UnsetChargeRate{Sender: sender})
	r.Register(MethodSetChargeMode, SetChargeMode{Sender: sender})
	r.Register(MethodGetChargeMode, GetChargeMode{Sender: sender})
	r.Register(MethodUnsetChargeMode, UnsetChargeMode{Sender: sender})

	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Call runs the named operation.
func (r *Registry) Call(ctx context.Context, method string, params core.Params) (core.Params, error) {
	h, ok := r.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return h.Call(ctx, params)
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
