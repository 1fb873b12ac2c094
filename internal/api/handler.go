// Package api exposes battery operations as positional-argument web methods.
// Each operation is a small Handler value holding the owner's Sender; set and
// get operations become commands on the owner's queue.
package api

import (
	"context"

	"powertools-agent/internal/core"
)

// Handler is one exposed operation.
//
// Argument problems are reported as a Text value inside the results, the
// calling convention web clients expect. The error return is reserved for
// transport failures such as core.ErrChannelClosed.
type Handler interface {
	Call(ctx context.Context, params core.Params) (core.Params, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params core.Params) (core.Params, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, params core.Params) (core.Params, error) {
	return f(ctx, params)
}

// Reading is a no-argument hardware read returning an optional value.
type Reading func() (float64, bool)

// ReadHandler serves a telemetry reading straight from the driver.
type ReadHandler struct {
	Read Reading
}

func (h ReadHandler) Call(_ context.Context, _ core.Params) (core.Params, error) {
	return core.Values(core.OptionalNumber(h.Read())), nil
}

// Accepted is the result of an operation that has nothing to return.
func Accepted() core.Params { return core.Values(core.Bool(true)) }

// MissingParameter is the result of a call lacking a required argument.
func MissingParameter(method string) core.Params {
	return core.Values(core.Text(method + " missing parameter"))
}

// Failure reports err to the caller in the result slot.
func Failure(err error) core.Params {
	return core.Values(core.Text(err.Error()))
}
