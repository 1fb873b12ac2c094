package api

import (
	"context"

	"powertools-agent/internal/core"
)

// errMissingChargeParam is returned by both charge setters; clients match on
// this exact text, including for set_charge_mode.
const errMissingChargeParam = "set_charge_rate missing parameter"

// SetChargeRate handles set_charge_rate([Number]).
type SetChargeRate struct {
	Sender *core.Sender
}

func (h SetChargeRate) Call(ctx context.Context, params core.Params) (core.Params, error) {
	v, ok := params.NumberAt(0)
	if !ok {
		return core.Values(core.Text(errMissingChargeParam)), nil
	}
	rate := core.ToUint64(v)
	if err := h.Sender.Send(ctx, core.NewCommand(core.SetChargeRate{Rate: &rate})); err != nil {
		return nil, err
	}
	return core.Values(core.Number(v)), nil
}

// GetChargeRate handles get_charge_rate([]).
type GetChargeRate struct {
	Sender *core.Sender
}

func (h GetChargeRate) Call(ctx context.Context, _ core.Params) (core.Params, error) {
	rate, err := core.Query(ctx, h.Sender, func(r core.Reply[*uint64]) core.Message {
		return core.GetChargeRate{Reply: r}
	})
	if err != nil {
		return nil, err
	}
	return core.Values(core.OptionalUint(rate)), nil
}

// UnsetChargeRate handles unset_charge_rate([]).
type UnsetChargeRate struct {
	Sender *core.Sender
}

func (h UnsetChargeRate) Call(ctx context.Context, _ core.Params) (core.Params, error) {
	if err := h.Sender.Send(ctx, core.NewCommand(core.SetChargeRate{})); err != nil {
		return nil, err
	}
	return Accepted(), nil
}

// SetChargeMode handles set_charge_mode([Text]).
type SetChargeMode struct {
	Sender *core.Sender
}

func (h SetChargeMode) Call(ctx context.Context, params core.Params) (core.Params, error) {
	mode, ok := params.TextAt(0)
	if !ok {
		return core.Values(core.Text(errMissingChargeParam)), nil
	}
	if err := h.Sender.Send(ctx, core.NewCommand(core.SetChargeMode{Mode: &mode})); err != nil {
		return nil, err
	}
	return core.Values(core.Text(mode)), nil
}

// GetChargeMode handles get_charge_mode([]).
type GetChargeMode struct {
	Sender *core.Sender
}

func (h GetChargeMode) Call(ctx context.Context, _ core.Params) (core.Params, error) {
	mode, err := core.Query(ctx, h.Sender, func(r core.Reply[*string]) core.Message {
		return core.GetChargeMode{Reply: r}
	})
	if err != nil {
		return nil, err
	}
	return core.Values(core.OptionalText(mode)), nil
}

// UnsetChargeMode handles unset_charge_mode([]).
type UnsetChargeMode struct {
	Sender *core.Sender
}

func (h UnsetChargeMode) Call(ctx context.Context, _ core.Params) (core.Params, error) {
	if err := h.Sender.Send(ctx, core.NewCommand(core.SetChargeMode{})); err != nil {
		return nil, err
	}
	return Accepted(), nil
}
