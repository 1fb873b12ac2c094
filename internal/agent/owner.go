package agent

import (
	"context"
	"log"

	"powertools-agent/internal/core"
)

// Applier pushes accepted settings to the hardware. *battery.Writer is the
// production implementation.
type Applier interface {
	SetChargeRate(rate *uint64)
	SetChargeMode(mode *string)
}

// Owner is the single consumer of the command queue and the only reader and
// writer of charge state. Commands are handled strictly in arrival order.
type Owner struct {
	queue    core.CommandChannel
	done     chan struct{}
	sender   *core.Sender
	state    chargeState
	hw       Applier
	eventBus *core.EventBus
}

// NewOwner creates an owner with a queue of the given capacity. hw and eb may
// be nil.
func NewOwner(queueSize int, hw Applier, eb *core.EventBus) *Owner {
	if queueSize < 0 {
		queueSize = 0
	}
	o := &Owner{
		queue:    make(core.CommandChannel, queueSize),
		done:     make(chan struct{}),
		hw:       hw,
		eventBus: eb,
	}
	o.sender = core.NewSender(o.queue, o.done)
	return o
}

// Sender returns the shared handle for enqueueing commands.
func (o *Owner) Sender() *core.Sender { return o.sender }

// Run drains the queue until ctx is cancelled. Once it returns, senders and
// callers waiting on replies get core.ErrChannelClosed. Call Run once.
func (o *Owner) Run(ctx context.Context) {
	defer close(o.done)

	log.Println("[Agent] Owner loop ready.")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Agent] Owner loop shutting down, %d queued commands dropped.", len(o.queue))
			return
		case cmd := <-o.queue:
			o.handleCommand(cmd)
		}
	}
}

func (o *Owner) handleCommand(cmd core.Command) {
	log.Printf("[Agent] Handling command %s (%s/%s)", cmd.ID, cmd.Domain(), cmd.Type())

	switch msg := cmd.Message.(type) {
	case core.BatteryMessage:
		o.handleBattery(cmd.ID, msg)
	default:
		log.Printf("[Agent] Unknown command type: %T", cmd.Message)
	}
}

func (o *Owner) handleBattery(id string, msg core.BatteryMessage) {
	switch m := msg.(type) {
	case core.SetChargeRate:
		o.state.setRate(m.Rate)
		if o.hw != nil {
			o.hw.SetChargeRate(o.state.Rate())
		}
		o.publish(core.Event{Type: core.ChargeRateChangedEvent, Payload: core.ChargeRatePayload{Rate: o.state.Rate()}})

	case core.GetChargeRate:
		if !m.Reply.Send(o.state.Rate()) {
			log.Printf("[Agent] Reply for %s was not delivered", id)
		}

	case core.SetChargeMode:
		o.state.setMode(m.Mode)
		if o.hw != nil {
			o.hw.SetChargeMode(o.state.Mode())
		}
		o.publish(core.Event{Type: core.ChargeModeChangedEvent, Payload: core.ChargeModePayload{Mode: o.state.Mode()}})

	case core.GetChargeMode:
		if !m.Reply.Send(o.state.Mode()) {
			log.Printf("[Agent] Reply for %s was not delivered", id)
		}

	default:
		log.Printf("[Agent] Unknown battery command: %s", msg.Type())
	}
}

func (o *Owner) publish(ev core.Event) {
	if o.eventBus != nil {
		o.eventBus.Publish(ev)
	}
}
