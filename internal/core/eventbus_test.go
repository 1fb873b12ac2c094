package core

import "testing"

func TestEventBusDelivery(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(ChargeRateChangedEvent)

	rate := uint64(30)
	eb.Publish(Event{Type: ChargeRateChangedEvent, Payload: ChargeRatePayload{Rate: &rate}})
	eb.Publish(Event{Type: ChargeModeChangedEvent})

	select {
	case ev := <-sub:
		p, ok := ev.Payload.(ChargeRatePayload)
		if !ok || *p.Rate != 30 {
			t.Fatalf("unexpected payload %#v", ev.Payload)
		}
	default:
		t.Fatal("expected event")
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event %v", ev.Type)
	default:
	}

	eb.Unsubscribe(sub, ChargeRateChangedEvent)
	eb.Publish(Event{Type: ChargeRateChangedEvent})
	select {
	case <-sub:
		t.Fatal("expected no delivery after unsubscribe")
	default:
	}
}
