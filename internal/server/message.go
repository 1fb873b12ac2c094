package server

import "powertools-agent/internal/core"

// Outgoing message types.
const (
	TypeResult       = "result"
	TypeBatteryState = "battery_state"
	TypeChargeRate   = "charge_rate"
	TypeChargeMode   = "charge_mode"
	TypeScriptStatus = "script_status"
	TypeScriptList   = "script_list"
	TypeScheduleList = "schedule_list"
)

// Request is an operation call from a WebSocket client.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Args   core.Params `json:"args"`
}

// Result answers a Request with either Result or Error set. Result holds a
// core.Params; an empty result list is still encoded.
type Result struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload any) Message {
	return Message{Type: msgType, Payload: payload}
}

// eventMessage converts a bus event to the message clients see. Events with
// no client representation return false.
func eventMessage(ev core.Event) (Message, bool) {
	switch p := ev.Payload.(type) {
	case core.ChargeRatePayload:
		return NewMessage(TypeChargeRate, map[string]core.Primitive{"rate": core.OptionalUint(p.Rate)}), true
	case core.ChargeModePayload:
		return NewMessage(TypeChargeMode, map[string]core.Primitive{"mode": core.OptionalText(p.Mode)}), true
	case core.ScriptPayload:
		return NewMessage(TypeScriptStatus, map[string]string{"running": p.Running}), true
	}
	return Message{}, false
}
