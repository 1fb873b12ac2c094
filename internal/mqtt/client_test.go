package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"
)

func TestRateCommand(t *testing.T) {
	cases := []struct {
		payload string
		method  string
		ok      bool
	}{
		{"40", api.MethodSetChargeRate, true},
		{" 12.5 ", api.MethodSetChargeRate, true},
		{"", api.MethodUnsetChargeRate, true},
		{"None", api.MethodUnsetChargeRate, true},
		{"fast", "", false},
	}
	for _, tc := range cases {
		method, _, ok := rateCommand([]byte(tc.payload))
		if method != tc.method || ok != tc.ok {
			t.Fatalf("%q: expected (%s, %v), got (%s, %v)", tc.payload, tc.method, tc.ok, method, ok)
		}
	}

	_, params, _ := rateCommand([]byte("40"))
	if params.At(0) != core.Number(40) {
		t.Fatalf("expected [40], got %v", params)
	}
}

func TestModeCommand(t *testing.T) {
	method, params, _ := modeCommand([]byte(" eco\n"))
	if method != api.MethodSetChargeMode || params.At(0) != core.Text("eco") {
		t.Fatalf("unexpected (%s, %v)", method, params)
	}
	if method, _, _ := modeCommand([]byte("none")); method != api.MethodUnsetChargeMode {
		t.Fatalf("expected unset, got %s", method)
	}
}

func TestStatePayload(t *testing.T) {
	cases := map[string]core.Primitive{
		"40":   core.Number(40),
		"1.25": core.Number(1.25),
		"eco":  core.Text("eco"),
		"true": core.Bool(true),
		"none": core.Empty(),
	}
	for want, p := range cases {
		if got := statePayload(p); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestDiscoveryConfigs(t *testing.T) {
	configs := discoveryConfigs("homeassistant", "power tools!", "powertools")
	if len(configs) != len(sensors) {
		t.Fatalf("expected %d configs, got %d", len(sensors), len(configs))
	}

	raw, ok := configs["homeassistant/sensor/power_tools/charge_rate/config"]
	if !ok {
		t.Fatalf("missing charge_rate config in %v", configs)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["command_topic"] != "powertools/charge_rate/set" {
		t.Fatalf("unexpected command topic %v", payload["command_topic"])
	}
	if payload["state_topic"] != "powertools/charge_rate/state" {
		t.Fatalf("unexpected state topic %v", payload["state_topic"])
	}

	var reading map[string]any
	if err := json.Unmarshal(configs["homeassistant/sensor/power_tools/current_now/config"], &reading); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reading["state_topic"] != "powertools/current_now/state" {
		t.Fatalf("unexpected state topic %v", reading["state_topic"])
	}
	if _, ok := reading["command_topic"]; ok {
		t.Fatal("readings must not be settable")
	}
}

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingCaller struct {
	methods []string
}

func (r *recordingCaller) Call(_ context.Context, method string, _ core.Params) (core.Params, error) {
	r.methods = append(r.methods, method)
	return api.Accepted(), nil
}

func TestHandlersDispatch(t *testing.T) {
	caller := &recordingCaller{}
	c := &Client{caller: caller, prefix: "powertools"}

	c.handleChargeRate(nil, fakeMessage{payload: []byte("40")})
	c.handleChargeRate(nil, fakeMessage{payload: []byte("bogus")})
	c.handleChargeMode(nil, fakeMessage{payload: []byte("")})

	want := []string{api.MethodSetChargeRate, api.MethodUnsetChargeMode}
	if len(caller.methods) != len(want) {
		t.Fatalf("expected %v, got %v", want, caller.methods)
	}
	for i := range want {
		if caller.methods[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, caller.methods)
		}
	}
}
