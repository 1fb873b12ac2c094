package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"
)

// unsetPayload clears a charge setting; it is also what an unset setting
// publishes as.
const unsetPayload = "none"

func isUnset(s string) bool {
	return s == "" || strings.EqualFold(s, unsetPayload)
}

// rateCommand maps a charge_rate/set payload to an operation call.
func rateCommand(payload []byte) (string, core.Params, bool) {
	s := strings.TrimSpace(string(payload))
	if isUnset(s) {
		return api.MethodUnsetChargeRate, nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", nil, false
	}
	return api.MethodSetChargeRate, core.Values(core.Number(v)), true
}

// modeCommand maps a charge_mode/set payload to an operation call.
func modeCommand(payload []byte) (string, core.Params, bool) {
	s := strings.TrimSpace(string(payload))
	if isUnset(s) {
		return api.MethodUnsetChargeMode, nil, true
	}
	return api.MethodSetChargeMode, core.Values(core.Text(s)), true
}

// statePayload renders a value for a state topic.
func statePayload(p core.Primitive) string {
	switch p.Kind() {
	case core.KindNumber:
		v, _ := p.AsNumber()
		return strconv.FormatFloat(v, 'f', -1, 64)
	case core.KindText:
		s, _ := p.AsText()
		return s
	case core.KindBool:
		b, _ := p.AsBool()
		return strconv.FormatBool(b)
	}
	return unsetPayload
}

type sensor struct {
	key  string
	name string
	unit string
	icon string
	// settable sensors also get a command topic.
	settable bool
}

var sensors = []sensor{
	{key: "charge_rate", name: "Charge Rate", unit: "mA", icon: "mdi:battery-charging", settable: true},
	{key: "charge_mode", name: "Charge Mode", icon: "mdi:battery-sync", settable: true},
	{key: api.MethodCurrentNow, name: "Current", unit: "mA", icon: "mdi:current-dc"},
	{key: api.MethodChargeNow, name: "Charge", unit: "mAh", icon: "mdi:battery"},
	{key: api.MethodChargeFull, name: "Charge Full", unit: "mAh", icon: "mdi:battery-high"},
	{key: api.MethodChargeDesign, name: "Charge Design", unit: "mAh", icon: "mdi:battery-heart"},
}

// sanitizeID keeps the characters Home Assistant accepts in object ids.
func sanitizeID(id string) string {
	id = strings.ReplaceAll(id, " ", "_")
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return -1
	}, id)
}

// discoveryConfigs builds the retained Home Assistant config payloads keyed
// by discovery topic.
func discoveryConfigs(discoveryPrefix, clientID, prefix string) map[string][]byte {
	safeID := sanitizeID(clientID)
	device := map[string]any{
		"identifiers":  []string{safeID},
		"name":         "PowerTools Battery",
		"manufacturer": "PowerTools",
		"model":        "Battery Charge Agent",
	}
	availability := []map[string]string{{
		"topic":                 fmt.Sprintf("%s/availability", prefix),
		"payload_available":     "online",
		"payload_not_available": "offline",
	}}

	out := make(map[string][]byte, len(sensors))
	for _, s := range sensors {
		payload := map[string]any{
			"name":         s.name,
			"unique_id":    safeID + "_" + s.key,
			"object_id":    safeID + "_" + s.key,
			"icon":         s.icon,
			"state_topic":  fmt.Sprintf("%s/%s/state", prefix, s.key),
			"availability": availability,
			"device":       device,
		}
		if s.unit != "" {
			payload["unit_of_measurement"] = s.unit
			payload["state_class"] = "measurement"
		}
		if s.settable {
			payload["command_topic"] = fmt.Sprintf("%s/%s/set", prefix, s.key)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("[MQTT] Error encoding discovery for %s: %v", s.key, err)
			continue
		}
		out[fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, safeID, s.key)] = data
	}
	return out
}
