package core

import "github.com/google/uuid"

// Domain groups the commands of one state subsystem.
type Domain string

const (
	DomainBattery Domain = "battery"
)

// CommandType defines the type of command being dispatched.
type CommandType string

const (
	CmdSetChargeRate CommandType = "setChargeRate"
	CmdGetChargeRate CommandType = "getChargeRate"
	CmdSetChargeMode CommandType = "setChargeMode"
	CmdGetChargeMode CommandType = "getChargeMode"
)

// Message is a domain-specific sub-command.
type Message interface {
	Domain() Domain
	Type() CommandType
}

// Command is the envelope for requests to read or change owned state.
// Commands are values; nothing mutates them after NewCommand.
type Command struct {
	ID      string
	Message Message
}

// NewCommand wraps msg in an envelope with a fresh id.
func NewCommand(msg Message) Command {
	return Command{ID: uuid.NewString(), Message: msg}
}

// Domain returns the domain of the wrapped message.
func (c Command) Domain() Domain {
	if c.Message == nil {
		return ""
	}
	return c.Message.Domain()
}

// Type returns the type of the wrapped message.
func (c Command) Type() CommandType {
	if c.Message == nil {
		return ""
	}
	return c.Message.Type()
}

// CommandChannel is the single channel that the owner listens to for commands.
type CommandChannel chan Command

// BatteryMessage is implemented by every battery sub-command.
type BatteryMessage interface {
	Message
	battery()
}

type batteryMessage struct{}

func (batteryMessage) Domain() Domain { return DomainBattery }
func (batteryMessage) battery()       {}

// SetChargeRate sets the charge rate override; a nil Rate clears it.
type SetChargeRate struct {
	batteryMessage
	Rate *uint64
}

func (SetChargeRate) Type() CommandType { return CmdSetChargeRate }

// GetChargeRate asks for the current charge rate override.
type GetChargeRate struct {
	batteryMessage
	Reply Reply[*uint64]
}

func (GetChargeRate) Type() CommandType { return CmdGetChargeRate }

// SetChargeMode sets the charge mode override; a nil Mode clears it.
type SetChargeMode struct {
	batteryMessage
	Mode *string
}

func (SetChargeMode) Type() CommandType { return CmdSetChargeMode }

// GetChargeMode asks for the current charge mode override.
type GetChargeMode struct {
	batteryMessage
	Reply Reply[*string]
}

func (GetChargeMode) Type() CommandType { return CmdGetChargeMode }

var (
	_ BatteryMessage = SetChargeRate{}
	_ BatteryMessage = GetChargeRate{}
	_ BatteryMessage = SetChargeMode{}
	_ BatteryMessage = GetChargeMode{}
)
