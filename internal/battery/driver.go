// Package battery reads battery telemetry and writes charge settings to the
// hardware. Only the agent's owner goroutine writes through it.
package battery

// Reader exposes the telemetry values of a battery. Each method reports false
// when the hardware has no value to give.
type Reader interface {
	ReadCurrentNow() (float64, bool)
	ReadChargeNow() (float64, bool)
	ReadChargeFull() (float64, bool)
	ReadChargeDesign() (float64, bool)
}

// Driver defines the interface for talking to the battery hardware.
type Driver interface {
	Reader

	// WriteChargeRate applies a charge rate limit; nil restores the default.
	WriteChargeRate(rate *uint64) error
	// WriteChargeMode applies a charge mode; nil restores the default.
	WriteChargeMode(mode *string) error
}
