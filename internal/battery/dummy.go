package battery

import (
	"log"
	"sync"
)

// Dummy is an in-memory driver for hosts without a controllable battery.
type Dummy struct {
	mu           sync.Mutex
	currentNow   float64
	chargeNow    float64
	chargeFull   float64
	chargeDesign float64
	rate         *uint64
	mode         *string
}

// NewDummy returns a driver reporting a fixed, healthy battery.
func NewDummy() *Dummy {
	return &Dummy{
		currentNow:   1200,
		chargeNow:    4500,
		chargeFull:   5000,
		chargeDesign: 5313,
	}
}

func (d *Dummy) ReadCurrentNow() (float64, bool)   { return d.get(&d.currentNow) }
func (d *Dummy) ReadChargeNow() (float64, bool)    { return d.get(&d.chargeNow) }
func (d *Dummy) ReadChargeFull() (float64, bool)   { return d.get(&d.chargeFull) }
func (d *Dummy) ReadChargeDesign() (float64, bool) { return d.get(&d.chargeDesign) }

func (d *Dummy) get(v *float64) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *v, true
}

// WriteChargeRate records the rate.
func (d *Dummy) WriteChargeRate(rate *uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rate = rate
	log.Printf("[Battery] (dummy) charge rate -> %s", describeRate(rate))
	return nil
}

// WriteChargeMode records the mode.
func (d *Dummy) WriteChargeMode(mode *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	log.Printf("[Battery] (dummy) charge mode -> %s", describeMode(mode))
	return nil
}

// Written returns the last values written.
func (d *Dummy) Written() (*uint64, *string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate, d.mode
}
