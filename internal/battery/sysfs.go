package battery

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
)

// SysfsPaths locates the files a Sysfs driver reads and writes.
type SysfsPaths struct {
	CurrentNow   string
	ChargeNow    string
	ChargeFull   string
	ChargeDesign string
	ChargeRate   string
	ChargeMode   string
}

// Sysfs drives a battery exposed through kernel attribute files.
type Sysfs struct {
	paths SysfsPaths
	// scale divides raw readings, e.g. 1000 turns µA into mA.
	scale       float64
	defaultRate *uint64
	defaultMode string
}

// NewSysfs creates a driver. A scale <= 0 is treated as 1. defaultRate is
// written when the rate override is cleared; nil leaves the file untouched.
func NewSysfs(paths SysfsPaths, scale float64, defaultRate *uint64, defaultMode string) *Sysfs {
	if scale <= 0 {
		scale = 1
	}
	return &Sysfs{
		paths:       paths,
		scale:       scale,
		defaultRate: defaultRate,
		defaultMode: defaultMode,
	}
}

func (s *Sysfs) ReadCurrentNow() (float64, bool)   { return s.read(s.paths.CurrentNow) }
func (s *Sysfs) ReadChargeNow() (float64, bool)    { return s.read(s.paths.ChargeNow) }
func (s *Sysfs) ReadChargeFull() (float64, bool)   { return s.read(s.paths.ChargeFull) }
func (s *Sysfs) ReadChargeDesign() (float64, bool) { return s.read(s.paths.ChargeDesign) }

// WriteChargeRate writes the rate limit attribute.
func (s *Sysfs) WriteChargeRate(rate *uint64) error {
	if rate == nil {
		rate = s.defaultRate
	}
	if rate == nil {
		return nil
	}
	return s.write(s.paths.ChargeRate, strconv.FormatUint(*rate, 10))
}

// WriteChargeMode writes the charge mode attribute.
func (s *Sysfs) WriteChargeMode(mode *string) error {
	value := s.defaultMode
	if mode != nil {
		value = *mode
	}
	if value == "" {
		return nil
	}
	return s.write(s.paths.ChargeMode, value)
}

func (s *Sysfs) read(path string) (float64, bool) {
	if path == "" {
		return 0, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Battery] Failed to read %s: %v", path, err)
		}
		return 0, false
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		log.Printf("[Battery] Unparseable value in %s: %v", path, err)
		return 0, false
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		log.Printf("[Battery] Non-finite value in %s", path)
		return 0, false
	}
	return raw / s.scale, true
}

func (s *Sysfs) write(path, value string) error {
	if path == "" {
		return fmt.Errorf("no sysfs path configured for value %q", value)
	}
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
