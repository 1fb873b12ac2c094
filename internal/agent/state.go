package agent

// chargeState holds the charge overrides. Only the owner goroutine touches it,
// so it carries no lock.
type chargeState struct {
	rate *uint64
	mode *string
}

func (s *chargeState) setRate(rate *uint64) { s.rate = cloneUint(rate) }
func (s *chargeState) setMode(mode *string) { s.mode = cloneString(mode) }

// Rate returns a copy so the owner's value never escapes.
func (s *chargeState) Rate() *uint64 { return cloneUint(s.rate) }
func (s *chargeState) Mode() *string { return cloneString(s.mode) }

func cloneUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
