package battery

import (
	"context"
	"log"
	"strconv"

	"golang.org/x/time/rate"
)

type writeKind int

const (
	writeRate writeKind = iota
	writeMode
)

type writeCmd struct {
	kind writeKind
	rate *uint64
	mode *string
}

// Writer applies charge settings to a Driver from a background loop so the
// owner never blocks on slow hardware. Writes are throttled by a limiter.
type Writer struct {
	driver    Driver
	writeChan chan writeCmd
	limiter   *rate.Limiter
	done      chan struct{}
}

// NewWriter creates a writer and starts its loop; it stops when ctx ends.
func NewWriter(ctx context.Context, driver Driver, writeRateLimit float64, writeBurst int) *Writer {
	if writeBurst <= 0 {
		writeBurst = 1
	}
	w := &Writer{
		driver:    driver,
		writeChan: make(chan writeCmd, writeBurst*2),
		limiter:   rate.NewLimiter(rate.Limit(writeRateLimit), writeBurst),
		done:      make(chan struct{}),
	}

	go w.writerLoop(ctx)
	return w
}

// SetChargeRate queues a charge rate write.
func (w *Writer) SetChargeRate(r *uint64) {
	w.enqueue(writeCmd{kind: writeRate, rate: r})
}

// SetChargeMode queues a charge mode write.
func (w *Writer) SetChargeMode(m *string) {
	w.enqueue(writeCmd{kind: writeMode, mode: m})
}

// Done is closed once the loop has exited.
func (w *Writer) Done() <-chan struct{} { return w.done }

func (w *Writer) enqueue(cmd writeCmd) {
	select {
	case w.writeChan <- cmd:
	default:
		log.Printf("[Battery] Warning: write queue full, dropping %s", cmd)
	}
}

// writerLoop processes queued writes in order.
func (w *Writer) writerLoop(ctx context.Context) {
	defer close(w.done)
	log.Println("[Battery] Write loop started.")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-w.writeChan:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}

			var err error
			switch cmd.kind {
			case writeRate:
				err = w.driver.WriteChargeRate(cmd.rate)
			case writeMode:
				err = w.driver.WriteChargeMode(cmd.mode)
			}
			if err != nil {
				log.Printf("[Battery] Failed to apply %s: %v", cmd, err)
			}
		}
	}
}

func (c writeCmd) String() string {
	if c.kind == writeRate {
		return "charge rate " + describeRate(c.rate)
	}
	return "charge mode " + describeMode(c.mode)
}

func describeRate(r *uint64) string {
	if r == nil {
		return "<default>"
	}
	return strconv.FormatUint(*r, 10)
}

func describeMode(m *string) string {
	if m == nil {
		return "<default>"
	}
	return strconv.Quote(*m)
}
