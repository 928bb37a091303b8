package devices

import "sync"

// InterruptRaiser lets a peripheral push a pending interrupt vector to the arbiter.
// Kept distinct from bus/engine types so devices never import the engine package —
// the same import-cycle-avoidance the teacher's serial.go documents for its own
// InterruptRaiser interface.
type InterruptRaiser interface {
	RaiseIRQ(vector uint8)
}

// Arbiter holds the single pending-IRQ byte the CPU's int_ack callback consumes
// (§3, §4 design notes). It does not queue: a second raise before the first is
// acknowledged simply overwrites the pending vector, matching the daisy-chained
// priority scheme the real hardware exhibits (§7). Per-device gating on how often a
// device calls Raise (e.g. the CTC's two-step cooldown, §4.4) lives in that device,
// not here — the arbiter itself has no opinion on who raised or how recently.
type Arbiter struct {
	mu      sync.Mutex
	pending bool
	vector  uint8
}

func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// RaiseIRQ implements InterruptRaiser.
func (a *Arbiter) RaiseIRQ(vector uint8) {
	a.mu.Lock()
	a.pending = true
	a.vector = vector
	a.mu.Unlock()
}

// Ack returns the pending vector and clears it. ok is false if nothing is pending.
func (a *Arbiter) Ack() (vector uint8, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending {
		return 0, false
	}
	v := a.vector
	a.pending = false
	return v, true
}

// Pending reports whether the CPU has an interrupt waiting.
func (a *Arbiter) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}
