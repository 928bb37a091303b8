package core_engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/unknown-technologies/emulator/core_engine/trace"
)

// Watchpoint tracks visits to one PC value: either a visit-count threshold or a
// debug callback run on every visit, never both (§2.3).
type Watchpoint struct {
	Threshold int
	Callback  func(visits int)
	visits    int
}

// Watchpoints is additive bookkeeping around the driver loop (§2.3): it never
// terminates Run by itself, and Run does not consult it. A caller calls Check with
// each step's PC (or installs a Callback) and decides whether to call Driver.Stop.
type Watchpoints struct {
	mu     sync.Mutex
	points map[uint16]*Watchpoint
}

func NewWatchpoints() *Watchpoints {
	return &Watchpoints{points: make(map[uint16]*Watchpoint)}
}

// AddThreshold registers pc so that Check reports hit == true once its visit count
// reaches threshold (e.g. "stop after the 10th visit to 0x00BE").
func (w *Watchpoints) AddThreshold(pc uint16, threshold int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points[pc] = &Watchpoint{Threshold: threshold}
}

// AddCallback registers pc so that Check invokes cb, with the running visit count,
// every time pc is seen.
func (w *Watchpoints) AddCallback(pc uint16, cb func(visits int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points[pc] = &Watchpoint{Callback: cb}
}

// Check is called once per step with the CPU's reported PC. It reports hit == true
// the step a threshold watchpoint reaches its configured count.
func (w *Watchpoints) Check(pc uint16) (hit bool, visits int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wp, ok := w.points[pc]
	if !ok {
		return false, 0
	}
	wp.visits++
	if wp.Callback != nil {
		wp.Callback(wp.visits)
		return false, wp.visits
	}
	return wp.visits >= wp.Threshold, wp.visits
}

// Driver runs the cycle loop: one CPU instruction, then FDD/CTC/DMA advance, in the
// order §4.10 requires (adapted from vcpu.go's Run() loop shape — select-based
// stop-channel control and a named Close/Stop path, with every KVM ioctl call
// replaced by one CPU.Step call).
type Driver struct {
	engine *Engine
	cpu    CPU

	stopChan chan struct{}
	stopOnce sync.Once

	// StopOnHalt terminates Run the first time the CPU reports entering HALT — the
	// "explicit z80halt callback" cancellation condition (§4.10). Defaults to true;
	// a caller driving a CPU that uses HALT as an idle-wait-for-interrupt state rather
	// than a run-ending signal should set this false and rely on Stop/watchpoints
	// instead.
	StopOnHalt bool

	Debug bool
}

func NewDriver(engine *Engine, cpu CPU) *Driver {
	return &Driver{
		engine:     engine,
		cpu:        cpu,
		stopChan:   make(chan struct{}),
		StopOnHalt: true,
	}
}

// Stop requests the run loop exit before its next step. Safe to call from another
// goroutine; idempotent.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

// Run drives the cycle loop until Stop is called, the CPU reports a HALT entry (if
// StopOnHalt), or Step returns an error. codelen == 0 is an invariant violation (§7):
// it is fatal and Run returns an error rather than continuing.
func (d *Driver) Run() error {
	for {
		select {
		case <-d.stopChan:
			return nil
		default:
		}

		res, err := d.cpu.Step(d.engine)
		if err != nil {
			return fmt.Errorf("core_engine: CPU step failed: %w", err)
		}
		if len(res.Opcode) == 0 {
			return fmt.Errorf("core_engine: invariant violation: CPU reported codelen == 0 at PC 0x%x", res.Registers.PC)
		}

		if d.engine.trace != nil {
			d.engine.trace.RecordStep(trace.Registers(res.Registers), res.Opcode)
		}

		d.engine.Advance(res.DeltaCycles)

		if d.engine.halted && d.StopOnHalt {
			if d.Debug {
				log.Printf("core_engine: halted at PC 0x%x, stopping", res.Registers.PC)
			}
			return nil
		}
	}
}
