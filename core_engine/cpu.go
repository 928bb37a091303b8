package core_engine

// Registers is the Z80 register file surfaced for tracing and watchpoint checks. The
// core never interprets these values itself; it only reads them back from the CPU
// after a step (§6 CPU callback interface, §6 STEP trace record).
type Registers struct {
	PC, SP         uint16
	AF, BC, DE, HL uint16
	IX, IY         uint16
}

// StepResult is what one call to CPU.Step reports back to the driver: how many cycles
// the instruction took, the raw opcode bytes executed (for the trace's STEP record),
// and the register file afterward.
type StepResult struct {
	DeltaCycles uint64
	Opcode      []byte
	Registers   Registers
}

// CPUContext is the callback surface the external Z80 interpreter is handed once, at
// construction, and calls back into for every bus access (§6: "the CPU's bus
// operations take an opaque context pointer; the emulator passes itself in once and
// never stores the CPU except by exclusive ownership").
type CPUContext interface {
	Read(addr16 uint16) uint8
	Write(addr16 uint16, v uint8)
	In(port uint16) uint8
	Out(port uint16, v uint8)

	// IntAck is called when the CPU accepts a pending interrupt; it returns the
	// vector byte and clears the arbiter's pending flag.
	IntAck() uint8

	// Halt reports a HALT instruction's entry (true) or exit (false), feeding the
	// z80halt cancellation condition (§5).
	Halt(state bool)

	// NotifySetI, NotifySetIM, and NotifySetEI mirror the CPU's I register, interrupt
	// mode, and EI/DI state into the trace stream (SET_I/SET_IM/SET_EI records, §6).
	NotifySetI(v uint8)
	NotifySetIM(mode uint8)
	NotifySetEI(enabled bool)
}

// CPU is the external Z80 interpreter's driver-facing interface. This core does not
// implement a Z80 instruction decoder — §6 describes the CPU explicitly as consumed
// from an external interpreter — it only drives one already supplied.
type CPU interface {
	// Step executes exactly one instruction against ctx and reports what happened.
	Step(ctx CPUContext) (StepResult, error)
}
