// Package core_engine wires the bus, peripherals, and interrupt arbiter into one
// addressable machine and exposes the CPUContext an external Z80 interpreter drives.
package core_engine

import (
	"fmt"
	"log"

	"github.com/unknown-technologies/emulator/core_engine/bus"
	"github.com/unknown-technologies/emulator/core_engine/devices"
	"github.com/unknown-technologies/emulator/core_engine/trace"
)

// port80Mux resolves the KBDICS/channel-config-word-0-low port collision at 0x80
// (§6): reads are the keyboard's multiplexed row, writes are the DMA bank's channel
// configuration word.
type port80Mux struct {
	dma *devices.DMABank
	kbd *devices.Keyboard
}

func (m *port80Mux) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	if direction == devices.IODirectionIn {
		return m.kbd.HandleIO(port, direction, size, data)
	}
	return m.dma.HandleIO(port, direction, size, data)
}

// Engine owns every peripheral and the bus they share, and is the CPUContext an
// external Z80 interpreter's Step call is handed (adapted from virtual_machine.go's
// device-construction and registration sequence).
type Engine struct {
	Bus      *bus.Bus
	PIO      *devices.PIO
	SIO      *devices.SIO
	CTC      *devices.CTC
	DMA      *devices.DMABank
	FDD      *devices.FDD
	LED      *devices.LEDBank
	Keyboard *devices.Keyboard
	Arbiter  *devices.Arbiter

	ioBus *devices.IOBus
	trace trace.Sink

	halted bool

	Debug bool
}

// New constructs a fully wired Engine: it loads rom into the bus, floppy into the
// drive, registers every peripheral onto the port space, and — if sink is non-nil —
// writes the DEVICES/MAP header records (§6).
func New(rom []byte, floppy []byte, sink trace.Sink) (*Engine, error) {
	e := &Engine{
		Bus:     bus.New(),
		Arbiter: devices.NewArbiter(),
		trace:   sink,
	}

	if err := e.Bus.LoadROM(rom); err != nil {
		return nil, fmt.Errorf("core_engine: %w", err)
	}

	// SIO channel A's receive/motor path needs the drive, which in turn needs SIO for
	// its index pulse; construct the FDD first with no sink, then wire it in.
	e.FDD = devices.NewFDD(nil)
	if err := e.FDD.LoadImage(floppy); err != nil {
		return nil, fmt.Errorf("core_engine: %w", err)
	}
	e.SIO = devices.NewSIO(e.FDD, e.Arbiter)
	e.FDD.SetIndexSink(e.SIO)

	e.PIO = devices.NewPIO(e.Bus, e.FDD)
	e.CTC = devices.NewCTC(e.Arbiter)
	e.DMA = devices.NewDMABank(e.FDD, e.Bus, e.CTC)
	e.LED = devices.NewLEDBank(nil)
	e.Keyboard = devices.NewKeyboard(e.Bus)

	e.ioBus = devices.NewIOBus()
	e.ioBus.RegisterDevice(devices.DMA0Base, devices.DMA0End, e.DMA, "DMA controllers 0-3")
	e.ioBus.RegisterDevice(devices.CTCBase, devices.CTCEnd, e.CTC, "CTC")
	e.ioBus.RegisterDevice(devices.PIOBase, devices.PIOEnd, e.PIO, "PIO")
	e.ioBus.RegisterDevice(devices.SIOBase, devices.SIOEnd, e.SIO, "SIO")
	e.ioBus.RegisterDevice(devices.DMA4Base, devices.DMA4End, e.DMA, "DMA controller 4")
	e.ioBus.RegisterDevice(devices.ChannelConfigBase+1, devices.ChannelConfigEnd, e.DMA, "DMA channel config (high bytes + channels 1-7 low byte)")
	e.ioBus.RegisterDevice(devices.ChannelConfigBase, devices.ChannelConfigBase, &port80Mux{dma: e.DMA, kbd: e.Keyboard}, "port80Mux (keyboard read / DMA channel-0-config write)")
	e.ioBus.RegisterDevice(devices.LED0CSPort, devices.LED0CSPort, e.LED, "LED bank (IC112 latch)")
	e.ioBus.RegisterDevice(devices.LED1CSPort, devices.LED1CSPort, e.LED, "LED bank (second IC112 latch)")
	e.ioBus.RegisterDevice(devices.LED2CSPort, devices.LED2CSPort, e.LED, "LED bank (third latch)")
	e.ioBus.RegisterDevice(devices.KBDCSPort, devices.KBDCSPort, e.Keyboard, "keyboard scan select")

	e.writeTraceHeader()
	return e, nil
}

func (e *Engine) writeTraceHeader() {
	if e.trace == nil {
		return
	}
	e.trace.RecordDevices([]trace.DeviceDescriptor{
		{Kind: trace.DeviceKindPIO, ID: 1, Ports: [4]uint8{0x50, 0x51, 0x52, 0x53}},
		{Kind: trace.DeviceKindSIO, ID: 2, Ports: [4]uint8{0x60, 0x61, 0x62, 0x63}},
		{Kind: trace.DeviceKindCTC, ID: 3, Ports: [4]uint8{0x40, 0x41, 0x42, 0x43}},
	})
	e.trace.RecordMap("MEM", 0, bus.RamSize, false)
}

// Read implements CPUContext.
func (e *Engine) Read(addr16 uint16) uint8 {
	v := e.Bus.Read(addr16)
	if e.trace != nil {
		e.trace.RecordRead(addr16, v)
	}
	return v
}

// Write implements CPUContext.
func (e *Engine) Write(addr16 uint16, v uint8) {
	e.Bus.Write(addr16, v)
	if e.trace != nil {
		e.trace.RecordWrite(addr16, v)
	}
}

// In implements CPUContext.
func (e *Engine) In(port uint16) uint8 {
	data := []byte{0}
	if err := e.ioBus.HandleIO(port, devices.IODirectionIn, 1, data); err != nil {
		if e.Debug {
			log.Printf("core_engine: %v", err)
		}
	}
	if e.trace != nil {
		e.trace.RecordIn(port, data[0])
	}
	return data[0]
}

// Out implements CPUContext.
func (e *Engine) Out(port uint16, v uint8) {
	data := []byte{v}
	if err := e.ioBus.HandleIO(port, devices.IODirectionOut, 1, data); err != nil {
		if e.Debug {
			log.Printf("core_engine: %v", err)
		}
	}
	if e.trace != nil {
		e.trace.RecordOut(port, v)
	}
}

// IntAck implements CPUContext: it acknowledges the arbiter's pending vector and
// records it to the trace (§6 IRQ record).
func (e *Engine) IntAck() uint8 {
	vector, _ := e.Arbiter.Ack()
	if e.trace != nil {
		e.trace.RecordIRQ(vector)
	}
	return vector
}

// Halt implements CPUContext; see driver.go for how this feeds the cancellation rule.
func (e *Engine) Halt(state bool) {
	e.halted = state
}

func (e *Engine) NotifySetI(v uint8) {
	if e.trace != nil {
		e.trace.RecordSetI(v)
	}
}

func (e *Engine) NotifySetIM(mode uint8) {
	if e.trace != nil {
		e.trace.RecordSetIM(mode)
	}
}

func (e *Engine) NotifySetEI(enabled bool) {
	if e.trace != nil {
		e.trace.RecordSetEI(enabled)
	}
}

// PatchFloppySerial applies the optional firmware-personalization patch described in
// §2.3: it reads the serial-number bytes at rawROM offsets 0x5F/0x60 (before
// descrambling — the raw EPROM image, not the bus's descrambled copy) and writes them
// into the floppy's track 0. A front-end calls this, if at all, after LoadROM/LoadImage
// and before the first Driver.Run.
func (e *Engine) PatchFloppySerial(rawROM []byte) error {
	if len(rawROM) < 0x61 {
		return fmt.Errorf("core_engine: ROM image too short to read serial bytes (need 0x61, got %d)", len(rawROM))
	}
	e.FDD.PatchSerial(rawROM[0x5F], rawROM[0x60])
	return nil
}

// Advance runs the non-CPU devices for one host step's worth of cycles (§4.10).
func (e *Engine) Advance(deltaCycles uint64) {
	e.FDD.Advance(deltaCycles)
	e.CTC.Advance(deltaCycles)
	e.DMA.Advance()
}
