package devices

import (
	"fmt"
	"sync"
)

// sio WR0 command field values (bits 3..5 of a WR0 byte).
const (
	sioCmdNOP uint8 = iota
	sioCmdSendAbort
	sioCmdResetExtStatusInt
	sioCmdChannelReset
	sioCmdEnableIntOnNextRx
	sioCmdResetTxIntPending
	sioCmdErrorReset
	sioCmdReturnFromInt
)

// FloppyLink is the subset of the FDD the SIO's receive path and channel-A DTR line
// drive (§4.3, §4.7).
type FloppyLink interface {
	Receive() uint8
	SetMotor(on bool)
}

type sioChannel struct {
	wrPtr        uint8
	crcResetCode uint8

	rts bool
	dtr bool

	rxEnable    bool
	exiEnable   bool
	txIntEnable bool
	rxIntMode   uint8

	syncPattern uint16

	lastCTS bool
	lastDCD bool

	rxData uint8
	rxne   bool

	exiPending bool
	rxPending  bool
	txPending  bool
}

// SIO implements the Z80 SIO serial peripheral: two register-pointer-driven channels
// sharing one interrupt vector base, with channel A wired to the floppy drive's
// motor control and index-pulse (DCD) line (§3, §4.3).
type SIO struct {
	mu sync.Mutex

	a, b sioChannel

	vectorBase          uint8
	statusAffectsVector bool

	fdd FloppyLink
	irq InterruptRaiser

	Debug bool
}

func NewSIO(fdd FloppyLink, irq InterruptRaiser) *SIO {
	s := &SIO{fdd: fdd, irq: irq}
	s.a.rxne = false
	s.b.rxne = false
	return s
}

func (s *SIO) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size != 1 {
		return fmt.Errorf("SIO: unsupported I/O size %d for port 0x%x", size, port)
	}

	switch port {
	case SIOPortAData:
		s.handleData(&s.a, direction, data)
	case SIOPortBData:
		s.handleData(&s.b, direction, data)
	case SIOPortACtrl:
		s.handleControl(&s.a, false, direction, data)
	case SIOPortBCtrl:
		s.handleControl(&s.b, true, direction, data)
	default:
		return fmt.Errorf("SIO: unhandled I/O to port 0x%x", port)
	}
	return nil
}

func (s *SIO) handleData(ch *sioChannel, direction uint8, data []byte) {
	if direction == IODirectionIn {
		data[0] = ch.rxData
		ch.rxne = false
		return
	}
	// Transmission is not modeled (audio/serial synthesis is out of scope); the
	// write is accepted and otherwise ignored.
}

func (s *SIO) handleControl(ch *sioChannel, isChannelB bool, direction uint8, data []byte) {
	if direction == IODirectionOut {
		s.writeControl(ch, isChannelB, data[0])
		return
	}

	if ch.wrPtr != 0 {
		ch.wrPtr = 0
		data[0] = 0
		return
	}

	if !ch.rxne && ch.rxEnable && s.fdd != nil {
		ch.rxData = s.fdd.Receive()
		ch.rxne = true
	}

	var status uint8
	if ch.rxne {
		status |= 0x01
	}
	if ch.lastDCD {
		status |= 0x08
	}
	if ch.lastCTS {
		status |= 0x20
	}
	data[0] = status
}

func (s *SIO) writeControl(ch *sioChannel, isChannelB bool, val uint8) {
	switch ch.wrPtr {
	case 0:
		s.writeWR0(ch, val)
		ch.wrPtr = val & 0x07
		return
	case 1:
		ch.exiEnable = val&0x01 != 0
		ch.txIntEnable = val&0x02 != 0
		if isChannelB {
			s.statusAffectsVector = val&0x04 != 0
		}
		ch.rxIntMode = (val >> 3) & 0x03
	case 2:
		if isChannelB {
			s.vectorBase = val
		}
	case 3:
		ch.rxEnable = val&0x01 != 0
	case 5:
		ch.rts = val&0x02 != 0
		ch.dtr = val&0x80 != 0
		if !isChannelB && s.fdd != nil {
			s.fdd.SetMotor(ch.dtr)
		}
	case 6:
		ch.syncPattern = (ch.syncPattern &^ 0x00FF) | uint16(val)
	case 7:
		ch.syncPattern = (ch.syncPattern &^ 0xFF00) | uint16(val)<<8
	}
	ch.wrPtr = 0
}

// writeWR0 decodes the D3-D5 command field. Only "reset ext/status interrupts" has an
// effect; NOP, send-abort, channel-reset, enable-int-on-next-rx, reset-tx-int-pending,
// error-reset, and return-from-int are all literal no-ops here, matching
// EMUWriteSIO's switch in original_source/src/emulator.c (every case but 2 is `break;`).
func (s *SIO) writeWR0(ch *sioChannel, val uint8) {
	ch.crcResetCode = (val >> 6) & 0x03
	if (val>>3)&0x07 == sioCmdResetExtStatusInt {
		ch.exiPending = false
	}
}

// SetIndexPulse is called by the floppy drive once per rotation (§4.7). It raises an
// external/status interrupt on channel A on the leading edge and clears the pending
// flag on the trailing edge, per §4.3.
func (s *SIO) SetIndexPulse(asserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.a.lastDCD == asserted {
		return
	}
	s.a.lastDCD = asserted
	if asserted {
		s.a.exiPending = true
		if s.a.exiEnable {
			s.raiseInterrupt(sioKindExiA)
		}
	} else {
		s.a.exiPending = false
	}
}

// SetCTS updates the CTS edge for a channel (A if isChannelB is false) and raises an
// external/status interrupt if enabled, mirroring the DCD path in SetIndexPulse. No
// caller in this core drives CTS today — the floppy link only needs DCD — but the
// data model carries the field and the protocol is symmetric, so it is implemented.
func (s *SIO) SetCTS(isChannelB bool, asserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := &s.a
	kind := sioKindExiA
	if isChannelB {
		ch = &s.b
		kind = sioKindExiB
	}
	if ch.lastCTS == asserted {
		return
	}
	ch.lastCTS = asserted
	if asserted && ch.exiEnable {
		s.raiseInterrupt(kind)
	}
}

func (s *SIO) raiseInterrupt(kind int) {
	if s.irq == nil {
		return
	}
	vector := s.vectorBase
	if s.statusAffectsVector {
		vector = (s.vectorBase & 0xF1) | uint8(kind<<1)
	}
	s.irq.RaiseIRQ(vector)
}
