package devices

import (
	"fmt"
	"sync"
)

// seqIC112Bits is the subset of IC112 bits the sequencer-board read view folds in
// alongside IC115 (§2.3, §4.8): SWAP, PUT, GET_UPR, GET_LWR — the four indicators the
// sequencer sub-board itself drives, as opposed to the keyboard-layer ones.
var seqIC112Bits = [4]uint{LedSwap, LedPut, LedGetUpr, LedGetLwr}

// LEDReporter receives a decoded snapshot whenever any of the three latches changes
// (§4.8). The front-end implements this; the core only decodes and calls it.
type LEDReporter interface {
	ReportLEDs(ic112 uint16, ic115 uint8)
}

// LEDBank implements the two synthesized LED words (IC112, IC115) driven by three raw
// 8-bit output latches, with change-detected reporting to an optional front-end (§3,
// §4.8).
type LEDBank struct {
	mu sync.Mutex

	latch    [3]uint8
	prev     [3]uint8
	reporter LEDReporter

	Debug bool
}

func NewLEDBank(reporter LEDReporter) *LEDBank {
	return &LEDBank{reporter: reporter}
}

func (l *LEDBank) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if size != 1 {
		return fmt.Errorf("LED: unsupported I/O size %d for port 0x%x", size, port)
	}
	if direction == IODirectionIn {
		return fmt.Errorf("LED: no read path for port 0x%x", port)
	}

	var idx int
	switch port {
	case LED0CSPort:
		idx = 0
	case LED1CSPort:
		idx = 1
	case LED2CSPort:
		idx = 2
	default:
		return fmt.Errorf("LED: unhandled I/O to port 0x%x", port)
	}

	l.latch[idx] = data[0]
	l.reportIfChanged()
	return nil
}

// reportIfChanged implements the idempotent change-detector (§8 invariant 10): writing
// the same latch value twice produces one report, since the second write never flips
// latch != prev.
func (l *LEDBank) reportIfChanged() {
	if l.latch == l.prev {
		return
	}
	l.prev = l.latch
	if l.reporter != nil {
		l.reporter.ReportLEDs(l.decodeIC112(), l.decodeIC115())
	}
}

func (l *LEDBank) decodeIC112() uint16 {
	positions0 := [8]uint{1, 2, 4, 6, 7, 3, 8, 5}
	positions1 := [8]uint{15, 16, 14, 12, 9, 13, 10, 11}

	var word uint16
	for i := 0; i < 8; i++ {
		if (l.latch[0]>>(7-i))&1 == 0 {
			word |= 1 << (positions0[i] - 1)
		}
		if (l.latch[1]>>(7-i))&1 == 0 {
			word |= 1 << (positions1[i] - 1)
		}
	}
	return word
}

func (l *LEDBank) decodeIC115() uint8 {
	srcBits0 := [4]uint{0, 3, 4, 5}
	dstPos0 := [4]uint{2, 4, 3, 1}
	srcBits2 := [4]uint{0, 1, 2, 3}
	dstPos2 := [4]uint{5, 8, 7, 6}

	var word uint8
	for i := 0; i < 4; i++ {
		if (l.latch[0]>>srcBits0[i])&1 == 0 {
			word |= 1 << (dstPos0[i] - 1)
		}
		if (l.latch[2]>>srcBits2[i])&1 == 0 {
			word |= 1 << (dstPos2[i] - 1)
		}
	}
	return word
}

// GetLEDs is the full IC112 16-bit decoded word, independent of change-detection
// (§2.3's EMUGetLEDs).
func (l *LEDBank) GetLEDs() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decodeIC112()
}

// GetSEQLEDs is the sequencer-board-only masked view (§2.3's EMUGetSEQLEDs): the full
// IC115 byte in the low 8 bits, plus the sequencer-driven IC112 indicators (SWAP, PUT,
// GET_UPR, GET_LWR) packed into the next 4 bits.
func (l *LEDBank) GetSEQLEDs() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ic112 := l.decodeIC112()
	var seqBits uint16
	for i, pos := range seqIC112Bits {
		if ic112&(1<<(pos-1)) != 0 {
			seqBits |= 1 << uint(i)
		}
	}
	return uint16(l.decodeIC115()) | seqBits<<8
}
