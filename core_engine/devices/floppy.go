package devices

import (
	"fmt"
	"sync"
)

const (
	TrackCount      = 35
	TrackBytes      = 3584
	FloppyImageSize = TrackCount * TrackBytes

	streamTrackByte = 0
	streamCRCLo     = 1
	streamCRCHi     = 2
	streamGapLo     = 3
	streamGapHi     = 4
	streamPayload   = 5
	streamPostCRC   = streamPayload + TrackBytes

	// indexPulseSteps is how many host steps the DCD line stays asserted after an
	// index pulse's leading edge, per §4.7/§8 S2.
	indexPulseSteps = 100
)

// IndexPulseSink is the subset of the SIO the floppy drive drives directly: the
// once-per-rotation index pulse is wired onto channel A's DCD line (§4.3, §4.7).
type IndexPulseSink interface {
	SetIndexPulse(asserted bool)
}

// FDD implements the 35-track floppy drive: rotation clock, head position, and the
// byte shift-out stream a seek resets to the start of (§3, §4.7).
type FDD struct {
	mu sync.Mutex

	tracks [TrackCount][TrackBytes]byte

	track    uint8
	motorOn  bool
	rotAccum uint64
	cursor   uint16

	indexCountdown int

	sio     IndexPulseSink
	crcFunc func(track []byte) uint16

	Debug bool
}

func NewFDD(sio IndexPulseSink) *FDD {
	return &FDD{sio: sio}
}

// SetCRCHook installs an optional CRC-16 function used in place of the constant
// 0xAA placeholder bytes (§4.7, §9 open question).
func (f *FDD) SetCRCHook(fn func(track []byte) uint16) {
	f.mu.Lock()
	f.crcFunc = fn
	f.mu.Unlock()
}

// SetIndexSink wires the drive's once-per-rotation index pulse to its SIO channel A
// DCD line. Exists so the FDD and SIO, which each need a reference to the other, can
// be constructed in either order (engine.go constructs the FDD first with a nil sink).
func (f *FDD) SetIndexSink(sio IndexPulseSink) {
	f.mu.Lock()
	f.sio = sio
	f.mu.Unlock()
}

// LoadImage copies a raw 35*3584-byte floppy image into the drive.
func (f *FDD) LoadImage(data []byte) error {
	if len(data) != FloppyImageSize {
		return fmt.Errorf("FDD: floppy image must be %d bytes, got %d", FloppyImageSize, len(data))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for t := 0; t < TrackCount; t++ {
		copy(f.tracks[t][:], data[t*TrackBytes:(t+1)*TrackBytes])
	}
	return nil
}

// PatchSerial overwrites track 0's bytes 3 and 4 with a firmware-personalized serial
// number, matching main.c's pre-boot patch of floppy[3]/floppy[4] from rom[0x5F]/
// rom[0x60]. A front-end personalization hook, not a core invariant (§2.3).
func (f *FDD) PatchSerial(b3, b4 uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks[0][3] = b3
	f.tracks[0][4] = b4
}

func (f *FDD) Track() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.track
}

func (f *FDD) SetMotor(on bool) {
	f.mu.Lock()
	f.motorOn = on
	f.mu.Unlock()
}

// Step moves the head by one track in the given direction and resets the stream
// cursor to 0. direction < 0 steps toward track 0 (clamped there); direction >= 0
// steps away from it, clamped at 35 — one past the last valid track, matching §8
// invariant 11's literal wording (see DESIGN.md for why 35 and not 34).
func (f *FDD) Step(direction int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if direction < 0 {
		if f.track > 0 {
			f.track--
		}
	} else if f.track < TrackCount {
		f.track++
	}
	f.cursor = 0
}

// Receive pulls one byte from the synthesized track stream and advances the cursor,
// per the table in §4.7.
func (f *FDD) Receive() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur := f.cursor
	var b uint8

	switch {
	case cur == streamTrackByte:
		b = f.track
	case cur == streamCRCLo || cur == streamCRCHi:
		b = 0x00
	case cur == streamGapLo || cur == streamGapHi:
		b = 0x00
	case cur >= streamPayload && cur < streamPostCRC:
		if int(f.track) < TrackCount {
			b = f.tracks[f.track][cur-streamPayload]
		}
	case cur == streamPostCRC || cur == streamPostCRC+1:
		if f.crcFunc != nil && int(f.track) < TrackCount {
			crc := f.crcFunc(f.tracks[f.track][:])
			if cur == streamPostCRC {
				b = uint8(crc >> 8)
			} else {
				b = uint8(crc)
			}
		} else {
			b = 0xAA
		}
	default:
		if f.Debug {
			fmt.Printf("FDD: reading past track at cursor %d\n", cur)
		}
		b = 0x00
	}

	f.cursor++
	return b
}

// Advance moves the rotation clock forward by deltaCycles and ticks the index-pulse
// trailing-edge countdown by one host step (§4.7, §4.10).
func (f *FDD) Advance(deltaCycles uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexCountdown > 0 {
		f.indexCountdown--
		if f.indexCountdown == 0 && f.sio != nil {
			f.sio.SetIndexPulse(false)
		}
	}

	if !f.motorOn {
		return
	}

	f.rotAccum += deltaCycles
	if f.rotAccum >= CPUClock/5 {
		f.rotAccum -= CPUClock / 5
		if f.sio != nil {
			f.sio.SetIndexPulse(true)
		}
		f.indexCountdown = indexPulseSteps
	}
}
