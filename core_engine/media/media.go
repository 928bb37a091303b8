// Package media loads the ROM and floppy image files the core is initialized from,
// using a read-only mmap instead of a buffered read (§6 "ROM file"/"Floppy image").
package media

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LoadFile mmaps path read-only and returns a copy of its bytes sized exactly wantLen.
// The mapping is unmapped before returning — the caller only needs the bytes once, at
// startup, to seed the bus's ROM or the drive's tracks, so there is no reason to keep
// the mapping resident for the life of the process.
func LoadFile(path string, wantLen int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("media: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", path, err)
	}
	if int64(wantLen) != info.Size() {
		return nil, fmt.Errorf("media: %s must be %d bytes, got %d", path, wantLen, info.Size())
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, wantLen, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("media: mmap %s: %w", path, err)
	}
	defer unix.Munmap(mapped)

	out := make([]byte, wantLen)
	copy(out, mapped)
	return out, nil
}

// LoadROM reads the 1024-byte EPROM image prior to descrambling.
func LoadROM(path string) ([]byte, error) {
	return LoadFile(path, 1024)
}

// LoadFloppy reads the 35*3584-byte raw concatenated-track floppy image.
func LoadFloppy(path string) ([]byte, error) {
	return LoadFile(path, 35*3584)
}
