package devices_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unknown-technologies/emulator/core_engine/devices"
)

type mockFORC16Setter struct {
	last bool
	n    int
}

func (m *mockFORC16Setter) SetFORC16(v bool) { m.last = v; m.n++ }

func readRow(t *testing.T, k *devices.Keyboard, row uint8) uint8 {
	t.Helper()
	require.NoError(t, k.HandleIO(devices.KBDCSPort, devices.IODirectionOut, 1, []byte{row}))
	data := []byte{0}
	require.NoError(t, k.HandleIO(devices.KBDICSPort, devices.IODirectionIn, 1, data))
	return data[0]
}

func TestKeyboardAllKeysReadReleasedAtReset(t *testing.T) {
	k := devices.NewKeyboard(nil)
	for row := uint8(0); row <= 8; row++ {
		assert.Equal(t, uint8(0xFF), readRow(t, k, row))
	}
}

func TestKeyboardPressClearsItsBit(t *testing.T) {
	k := devices.NewKeyboard(nil)
	k.PressKey(3)
	assert.Equal(t, uint8(0xF7), readRow(t, k, 0), "key 3 is bit 3 of row 0")

	k.ReleaseKey(3)
	assert.Equal(t, uint8(0xFF), readRow(t, k, 0))
}

func TestKeyboardRow8IsThe8BitBank(t *testing.T) {
	k := devices.NewKeyboard(nil)
	k.PressKey(64)
	assert.Equal(t, uint8(0xFE), readRow(t, k, 8))
}

func TestKeyboardRow9AndBeyondReadAllReleased(t *testing.T) {
	k := devices.NewKeyboard(nil)
	assert.Equal(t, uint8(0xFF), readRow(t, k, 9))
	assert.Equal(t, uint8(0xFF), readRow(t, k, 15))
}

func TestKeyboardScanWriteDrivesFORC16(t *testing.T) {
	bus := &mockFORC16Setter{}
	k := devices.NewKeyboard(bus)

	require.NoError(t, k.HandleIO(devices.KBDCSPort, devices.IODirectionOut, 1, []byte{0x20}))
	assert.Equal(t, 1, bus.n)
	assert.True(t, bus.last)

	require.NoError(t, k.HandleIO(devices.KBDCSPort, devices.IODirectionOut, 1, []byte{0x00}))
	assert.False(t, bus.last)
}

func TestKeyboardRejectsWrongDirection(t *testing.T) {
	k := devices.NewKeyboard(nil)
	assert.Error(t, k.HandleIO(devices.KBDCSPort, devices.IODirectionIn, 1, []byte{0}))
	assert.Error(t, k.HandleIO(devices.KBDICSPort, devices.IODirectionOut, 1, []byte{0}))
}

func TestKeyFromMIDIRange(t *testing.T) {
	// EMUKeyboardToKey: id = midi ^ 7, domain 0..48.
	id, ok := devices.KeyFromMIDI(0)
	require.True(t, ok)
	assert.Equal(t, uint8(7), id)

	id, ok = devices.KeyFromMIDI(7)
	require.True(t, ok)
	assert.Equal(t, uint8(0), id)

	id, ok = devices.KeyFromMIDI(48)
	require.True(t, ok)
	assert.Equal(t, uint8(48^7), id)

	_, ok = devices.KeyFromMIDI(49)
	assert.False(t, ok)
	_, ok = devices.KeyFromMIDI(255)
	assert.False(t, ok)
}
