package devices_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unknown-technologies/emulator/core_engine/devices"
)

type mockPioDevice struct {
	calls []uint16
}

func (m *mockPioDevice) HandleIO(port uint16, direction uint8, size uint8, data []byte) error {
	m.calls = append(m.calls, port)
	return nil
}

func TestIOBusRoutesWithinRange(t *testing.T) {
	bus := devices.NewIOBus()
	dev := &mockPioDevice{}
	bus.RegisterDevice(0x10, 0x13, dev, "mock")

	require.NoError(t, bus.HandleIO(0x10, devices.IODirectionOut, 1, []byte{0}))
	require.NoError(t, bus.HandleIO(0x13, devices.IODirectionOut, 1, []byte{0}))
	assert.Equal(t, []uint16{0x10, 0x13}, dev.calls)
}

func TestIOBusUnregisteredPortErrors(t *testing.T) {
	bus := devices.NewIOBus()
	err := bus.HandleIO(0x99, devices.IODirectionIn, 1, []byte{0})
	assert.Error(t, err)
}

func TestIOBusLaterRegistrationOverwrites(t *testing.T) {
	bus := devices.NewIOBus()
	first := &mockPioDevice{}
	second := &mockPioDevice{}
	bus.RegisterDevice(0x50, 0x50, first, "first")
	bus.RegisterDevice(0x50, 0x50, second, "second")

	require.NoError(t, bus.HandleIO(0x50, devices.IODirectionOut, 1, []byte{0}))
	assert.Empty(t, first.calls)
	assert.Len(t, second.calls, 1)
}
