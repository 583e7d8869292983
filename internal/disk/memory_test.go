package disk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

func TestMemoryDevice(t *testing.T) {
	device := NewMemoryDevice(8)
	assert.Equal(t, uint32(8), device.Sectors())

	full := make([]byte, types.BytesPerSector)
	for i := range full {
		full[i] = 0xEE
	}
	require.NoError(t, device.WriteSector(3, full))
	require.NoError(t, device.WriteSector(3, []byte{1, 2}))

	sector, err := device.ReadSector(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0}, sector[:4], "short write zero pads the sector")

	// Returned sectors are copies
	sector[0] = 0x55
	again, err := device.ReadSector(3)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0])

	device.SetUnreadable(3, true)
	_, err = device.ReadSector(3)
	assert.True(t, errors.Is(err, types.ErrIO))
	device.SetUnreadable(3, false)
	_, err = device.ReadSector(3)
	assert.NoError(t, err)

	_, err = device.ReadSector(8)
	assert.True(t, errors.Is(err, types.ErrOutOfRange))
	assert.Error(t, device.WriteSector(8, nil))
}

func TestNewMemoryDeviceFromBytes(t *testing.T) {
	data := make([]byte, 3*types.BytesPerSector+100)
	data[types.BytesPerSector] = 0x42

	device := NewMemoryDeviceFromBytes(data)
	assert.Equal(t, uint32(3), device.Sectors())

	sector, err := device.ReadSector(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), sector[0])
	assert.Len(t, device.Bytes(), 3*types.BytesPerSector)
}
