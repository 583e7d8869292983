package disk

import (
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// MemoryDevice is a SectorStore held entirely in memory. Sectors can be marked unreadable
// to exercise redundancy handling.
type MemoryDevice struct {
	mu         sync.RWMutex
	data       []byte
	sectors    uint32
	unreadable map[uint32]bool
}

// NewMemoryDevice returns a zero-filled device of the given number of sectors
func NewMemoryDevice(sectors uint32) *MemoryDevice {
	return &MemoryDevice{
		data:       make([]byte, int(sectors)*types.BytesPerSector),
		sectors:    sectors,
		unreadable: make(map[uint32]bool),
	}
}

// NewMemoryDeviceFromBytes wraps an existing volume image. Trailing bytes that do not fill
// a sector are ignored.
func NewMemoryDeviceFromBytes(data []byte) *MemoryDevice {
	sectors := uint32(len(data) / types.BytesPerSector)
	return &MemoryDevice{
		data:       data[:int(sectors)*types.BytesPerSector],
		sectors:    sectors,
		unreadable: make(map[uint32]bool),
	}
}

// ReadSector returns a copy of the sector at lba
func (m *MemoryDevice) ReadSector(lba uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if lba >= m.sectors {
		return nil, fmt.Errorf("failed to read sector 0x%X: %w", lba, types.ErrOutOfRange)
	}
	if m.unreadable[lba] {
		return nil, fmt.Errorf("failed to read sector 0x%X: %w", lba, types.ErrIO)
	}
	buf := make([]byte, types.BytesPerSector)
	copy(buf, m.data[int(lba)*types.BytesPerSector:])
	return buf, nil
}

// WriteSector stores data at lba, zero padding a short buffer
func (m *MemoryDevice) WriteSector(lba uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lba >= m.sectors {
		return fmt.Errorf("failed to write sector 0x%X: %w", lba, types.ErrOutOfRange)
	}
	if len(data) > types.BytesPerSector {
		return fmt.Errorf("failed to write sector 0x%X: %d bytes exceed a sector: %w", lba, len(data), types.ErrLogic)
	}
	sector := m.data[int(lba)*types.BytesPerSector : int(lba+1)*types.BytesPerSector]
	n := copy(sector, data)
	clear(sector[n:])
	return nil
}

// Sectors returns the number of sectors in the device
func (m *MemoryDevice) Sectors() uint32 {
	return m.sectors
}

// SetUnreadable makes reads of lba fail until cleared
func (m *MemoryDevice) SetUnreadable(lba uint32, unreadable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if unreadable {
		m.unreadable[lba] = true
	} else {
		delete(m.unreadable, lba)
	}
}

// Bytes returns the backing image
func (m *MemoryDevice) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}
