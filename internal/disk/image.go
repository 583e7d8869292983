package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// ImageDevice provides sector access to an AGC fsys volume stored in a plain file, either
// a bare volume or a whole disk whose MBR holds an AGC fsys partition
type ImageDevice struct {
	file       *os.File
	writable   bool
	size       int64
	baseSector uint32
	sectors    uint32
	stats      *ImageStatistics
}

// ImageStatistics tracks image access statistics
type ImageStatistics struct {
	DetectionMethod string
	PartitionIndex  int
	SectorsRead     int64
	SectorsWritten  int64
	ReadErrors      int64
	mu              sync.RWMutex
}

// OpenImage opens an image read-only and locates the volume within it
func OpenImage(path string, config *Config) (*ImageDevice, error) {
	return openImage(path, config, os.O_RDONLY)
}

// OpenImageWritable opens an image for reading and writing
func OpenImageWritable(path string, config *Config) (*ImageDevice, error) {
	return openImage(path, config, os.O_RDWR)
}

func openImage(path string, config *Config, flag int) (*ImageDevice, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	device := &ImageDevice{
		file:     file,
		writable: flag&os.O_RDWR != 0,
		size:     stat.Size(),
		stats:    &ImageStatistics{DetectionMethod: "none", PartitionIndex: -1},
	}
	if config == nil {
		config = &Config{PartitionDetect: true}
	}

	totalSectors := uint64(device.size) / types.BytesPerSector
	if totalSectors > uint64(^uint32(0)) {
		totalSectors = uint64(^uint32(0))
	}
	device.sectors = uint32(totalSectors)

	switch {
	case config.BaseSector != 0:
		if uint64(config.BaseSector) >= totalSectors {
			file.Close()
			return nil, fmt.Errorf("configured base sector 0x%X is beyond the image (%d sectors)", config.BaseSector, totalSectors)
		}
		device.baseSector = config.BaseSector
		device.sectors = uint32(totalSectors) - config.BaseSector
		device.stats.DetectionMethod = "configured"
	case config.PartitionDetect:
		if err := device.detectPartition(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return device, nil
}

// CreateImage creates (or truncates) a bare volume image of the given number of sectors
func CreateImage(path string, sectors uint32) (*ImageDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	size := int64(sectors) * types.BytesPerSector
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size image: %w", err)
	}
	return &ImageDevice{
		file:     file,
		writable: true,
		size:     size,
		sectors:  sectors,
		stats:    &ImageStatistics{DetectionMethod: "created", PartitionIndex: -1},
	}, nil
}

// detectPartition reads the boot sector and adopts the first AGC fsys partition it lists
func (d *ImageDevice) detectPartition() error {
	boot := make([]byte, types.BytesPerSector)
	n, err := d.file.ReadAt(boot, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read boot sector: %w", err)
	}
	if n < types.BytesPerSector {
		d.stats.DetectionMethod = "bare"
		return nil
	}

	entry, ok := ParsePartitionTable(boot)
	if !ok {
		d.stats.DetectionMethod = "bare"
		return nil
	}
	if uint64(entry.StartSector)+uint64(entry.Sectors) > uint64(d.sectors) {
		return fmt.Errorf("partition %d (0x%X+0x%X) extends beyond the image (%d sectors)",
			entry.Index, entry.StartSector, entry.Sectors, d.sectors)
	}
	d.baseSector = entry.StartSector
	d.sectors = entry.Sectors
	d.stats.DetectionMethod = "mbr"
	d.stats.PartitionIndex = entry.Index
	return nil
}

// PartitionEntry is an MBR partition table entry holding an AGC fsys volume
type PartitionEntry struct {
	Index       int
	StartSector uint32
	Sectors     uint32
}

// ParsePartitionTable scans the four MBR entries of a boot sector for a bootable
// AGC fsys partition
func ParsePartitionTable(boot []byte) (PartitionEntry, bool) {
	if len(boot) < types.PartitionTableOffset+types.PartitionEntries*types.PartitionEntrySize {
		return PartitionEntry{}, false
	}
	for i := 0; i < types.PartitionEntries; i++ {
		entry := boot[types.PartitionTableOffset+i*types.PartitionEntrySize:]
		if entry[0] != types.PartitionBootable || entry[4] != types.PartitionTypeAGC {
			continue
		}
		return PartitionEntry{
			Index:       i,
			StartSector: binary.LittleEndian.Uint32(entry[8:12]),
			Sectors:     binary.LittleEndian.Uint32(entry[12:16]),
		}, true
	}
	return PartitionEntry{}, false
}

// ReadSector reads one sector of the volume
func (d *ImageDevice) ReadSector(lba uint32) ([]byte, error) {
	if lba >= d.sectors {
		return nil, fmt.Errorf("failed to read sector 0x%X: %w", lba, types.ErrOutOfRange)
	}
	buf := make([]byte, types.BytesPerSector)
	offset := (int64(d.baseSector) + int64(lba)) * types.BytesPerSector
	n, err := d.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		d.countError()
		return nil, fmt.Errorf("failed to read sector 0x%X: %v: %w", lba, err, types.ErrIO)
	}
	if n < types.BytesPerSector {
		d.countError()
		return nil, fmt.Errorf("failed to read sector 0x%X: got %d bytes: %w", lba, n, types.ErrShortRead)
	}

	d.stats.mu.Lock()
	d.stats.SectorsRead++
	d.stats.mu.Unlock()
	return buf, nil
}

// WriteSector writes one sector of the volume
func (d *ImageDevice) WriteSector(lba uint32, data []byte) error {
	if !d.writable {
		return fmt.Errorf("failed to write sector 0x%X: image opened read-only: %w", lba, types.ErrIO)
	}
	if lba >= d.sectors {
		return fmt.Errorf("failed to write sector 0x%X: %w", lba, types.ErrOutOfRange)
	}
	if len(data) > types.BytesPerSector {
		return fmt.Errorf("failed to write sector 0x%X: %d bytes exceed a sector: %w", lba, len(data), types.ErrLogic)
	}
	buf := make([]byte, types.BytesPerSector)
	copy(buf, data)
	offset := (int64(d.baseSector) + int64(lba)) * types.BytesPerSector
	if _, err := d.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("failed to write sector 0x%X: %v: %w", lba, err, types.ErrIO)
	}

	d.stats.mu.Lock()
	d.stats.SectorsWritten++
	d.stats.mu.Unlock()
	return nil
}

func (d *ImageDevice) countError() {
	d.stats.mu.Lock()
	d.stats.ReadErrors++
	d.stats.mu.Unlock()
}

// Sectors returns the number of sectors in the volume
func (d *ImageDevice) Sectors() uint32 {
	return d.sectors
}

// BaseSector returns the image sector where the volume starts
func (d *ImageDevice) BaseSector() uint32 {
	return d.baseSector
}

// Size returns the size of the whole image in bytes
func (d *ImageDevice) Size() int64 {
	return d.size
}

// Sync flushes written sectors to stable storage
func (d *ImageDevice) Sync() error {
	return d.file.Sync()
}

// Close closes the image file
func (d *ImageDevice) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// GetStats returns a snapshot of the access statistics
func (d *ImageDevice) GetStats() ImageStatistics {
	d.stats.mu.RLock()
	defer d.stats.mu.RUnlock()
	return ImageStatistics{
		DetectionMethod: d.stats.DetectionMethod,
		PartitionIndex:  d.stats.PartitionIndex,
		SectorsRead:     d.stats.SectorsRead,
		SectorsWritten:  d.stats.SectorsWritten,
		ReadErrors:      d.stats.ReadErrors,
	}
}
