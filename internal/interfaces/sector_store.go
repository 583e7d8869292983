package interfaces

// SectorStore provides sector-granular access to a volume. LBAs are relative to the start
// of the volume; a store backed by a partitioned image applies the partition base itself.
type SectorStore interface {
	// ReadSector returns the BytesPerSector bytes at lba
	ReadSector(lba uint32) ([]byte, error)

	// WriteSector stores data, padded with zeros to a full sector, at lba
	WriteSector(lba uint32, data []byte) error

	// Sectors returns the number of sectors in the volume
	Sectors() uint32
}

// PartitionedStore is implemented by stores that know where the volume starts on the
// underlying device.
type PartitionedStore interface {
	SectorStore

	// BaseSector returns the device sector where LBA 0 of the volume lives
	BaseSector() uint32
}
