package services

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/file_header"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/home_block"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// HomeBlockCodec accepts home block copies whose checksum and fixed constants are intact
type HomeBlockCodec struct{}

func (HomeBlockCodec) Decode(sector []byte) (interfaces.HomeBlockReader, error) {
	return home_block.NewHomeBlockReader(sector, binary.LittleEndian)
}

func (HomeBlockCodec) Validate(record interfaces.HomeBlockReader) error {
	return record.Validate()
}

func (HomeBlockCodec) Equal(a, b interfaces.HomeBlockReader) bool {
	return *a.HomeBlock() == *b.HomeBlock()
}

// FileHeaderCodec accepts file header copies carrying the expected id tag and, when
// ExpectedGen is non-zero, the expected generation
type FileHeaderCodec struct {
	ExpectedID  uint32
	ExpectedGen uint8
}

func (FileHeaderCodec) Decode(sector []byte) (interfaces.FileHeaderReader, error) {
	return file_header.NewFileHeaderReader(sector, binary.LittleEndian)
}

func (c FileHeaderCodec) Validate(record interfaces.FileHeaderReader) error {
	return record.Validate(c.ExpectedID, c.ExpectedGen)
}

func (FileHeaderCodec) Equal(a, b interfaces.FileHeaderReader) bool {
	return *a.Header() == *b.Header()
}

// ReadHomeBlock selects a valid home block among its copies
func ReadHomeBlock(store interfaces.SectorStore, lbas [types.MaxAlts]uint32) (*QuorumResult[interfaces.HomeBlockReader], error) {
	return QuorumRead[interfaces.HomeBlockReader](store, lbas, HomeBlockCodec{})
}

// ReadFileHeader selects a valid file header among its copies
func ReadFileHeader(store interfaces.SectorStore, lbas [types.MaxAlts]uint32, expectedID uint32, expectedGen uint8) (*QuorumResult[interfaces.FileHeaderReader], error) {
	return QuorumRead[interfaces.FileHeaderReader](store, lbas, FileHeaderCodec{ExpectedID: expectedID, ExpectedGen: expectedGen})
}
