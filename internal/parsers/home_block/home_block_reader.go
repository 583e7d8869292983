package home_block

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// homeBlockReader implements the HomeBlockReader interface
type homeBlockReader struct {
	homeBlock *types.HomeBlockT
	data      []byte
	endian    binary.ByteOrder
}

// NewHomeBlockReader decodes a home block from the start of a sector. It does not validate
// the record; quorum selection calls Validate on each copy.
func NewHomeBlockReader(data []byte, endian binary.ByteOrder) (interfaces.HomeBlockReader, error) {
	if len(data) < types.HomeBlockSize {
		return nil, fmt.Errorf("data too small for home block: %d bytes", len(data))
	}

	return &homeBlockReader{
		homeBlock: parseHomeBlock(data, endian),
		data:      data[:types.HomeBlockSize],
		endian:    endian,
	}, nil
}

// parseHomeBlock parses raw bytes into a HomeBlockT structure
func parseHomeBlock(data []byte, endian binary.ByteOrder) *types.HomeBlockT {
	hb := &types.HomeBlockT{}

	hb.ID = endian.Uint32(data[0:4])

	// Structure versions
	hb.HbMinor = endian.Uint16(data[4:6])
	hb.HbMajor = endian.Uint16(data[6:8])
	hb.HbSize = endian.Uint16(data[8:10])
	hb.FhMinor = endian.Uint16(data[10:12])
	hb.FhMajor = endian.Uint16(data[12:14])
	hb.FhSize = endian.Uint16(data[14:16])
	hb.EfhMinor = endian.Uint16(data[16:18])
	hb.EfhMajor = endian.Uint16(data[18:20])
	hb.EfhSize = endian.Uint16(data[20:22])
	hb.EfhPtrs = endian.Uint16(data[22:24])
	hb.RpMinor = endian.Uint16(data[24:26])
	hb.RpMajor = data[26]
	hb.RpSize = data[27]
	hb.Cluster = data[28]
	hb.MaxAlts = data[29]
	hb.DefExtend = endian.Uint16(data[30:32])

	// Timestamps
	hb.Ctime = endian.Uint32(data[32:36])
	hb.Mtime = endian.Uint32(data[36:40])
	hb.Atime = endian.Uint32(data[40:44])
	hb.Btime = endian.Uint32(data[44:48])

	hb.Chksum = endian.Uint32(data[48:52])
	hb.Features = endian.Uint32(data[52:56])
	hb.Options = endian.Uint32(data[56:60])

	readLBAs(hb.Index[:], data[60:72], endian)
	readLBAs(hb.Boot[:], data[72:84], endian)
	hb.MaxLBA = endian.Uint32(data[84:88])
	hb.UpdFlag = endian.Uint32(data[88:92])
	readLBAs(hb.Boot1[:], data[92:104], endian)
	readLBAs(hb.Boot2[:], data[104:116], endian)
	readLBAs(hb.Boot3[:], data[116:128], endian)
	readLBAs(hb.Journal[:], data[128:140], endian)

	return hb
}

func readLBAs(dst []uint32, data []byte, endian binary.ByteOrder) {
	for i := range dst {
		dst[i] = endian.Uint32(data[i*4 : i*4+4])
	}
}

// HomeBlock returns the decoded record
func (hbr *homeBlockReader) HomeBlock() *types.HomeBlockT {
	return hbr.homeBlock
}

// ComputedChecksum returns the wrapping sum of the record's 32-bit words
func (hbr *homeBlockReader) ComputedChecksum() uint32 {
	return WordSum(hbr.data, hbr.endian)
}

// IndexLBAs returns the header locations of index.sys
func (hbr *homeBlockReader) IndexLBAs() [types.MaxAlts]uint32 {
	return hbr.homeBlock.Index
}

// MaxLBA returns the highest sector of the volume
func (hbr *homeBlockReader) MaxLBA() uint32 {
	return hbr.homeBlock.MaxLBA
}

// Validate checks the checksum and the fixed constants of the format
func (hbr *homeBlockReader) Validate() error {
	hb := hbr.homeBlock

	if hb.ID != types.HomeBlockID {
		return fmt.Errorf("home block id 0x%08X, want 0x%08X: %w", hb.ID, types.HomeBlockID, types.ErrBadRecordID)
	}
	if sum := hbr.ComputedChecksum(); sum != 0 {
		return fmt.Errorf("home block words sum to 0x%08X: %w", sum, types.ErrBadChecksum)
	}
	if hb.RpMajor != types.RetrievalPtrMajor || hb.RpMinor != types.RetrievalPtrMinor {
		return fmt.Errorf("%w: retrieval pointer version %d.%d", types.ErrCorruption, hb.RpMajor, hb.RpMinor)
	}
	if hb.FhSize != types.FileHeaderSize {
		return fmt.Errorf("%w: file header size %d", types.ErrCorruption, hb.FhSize)
	}
	if hb.MaxAlts != types.MaxAlts {
		return fmt.Errorf("%w: maxalts %d", types.ErrCorruption, hb.MaxAlts)
	}
	if hb.Features&hb.Options&types.FeatureCheckMask != types.FeatureCMTime {
		return fmt.Errorf("%w: unsupported features 0x%08X options 0x%08X", types.ErrCorruption, hb.Features, hb.Options)
	}
	return nil
}

// WordSum adds the 32-bit words of data, ignoring a trailing partial word
func WordSum(data []byte, endian binary.ByteOrder) uint32 {
	var sum uint32
	for i := 0; i+4 <= len(data); i += 4 {
		sum += endian.Uint32(data[i : i+4])
	}
	return sum
}

// EncodeHomeBlock serializes hb into a full sector, replacing Chksum with the value that
// makes the record's words sum to zero. hb is updated with the stored checksum.
func EncodeHomeBlock(hb *types.HomeBlockT) []byte {
	data := make([]byte, types.BytesPerSector)
	le := binary.LittleEndian

	le.PutUint32(data[0:4], hb.ID)
	le.PutUint16(data[4:6], hb.HbMinor)
	le.PutUint16(data[6:8], hb.HbMajor)
	le.PutUint16(data[8:10], hb.HbSize)
	le.PutUint16(data[10:12], hb.FhMinor)
	le.PutUint16(data[12:14], hb.FhMajor)
	le.PutUint16(data[14:16], hb.FhSize)
	le.PutUint16(data[16:18], hb.EfhMinor)
	le.PutUint16(data[18:20], hb.EfhMajor)
	le.PutUint16(data[20:22], hb.EfhSize)
	le.PutUint16(data[22:24], hb.EfhPtrs)
	le.PutUint16(data[24:26], hb.RpMinor)
	data[26] = hb.RpMajor
	data[27] = hb.RpSize
	data[28] = hb.Cluster
	data[29] = hb.MaxAlts
	le.PutUint16(data[30:32], hb.DefExtend)
	le.PutUint32(data[32:36], hb.Ctime)
	le.PutUint32(data[36:40], hb.Mtime)
	le.PutUint32(data[40:44], hb.Atime)
	le.PutUint32(data[44:48], hb.Btime)
	le.PutUint32(data[52:56], hb.Features)
	le.PutUint32(data[56:60], hb.Options)
	writeLBAs(data[60:72], hb.Index[:])
	writeLBAs(data[72:84], hb.Boot[:])
	le.PutUint32(data[84:88], hb.MaxLBA)
	le.PutUint32(data[88:92], hb.UpdFlag)
	writeLBAs(data[92:104], hb.Boot1[:])
	writeLBAs(data[104:116], hb.Boot2[:])
	writeLBAs(data[116:128], hb.Boot3[:])
	writeLBAs(data[128:140], hb.Journal[:])

	hb.Chksum = -WordSum(data[:types.HomeBlockSize], le)
	le.PutUint32(data[48:52], hb.Chksum)
	return data
}

func writeLBAs(data []byte, lbas []uint32) {
	for i, lba := range lbas {
		binary.LittleEndian.PutUint32(data[i*4:i*4+4], lba)
	}
}

// NewDefaultHomeBlock returns a home block carrying the constants this implementation writes
func NewDefaultHomeBlock(maxLBA uint32, now uint32) *types.HomeBlockT {
	return &types.HomeBlockT{
		ID:        types.HomeBlockID,
		HbMinor:   types.HomeBlockMinor,
		HbMajor:   types.HomeBlockMajor,
		HbSize:    types.HomeBlockSize,
		FhMinor:   types.FileHeaderMinor,
		FhMajor:   types.FileHeaderMajor,
		FhSize:    types.FileHeaderSize,
		RpMinor:   types.RetrievalPtrMinor,
		RpMajor:   types.RetrievalPtrMajor,
		RpSize:    types.RetrievalPtrSize,
		Cluster:   types.DefaultClusterSize,
		MaxAlts:   types.MaxAlts,
		DefExtend: types.DefaultExtendSectors,
		Ctime:     now,
		Mtime:     now,
		Features:  types.DefaultFeatures,
		Options:   types.DefaultOptions,
		MaxLBA:    maxLBA,
	}
}
