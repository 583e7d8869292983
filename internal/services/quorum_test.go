package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/file_header"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/home_block"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

var testHomeLBAs = [types.MaxAlts]uint32{1, 11, 21}

func writeHomeBlocks(t *testing.T, dev *disk.MemoryDevice, hb *types.HomeBlockT) []byte {
	t.Helper()
	image := home_block.EncodeHomeBlock(hb)
	require.NoError(t, WriteRedundant(dev, image, testHomeLBAs))
	return image
}

func TestQuorumReadAllCopiesAgree(t *testing.T) {
	dev := disk.NewMemoryDevice(32)
	writeHomeBlocks(t, dev, home_block.NewDefaultHomeBlock(32, 1000))

	result, err := ReadHomeBlock(dev, testHomeLBAs)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Copy)
	assert.Equal(t, uint8(0b111), result.Valid)
	assert.Equal(t, uint8(0b111), result.Matching)
	assert.Equal(t, 0, result.Rejected())
	assert.Equal(t, uint32(32), result.Record.MaxLBA())
}

func TestQuorumReadBadChecksumOnFirstCopy(t *testing.T) {
	dev := disk.NewMemoryDevice(32)
	image := writeHomeBlocks(t, dev, home_block.NewDefaultHomeBlock(32, 1000))

	corrupt := append([]byte(nil), image...)
	corrupt[84]++ // max_lba
	require.NoError(t, dev.WriteSector(testHomeLBAs[0], corrupt))

	result, err := ReadHomeBlock(dev, testHomeLBAs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Copy)
	assert.Equal(t, uint8(0b110), result.Valid)
	assert.Equal(t, uint8(0b001), result.Matching, "copy 0 decodes differently from the others")
	assert.True(t, errors.Is(result.CopyErrors[0], types.ErrBadChecksum))
	assert.Equal(t, uint32(32), result.Record.MaxLBA())
}

func TestQuorumReadUnreadableCopies(t *testing.T) {
	dev := disk.NewMemoryDevice(32)
	writeHomeBlocks(t, dev, home_block.NewDefaultHomeBlock(32, 1000))
	dev.SetUnreadable(testHomeLBAs[0], true)
	dev.SetUnreadable(testHomeLBAs[1], true)

	result, err := ReadHomeBlock(dev, testHomeLBAs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Copy)
	assert.Equal(t, uint8(0b100), result.Valid)
	assert.Equal(t, uint8(0), result.Matching, "copy 0 was not decoded")
	assert.Equal(t, 2, result.Rejected())

	dev.SetUnreadable(testHomeLBAs[2], true)
	_, err = ReadHomeBlock(dev, testHomeLBAs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.True(t, errors.Is(err, types.ErrNoReadableCopy))
}

func TestQuorumReadNoValidCopy(t *testing.T) {
	dev := disk.NewMemoryDevice(32)

	result, err := ReadHomeBlock(dev, testHomeLBAs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCorruption))
	assert.True(t, errors.Is(err, types.ErrNoValidCopy))
	assert.Equal(t, uint8(0), result.Valid)
	assert.Equal(t, uint8(0b111), result.Matching, "blank copies decode identically")
	for i := range result.CopyErrors {
		assert.True(t, errors.Is(result.CopyErrors[i], types.ErrBadRecordID))
	}
}

func TestQuorumReadFileHeaderGeneration(t *testing.T) {
	dev := disk.NewMemoryDevice(32)
	lbas := [types.MaxAlts]uint32{2, 12, 22}
	header := &types.FileHeaderT{ID: types.FileHeaderID, Size: 10, Clusters: 1, Generation: 4, Type: types.FileTypeFile}
	require.NoError(t, WriteRedundant(dev, file_header.EncodeFileHeader(header), lbas))

	tests := []struct {
		name    string
		id      uint32
		gen     uint8
		wantErr error
	}{
		{name: "matching generation", id: types.FileHeaderID, gen: 4},
		{name: "generation not checked", id: types.FileHeaderID, gen: 0},
		{name: "stale generation", id: types.FileHeaderID, gen: 3, wantErr: types.ErrNoValidCopy},
		{name: "index header id expected", id: types.IndexHeaderID, wantErr: types.ErrNoValidCopy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ReadFileHeader(dev, lbas, tt.id, tt.gen)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *header, *result.Record.Header())
		})
	}
}

func TestWriteRedundantAttemptsEveryCopy(t *testing.T) {
	dev := disk.NewMemoryDevice(16)
	lbas := [types.MaxAlts]uint32{1, 99, 3}
	payload := []byte("payload")

	err := WriteRedundant(dev, payload, lbas)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.Contains(t, err.Error(), "copy 1")

	for _, lba := range []uint32{1, 3} {
		sector, err := dev.ReadSector(lba)
		require.NoError(t, err)
		assert.Equal(t, payload, sector[:len(payload)])
	}
}
