package home_block

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

func newTestHomeBlock() *types.HomeBlockT {
	hb := NewDefaultHomeBlock(0x1FFF, 1700000000)
	hb.Index = [types.MaxAlts]uint32{0x10, 0x156, 0x2AB}
	hb.Journal = [types.MaxAlts]uint32{0x20, 0x160, 0x2B0}
	return hb
}

func TestEncodeHomeBlockRoundTrip(t *testing.T) {
	hb := newTestHomeBlock()
	data := EncodeHomeBlock(hb)
	require.Len(t, data, types.BytesPerSector)

	reader, err := NewHomeBlockReader(data, binary.LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, hb, reader.HomeBlock())
	assert.Equal(t, uint32(0), reader.ComputedChecksum())
	assert.Equal(t, hb.Index, reader.IndexLBAs())
	assert.Equal(t, uint32(0x1FFF), reader.MaxLBA())
	assert.NoError(t, reader.Validate())
}

func TestHomeBlockFieldOffsets(t *testing.T) {
	data := EncodeHomeBlock(newTestHomeBlock())
	le := binary.LittleEndian

	assert.Equal(t, types.HomeBlockID, le.Uint32(data[0:4]))
	assert.Equal(t, uint16(types.FileHeaderSize), le.Uint16(data[14:16]))
	assert.Equal(t, uint8(types.RetrievalPtrMajor), data[26])
	assert.Equal(t, uint8(types.MaxAlts), data[29])
	assert.Equal(t, uint32(0x10), le.Uint32(data[60:64]))
	assert.Equal(t, uint32(0x2AB), le.Uint32(data[68:72]))
	assert.Equal(t, uint32(0x1FFF), le.Uint32(data[84:88]))
	assert.Equal(t, uint32(0x2B0), le.Uint32(data[136:140]))

	// Bytes past the record are not part of the checksum
	for _, b := range data[types.HomeBlockSize:] {
		assert.Zero(t, b)
	}
}

func TestHomeBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(hb *types.HomeBlockT)
		corrupt func(data []byte)
		wantErr error
	}{
		{
			name: "valid",
		},
		{
			name:    "wrong id",
			mutate:  func(hb *types.HomeBlockT) { hb.ID = types.FileHeaderID },
			wantErr: types.ErrBadRecordID,
		},
		{
			name:    "flipped bit breaks checksum",
			corrupt: func(data []byte) { data[40] ^= 0x01 },
			wantErr: types.ErrBadChecksum,
		},
		{
			name:    "retrieval pointer version",
			mutate:  func(hb *types.HomeBlockT) { hb.RpMinor = 2 },
			wantErr: types.ErrCorruption,
		},
		{
			name:    "file header size",
			mutate:  func(hb *types.HomeBlockT) { hb.FhSize = 512 },
			wantErr: types.ErrCorruption,
		},
		{
			name:    "maxalts",
			mutate:  func(hb *types.HomeBlockT) { hb.MaxAlts = 2 },
			wantErr: types.ErrCorruption,
		},
		{
			name: "extension headers enabled",
			mutate: func(hb *types.HomeBlockT) {
				hb.Features |= types.FeatureExtensionHeader
				hb.Options |= types.FeatureExtensionHeader
			},
			wantErr: types.ErrCorruption,
		},
		{
			name:    "cmtime option off",
			mutate:  func(hb *types.HomeBlockT) { hb.Options = types.FeatureJournal },
			wantErr: types.ErrCorruption,
		},
		{
			name:   "abtime feature without option is accepted",
			mutate: func(hb *types.HomeBlockT) { hb.Features |= types.FeatureABTime },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hb := newTestHomeBlock()
			if tt.mutate != nil {
				tt.mutate(hb)
			}
			data := EncodeHomeBlock(hb)
			if tt.corrupt != nil {
				tt.corrupt(data)
			}

			reader, err := NewHomeBlockReader(data, binary.LittleEndian)
			require.NoError(t, err)

			err = reader.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, types.ErrCorruption))
		})
	}
}

func TestNewHomeBlockReaderShortData(t *testing.T) {
	_, err := NewHomeBlockReader(make([]byte, types.HomeBlockSize-1), binary.LittleEndian)
	assert.Error(t, err)
}

func TestWordSum(t *testing.T) {
	data := make([]byte, 10)
	binary.LittleEndian.PutUint32(data[0:4], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(data[4:8], 2)
	data[8] = 0xAA

	assert.Equal(t, uint32(1), WordSum(data, binary.LittleEndian))
}
