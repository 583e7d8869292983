package imagebuilder

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/free_map"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/home_block"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

func TestNewReservesHomeBlocksAndSystemFiles(t *testing.T) {
	dev := disk.NewMemoryDevice(2048)
	b, err := New(dev, Options{})
	require.NoError(t, err)

	assert.Equal(t, [types.MaxAlts]uint32{1, 342, 683}, b.HomeBlockLBAs())
	for fid := types.IndexFileID; fid <= types.JournalFileID; fid++ {
		lbas, err := b.HeaderLBAs(fid)
		require.NoError(t, err)
		for i, lba := range lbas {
			assert.Equal(t, b.HomeBlockLBAs()[i]+1+fid, lba, "fid %d copy %d", fid, i)
		}
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name    string
		sectors uint32
		opts    Options
		wantErr error
	}{
		{name: "too many content copies", sectors: 512, opts: Options{ContentCopies: 4}, wantErr: types.ErrLogic},
		{name: "index too small", sectors: 512, opts: Options{IndexSlots: 3}, wantErr: types.ErrLogic},
		{name: "device too small", sectors: 8, wantErr: types.ErrCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(disk.NewMemoryDevice(tt.sectors), tt.opts)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestAddValidatesNames(t *testing.T) {
	b, err := New(disk.NewMemoryDevice(512), Options{})
	require.NoError(t, err)

	_, err = b.AddFile(types.RootDirFileID, "a", nil)
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "a", "x/y", string(make([]byte, 256))} {
		_, err := b.AddFile(types.RootDirFileID, name, nil)
		assert.True(t, errors.Is(err, types.ErrLogic), "name %q", name)
	}

	_, err = b.AddFile(999, "orphan", nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	fid, err := b.AddFile(types.RootDirFileID, "file", nil)
	require.NoError(t, err)
	_, err = b.AddFile(fid, "child", nil)
	assert.True(t, errors.Is(err, types.ErrNotDirectory))
}

func TestFinishWritesReadableVolume(t *testing.T) {
	dev := disk.NewMemoryDevice(1024)
	b, err := New(dev, Options{ContentCopies: 2, Timestamp: 42})
	require.NoError(t, err)

	dir, err := b.AddDirectory(types.RootDirFileID, "dir")
	require.NoError(t, err)
	data := make([]byte, 1300)
	for i := range data {
		data[i] = byte(i)
	}
	fid, err := b.AddFile(dir, "blob", data)
	require.NoError(t, err)
	require.NoError(t, b.Finish())

	assert.True(t, errors.Is(b.Finish(), types.ErrLogic))
	_, err = b.AddFile(types.RootDirFileID, "late", nil)
	assert.True(t, errors.Is(err, types.ErrLogic))

	home, err := services.ReadHomeBlock(dev, b.HomeBlockLBAs())
	require.NoError(t, err)
	assert.Equal(t, uint8(0b111), home.Valid)
	assert.Equal(t, uint32(1024), home.Record.MaxLBA())
	indexLBAs, err := b.HeaderLBAs(types.IndexFileID)
	require.NoError(t, err)
	assert.Equal(t, [types.MaxAlts]uint32(indexLBAs), home.Record.IndexLBAs())

	header, err := b.Header(fid)
	require.NoError(t, err)
	assert.Equal(t, uint32(1300), header.Size)
	assert.Equal(t, uint32(3), header.Clusters)
	assert.Equal(t, uint32(42), header.Mtime)
	assert.Equal(t, uint64(3), types.TotalSectors(header.Pointers[0][:]))
	assert.Equal(t, uint64(3), types.TotalSectors(header.Pointers[1][:]))
	assert.Empty(t, header.Extents(2))

	for alt := 0; alt < 2; alt++ {
		var got []byte
		for _, e := range header.Extents(alt) {
			for s := uint32(0); s < e.Length; s++ {
				sector, err := dev.ReadSector(e.Start + s)
				require.NoError(t, err)
				got = append(got, sector...)
			}
		}
		assert.Equal(t, data, got[:len(data)], "copy %d", alt)
	}

	dirHeader, err := b.Header(dir)
	require.NoError(t, err)
	sector, err := dev.ReadSector(dirHeader.Extents(0)[0].Start)
	require.NoError(t, err)
	entries, err := directory.Decode(sector)
	require.NoError(t, err)
	assert.Equal(t, []types.DirEntryT{
		{FileID: dir, Generation: DefaultGeneration, Name: "."},
		{FileID: types.RootDirFileID, Generation: 0, Name: ".."},
		{FileID: fid, Generation: DefaultGeneration, Name: "blob"},
	}, entries)

	freeHeader, err := b.Header(types.FreeMapFileID)
	require.NoError(t, err)
	var freeMap []byte
	for _, e := range freeHeader.Extents(0) {
		for s := uint32(0); s < e.Length; s++ {
			sector, err := dev.ReadSector(e.Start + s)
			require.NoError(t, err)
			freeMap = append(freeMap, sector...)
		}
	}
	free := free_map.DecodeFreeMap(freeMap, DefaultFreeMapEntries, binary.LittleEndian)
	assert.NoError(t, free_map.CheckOrdering(free))
	assert.NotEmpty(t, free)
}

func TestHomeBlockChecksumOnDisk(t *testing.T) {
	dev := disk.NewMemoryDevice(256)
	b, err := New(dev, Options{})
	require.NoError(t, err)
	require.NoError(t, b.Finish())

	for _, lba := range b.HomeBlockLBAs() {
		sector, err := dev.ReadSector(lba)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), home_block.WordSum(sector[:types.HomeBlockSize], binary.LittleEndian))
	}
}

func TestAddHostTree(t *testing.T) {
	host := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(host, "roms", "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host, "boot.cfg"), []byte("speed=1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(host, "roms", "game.bin"), make([]byte, 700), 0o644))

	dev := disk.NewMemoryDevice(1024)
	b, err := New(dev, Options{})
	require.NoError(t, err)
	added, err := b.AddHostTree(types.RootDirFileID, host)
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	require.NoError(t, b.Finish())

	vol, err := services.OpenVolume(dev, services.VolumeOptions{})
	require.NoError(t, err)
	node, err := vol.Lookup("/roms/game.bin")
	require.NoError(t, err)
	assert.Equal(t, uint32(700), node.Header.Size)
	_, err = vol.Lookup("/roms/empty")
	require.NoError(t, err)
	node, err = vol.Lookup("/boot.cfg")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), node.Header.Size)

	report, err := vol.VerifyFreeMap()
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")
	err := CreateFile(path, 1024, Options{}, func(b *Builder) error {
		_, err := b.AddFile(types.RootDirFileID, "hello.txt", []byte("hello"))
		return err
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024*types.BytesPerSector), info.Size())

	device, err := disk.OpenImage(path, nil)
	require.NoError(t, err)
	defer device.Close()
	vol, err := services.OpenVolume(device, services.VolumeOptions{})
	require.NoError(t, err)
	node, err := vol.Lookup("/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), node.Header.Size)
}

func TestCreateFilePopulateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")
	boom := errors.New("boom")
	err := CreateFile(path, 1024, Options{}, func(b *Builder) error { return boom })
	assert.ErrorIs(t, err, boom)
}
