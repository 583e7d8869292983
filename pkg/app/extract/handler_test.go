package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/imagebuilder"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/file_header"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

const testTimestamp = 1600000000

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)*7 + seed
	}
	return data
}

// buildTestImage writes /roms/game.bin, /roms/extra/level.dat and /note.txt
func buildTestImage(t *testing.T) string {
	t.Helper()
	image := filepath.Join(t.TempDir(), "vol.img")
	err := imagebuilder.CreateFile(image, 1024, imagebuilder.Options{Timestamp: testTimestamp}, func(b *imagebuilder.Builder) error {
		roms, err := b.AddDirectory(types.RootDirFileID, "roms")
		if err != nil {
			return err
		}
		if _, err := b.AddFile(roms, "game.bin", pattern(1300, 1)); err != nil {
			return err
		}
		extra, err := b.AddDirectory(roms, "extra")
		if err != nil {
			return err
		}
		if _, err := b.AddFile(extra, "level.dat", pattern(70, 9)); err != nil {
			return err
		}
		_, err = b.AddFile(types.RootDirFileID, "note.txt", []byte("insert coin\n"))
		return err
	})
	require.NoError(t, err)
	return image
}

// growHeader rewrites every header copy of path so its size runs past its sectors
func growHeader(t *testing.T, image, path string) {
	t.Helper()
	device, err := disk.OpenImageWritable(image, nil)
	require.NoError(t, err)
	defer device.Close()

	vol, err := services.OpenVolume(device, services.VolumeOptions{})
	require.NoError(t, err)
	node, err := vol.Lookup(path)
	require.NoError(t, err)
	slot, err := vol.Index().Slot(node.FileID)
	require.NoError(t, err)

	header := *node.Header
	header.Size = (header.Clusters + 2) * types.BytesPerSector
	require.NoError(t, services.WriteRedundant(device, file_header.EncodeFileHeader(&header), slot))
	require.NoError(t, device.Sync())
}

func TestHandleSingleFile(t *testing.T) {
	image := buildTestImage(t)
	out := t.TempDir()

	resp, err := Handle(app.NewContext(), &Request{
		Target:      app.ImageTarget{Path: image},
		Source:      "/roms/game.bin",
		Destination: out,
	})
	require.NoError(t, err)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "/roms/game.bin", resp.Files[0].Source)
	assert.Equal(t, int64(1300), resp.TotalBytes)

	data, err := os.ReadFile(filepath.Join(out, "game.bin"))
	require.NoError(t, err)
	assert.Equal(t, pattern(1300, 1), data)

	info, err := os.Stat(filepath.Join(out, "game.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(testTimestamp), info.ModTime().Unix())

	// A destination that is not a directory names the output file
	renamed := filepath.Join(out, "renamed.txt")
	_, err = Handle(app.NewContext(), &Request{Target: app.ImageTarget{Path: image}, Source: "note.txt", Destination: renamed})
	require.NoError(t, err)
	data, err = os.ReadFile(renamed)
	require.NoError(t, err)
	assert.Equal(t, "insert coin\n", string(data))
}

func TestHandleRecursive(t *testing.T) {
	image := buildTestImage(t)
	out := filepath.Join(t.TempDir(), "dump")

	resp, err := Handle(app.NewContext(), &Request{
		Target:      app.ImageTarget{Path: image},
		Source:      "/",
		Destination: out,
		Recursive:   true,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Files, 3)
	assert.Equal(t, 3, resp.Directories)
	assert.Equal(t, int64(1300+70+12), resp.TotalBytes)

	data, err := os.ReadFile(filepath.Join(out, "roms", "extra", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, pattern(70, 9), data)
	assert.FileExists(t, filepath.Join(out, "note.txt"))

	var sources []string
	for _, f := range resp.Files {
		sources = append(sources, f.Source)
	}
	assert.Equal(t, []string{"/roms/game.bin", "/roms/extra/level.dat", "/note.txt"}, sources)
}

func TestHandleRefusals(t *testing.T) {
	image := buildTestImage(t)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "note.txt"), []byte("keep"), 0o644))

	tests := []struct {
		name string
		req  *Request
		code string
	}{
		{name: "no source", req: &Request{Target: app.ImageTarget{Path: image}, Destination: out}, code: app.ErrCodeInvalidInput},
		{name: "no destination", req: &Request{Target: app.ImageTarget{Path: image}, Source: "/note.txt"}, code: app.ErrCodeInvalidInput},
		{name: "missing source", req: &Request{Target: app.ImageTarget{Path: image}, Source: "/nope", Destination: out}, code: app.ErrCodeNotFound},
		{name: "directory without recursion", req: &Request{Target: app.ImageTarget{Path: image}, Source: "/roms", Destination: out}, code: app.ErrCodeInvalidInput},
		{name: "existing file", req: &Request{Target: app.ImageTarget{Path: image}, Source: "/note.txt", Destination: out}, code: app.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Handle(app.NewContext(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, app.ClassifyError(err))
		})
	}

	data, err := os.ReadFile(filepath.Join(out, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	_, err = Handle(app.NewContext(), &Request{Target: app.ImageTarget{Path: image}, Source: "/note.txt", Destination: out, Overwrite: true})
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(out, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "insert coin\n", string(data))
}

func TestHandleUnreadableFile(t *testing.T) {
	image := buildTestImage(t)
	growHeader(t, image, "/roms/game.bin")

	_, err := Handle(app.NewContext(), &Request{
		Target:      app.ImageTarget{Path: image},
		Source:      "/roms",
		Destination: filepath.Join(t.TempDir(), "strict"),
		Recursive:   true,
	})
	require.Error(t, err)
	assert.Equal(t, app.ErrCodeIO, app.ClassifyError(err))
	assert.ErrorIs(t, err, types.ErrExtentListEnded)

	out := filepath.Join(t.TempDir(), "lenient")
	resp, err := Handle(app.NewContext(), &Request{
		Target:          app.ImageTarget{Path: image},
		Source:          "/roms",
		Destination:     out,
		Recursive:       true,
		ContinueOnError: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "/roms/game.bin", resp.Failures[0].Source)
	assert.Equal(t, app.ErrCodeIO, resp.Failures[0].Code)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "/roms/extra/level.dat", resp.Files[0].Source)
	assert.NoFileExists(t, filepath.Join(out, "game.bin"))
}

func TestFormatOutput(t *testing.T) {
	resp := &Response{
		Files:       []ExtractedFile{{Source: "/a.bin", Destination: "out/a.bin", FileID: 4, Size: 10}},
		Directories: 1,
		TotalBytes:  10,
		Failures:    []Failure{{Source: "/b.bin", Code: app.ErrCodeIO, Error: "short read"}},
	}
	for _, format := range []string{"table", "json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, FormatOutput(&buf, resp, format))
			assert.Contains(t, buf.String(), "/a.bin")
			assert.Contains(t, buf.String(), "/b.bin")
		})
	}
	assert.Error(t, FormatOutput(&bytes.Buffer{}, resp, "csv"))
}
