package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/imagebuilder"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/file_header"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// buildTestImage writes /docs/a.txt, /keep.txt and /lost.txt, in that order
func buildTestImage(t *testing.T) string {
	t.Helper()
	image := filepath.Join(t.TempDir(), "vol.img")
	err := imagebuilder.CreateFile(image, 1024, imagebuilder.Options{}, func(b *imagebuilder.Builder) error {
		docs, err := b.AddDirectory(types.RootDirFileID, "docs")
		if err != nil {
			return err
		}
		if _, err := b.AddFile(docs, "a.txt", make([]byte, 900)); err != nil {
			return err
		}
		if _, err := b.AddFile(types.RootDirFileID, "keep.txt", []byte("keep")); err != nil {
			return err
		}
		_, err = b.AddFile(types.RootDirFileID, "lost.txt", []byte("lost"))
		return err
	})
	require.NoError(t, err)
	return image
}

// dropLastRootEntry shrinks the root directory so its final entry is no longer read
func dropLastRootEntry(t *testing.T, image string) {
	t.Helper()
	device, err := disk.OpenImageWritable(image, nil)
	require.NoError(t, err)
	defer device.Close()

	vol, err := services.OpenVolume(device, services.VolumeOptions{})
	require.NoError(t, err)
	root, err := vol.Tree().Root()
	require.NoError(t, err)
	slot, err := vol.Index().Slot(types.RootDirFileID)
	require.NoError(t, err)

	header := *root.Header
	header.Size = uint32(directory.EntrySize(".") + directory.EntrySize("..") +
		directory.EntrySize("docs") + directory.EntrySize("keep.txt"))
	require.NoError(t, services.WriteRedundant(device, file_header.EncodeFileHeader(&header), slot))
}

func TestHandleHealthyVolume(t *testing.T) {
	image := buildTestImage(t)

	resp, err := Handle(app.NewContext(), &Request{Target: app.ImageTarget{Path: image}})
	require.NoError(t, err)
	assert.True(t, resp.Healthy)
	assert.Equal(t, "111", resp.HomeBlock.Valid)
	assert.Empty(t, resp.HomeBlock.Rejected)

	assert.True(t, resp.FreeMap.Consistent)
	assert.Equal(t, app.Extent{Start: 1, Length: 1023}, resp.FreeMap.Expected)
	assert.Equal(t, []app.Extent{{Start: 1, Length: 1023}}, resp.FreeMap.Merged)
	assert.Empty(t, resp.FreeMap.Conflicts)
	assert.Empty(t, resp.FreeMap.Unreadable)

	assert.Equal(t, 2, resp.Tree.Directories)
	assert.Equal(t, 3, resp.Tree.Files)
	assert.Empty(t, resp.Tree.Orphans)

	assert.Equal(t, uint32(services.StatfsBlockSize), resp.Capacity.BlockSize)
	assert.Equal(t, uint64(1024*types.BytesPerSector/services.StatfsBlockSize), resp.Capacity.Blocks)
	assert.Equal(t, uint64(imagebuilder.DefaultIndexSlots-8), resp.Capacity.FFree)
}

func TestHandleOrphan(t *testing.T) {
	image := buildTestImage(t)
	dropLastRootEntry(t, image)

	resp, err := Handle(app.NewContext(), &Request{Target: app.ImageTarget{Path: image}})
	require.NoError(t, err)
	assert.False(t, resp.Healthy)
	assert.True(t, resp.FreeMap.Consistent)
	assert.Equal(t, 2, resp.Tree.Files)
	assert.Equal(t, []uint32{7}, resp.Tree.Orphans)
}

func TestHandleDamagedHomeCopy(t *testing.T) {
	image := buildTestImage(t)
	f, err := os.OpenFile(image, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, types.BytesPerSector), 342*types.BytesPerSector)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	resp, err := Handle(app.NewContext(), &Request{Target: app.ImageTarget{Path: image}})
	require.NoError(t, err)
	assert.False(t, resp.Healthy)
	assert.Equal(t, 0, resp.HomeBlock.Copy)
	assert.Equal(t, "101", resp.HomeBlock.Valid)
	require.Len(t, resp.HomeBlock.Rejected, 1)
	assert.Contains(t, resp.HomeBlock.Rejected[0], "copy 1")
	assert.True(t, resp.FreeMap.Consistent)
}

func TestHandleInvalidRequest(t *testing.T) {
	_, err := Handle(app.NewContext(), &Request{})
	require.Error(t, err)
	assert.Equal(t, app.ErrCodeInvalidInput, app.ClassifyError(err))
}

func TestFormatOutput(t *testing.T) {
	resp := &Response{
		Image:     "vol.img",
		HomeBlock: HomeCheck{Valid: "101", Matching: "101", Rejected: []string{"copy 1: bad id"}},
		FreeMap: FreeMapCheck{
			Expected:  app.Extent{Start: 1, Length: 1023},
			Merged:    []app.Extent{{Start: 1, Length: 500}, {Start: 600, Length: 424}},
			Conflicts: []Conflict{{Owner: "fid 5 copy 0 extent 0", Extent: app.Extent{Start: 0x20, Length: 2}, Error: "overlap"}},
		},
		Tree: TreeCheck{Directories: 1, Orphans: []uint32{9}},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, resp, "table"))
	out := buf.String()
	assert.Contains(t, out, "home block  FAIL")
	assert.Contains(t, out, "conflict: fid 5 copy 0 extent 0 claims 0x20+2: overlap")
	assert.Contains(t, out, "orphan: fid 9")
	assert.Contains(t, out, "Volume is NOT healthy")

	for _, format := range []string{"json", "yaml"} {
		buf.Reset()
		require.NoError(t, FormatOutput(&buf, resp, format))
		assert.Contains(t, buf.String(), "vol.img")
	}
	assert.Error(t, FormatOutput(&buf, resp, "html"))
}
