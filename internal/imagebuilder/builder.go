// Package imagebuilder lays out new AGC fsys volumes on a sector store.
package imagebuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/file_header"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/free_map"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/home_block"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/index_table"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

const (
	DefaultIndexSlots     = 256
	DefaultFreeMapEntries = 128
	DefaultGeneration     = 1
)

// Options controls the layout of a new volume
type Options struct {
	// HomeBlockRange spreads the home block copies. Zero uses types.HomeBlockRange.
	HomeBlockRange uint32

	// IndexSlots is the number of file IDs index.sys can hold
	IndexSlots int

	// FreeMapEntries is the number of extents freemap.sys can hold, terminator included
	FreeMapEntries int

	// ContentCopies is how many copies of each file's contents are written, 1 to MaxAlts
	ContentCopies int

	// Timestamp is stored as the creation and modification time of every record
	Timestamp uint32

	// Logger receives layout events. Nil disables logging.
	Logger *zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.HomeBlockRange == 0 {
		o.HomeBlockRange = types.HomeBlockRange
	}
	if o.IndexSlots == 0 {
		o.IndexSlots = DefaultIndexSlots
	}
	if o.FreeMapEntries == 0 {
		o.FreeMapEntries = DefaultFreeMapEntries
	}
	if o.ContentCopies == 0 {
		o.ContentCopies = 1
	}
}

type pendingFile struct {
	header  *types.FileHeaderT
	lbas    types.IndexSlotT
	data    []byte
	entries []types.DirEntryT
}

// Builder accumulates files and directories and writes the volume on Finish. Sectors are
// handed out by the same allocator the engine uses.
type Builder struct {
	store    interfaces.SectorStore
	opts     Options
	free     *services.FreeSpace
	index    *index_table.IndexTable
	homeLBAs [types.MaxAlts]uint32
	files    map[uint32]*pendingFile
	finished bool
	logger   zerolog.Logger
}

// New reserves the home block sectors and the system files of a volume covering store
func New(store interfaces.SectorStore, opts Options) (*Builder, error) {
	opts.setDefaults()
	if opts.ContentCopies < 1 || opts.ContentCopies > types.MaxAlts {
		return nil, fmt.Errorf("%w: %d content copies", types.ErrLogic, opts.ContentCopies)
	}
	if opts.IndexSlots <= int(types.JournalFileID) {
		return nil, fmt.Errorf("%w: index of %d slots cannot hold the system files", types.ErrLogic, opts.IndexSlots)
	}

	total := store.Sectors()
	if total < 16 {
		return nil, fmt.Errorf("failed to build volume: %d sectors is too small: %w", total, types.ErrCapacity)
	}

	free, err := services.NewFreeSpace([]types.ExtentT{{Start: 1, Length: total - 1}}, opts.FreeMapEntries-1)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		store:    store,
		opts:     opts,
		free:     free,
		index:    index_table.NewEmptyIndexTable(opts.IndexSlots),
		homeLBAs: types.HomeBlockLBAs(total, opts.HomeBlockRange),
		files:    make(map[uint32]*pendingFile),
		logger:   zerolog.Nop(),
	}
	if opts.Logger != nil {
		b.logger = *opts.Logger
	}

	for i, lba := range b.homeLBAs {
		got, err := b.free.Find(1, nil, lba)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve home block copy %d: %w", i, err)
		}
		if got.Start != lba {
			return nil, fmt.Errorf("%w: home block copy %d landed at 0x%08X, want 0x%08X", types.ErrLogic, i, got.Start, lba)
		}
	}

	if _, err := b.addSystemFile(types.IndexFileID, types.IndexHeaderID, types.FileTypeFile); err != nil {
		return nil, err
	}
	if _, err := b.addSystemFile(types.FreeMapFileID, types.FileHeaderID, types.FileTypeFile); err != nil {
		return nil, err
	}
	root, err := b.addSystemFile(types.RootDirFileID, types.FileHeaderID, types.FileTypeDir)
	if err != nil {
		return nil, err
	}
	root.entries = []types.DirEntryT{
		{FileID: types.RootDirFileID, Name: "."},
		{FileID: types.RootDirFileID, Name: ".."},
	}
	if _, err := b.addSystemFile(types.JournalFileID, types.FileHeaderID, types.FileTypeFile); err != nil {
		return nil, err
	}
	return b, nil
}

// allocateHeaders places the header copies of fid, each at the first free sector after
// the matching home block copy
func (b *Builder) allocateHeaders(fid uint32) (types.IndexSlotT, error) {
	var slot types.IndexSlotT
	for i, hb := range b.homeLBAs {
		got, err := b.free.Find(1, nil, hb)
		if err != nil {
			return slot, fmt.Errorf("failed to place header copy %d of %d: %w", i, fid, err)
		}
		slot[i] = got.Start
	}
	if err := b.index.Set(fid, slot); err != nil {
		return slot, err
	}
	return slot, nil
}

func (b *Builder) addSystemFile(fid, id uint32, fileType types.FileType) (*pendingFile, error) {
	lbas, err := b.allocateHeaders(fid)
	if err != nil {
		return nil, err
	}
	f := &pendingFile{
		header: &types.FileHeaderT{
			ID:    id,
			Type:  fileType,
			Ctime: b.opts.Timestamp,
			Mtime: b.opts.Timestamp,
		},
		lbas: lbas,
	}
	b.files[fid] = f
	return f, nil
}

func (b *Builder) directory(fid uint32) (*pendingFile, error) {
	f, ok := b.files[fid]
	if !ok {
		return nil, fmt.Errorf("directory %d: %w", fid, types.ErrNotFound)
	}
	if !f.header.IsDir() {
		return nil, fmt.Errorf("file %d: %w", fid, types.ErrNotDirectory)
	}
	return f, nil
}

func (b *Builder) add(parent uint32, name string, fileType types.FileType, data []byte) (uint32, error) {
	if b.finished {
		return 0, fmt.Errorf("%w: volume already written", types.ErrLogic)
	}
	dir, err := b.directory(parent)
	if err != nil {
		return 0, fmt.Errorf("failed to add %q: %w", name, err)
	}
	if name == "" || name == "." || name == ".." || len(name) > types.MaxFilenameLen || strings.ContainsAny(name, "/\x00") {
		return 0, fmt.Errorf("failed to add %q: %w: invalid name", name, types.ErrLogic)
	}
	for _, e := range dir.entries {
		if e.Name == name {
			return 0, fmt.Errorf("failed to add %q: %w: name exists", name, types.ErrLogic)
		}
	}

	fid, err := b.index.NextFree(types.FirstUserFileID)
	if err != nil {
		return 0, fmt.Errorf("failed to add %q: %w", name, err)
	}
	lbas, err := b.allocateHeaders(fid)
	if err != nil {
		return 0, fmt.Errorf("failed to add %q: %w", name, err)
	}

	f := &pendingFile{
		header: &types.FileHeaderT{
			ID:         types.FileHeaderID,
			Generation: DefaultGeneration,
			Type:       fileType,
			Ctime:      b.opts.Timestamp,
			Mtime:      b.opts.Timestamp,
		},
		lbas: lbas,
		data: data,
	}
	if fileType == types.FileTypeDir {
		f.entries = []types.DirEntryT{
			{FileID: fid, Generation: DefaultGeneration, Name: "."},
			{FileID: parent, Generation: dir.header.Generation, Name: ".."},
		}
	}
	b.files[fid] = f
	dir.entries = append(dir.entries, types.DirEntryT{FileID: fid, Generation: DefaultGeneration, Name: name})

	b.logger.Debug().Uint32("fid", fid).Uint32("parent", parent).Str("name", name).
		Str("type", fileType.String()).Int("bytes", len(data)).Msg("added entry")
	return fid, nil
}

// AddDirectory creates an empty directory under parent and returns its file ID
func (b *Builder) AddDirectory(parent uint32, name string) (uint32, error) {
	return b.add(parent, name, types.FileTypeDir, nil)
}

// AddFile creates a regular file under parent and returns its file ID
func (b *Builder) AddFile(parent uint32, name string, data []byte) (uint32, error) {
	return b.add(parent, name, types.FileTypeFile, data)
}

// AddRawEntry appends an entry to a directory without creating the file it names
func (b *Builder) AddRawEntry(parent uint32, entry types.DirEntryT) error {
	dir, err := b.directory(parent)
	if err != nil {
		return err
	}
	dir.entries = append(dir.entries, entry)
	return nil
}

// HomeBlockLBAs returns where the home block copies are written
func (b *Builder) HomeBlockLBAs() [types.MaxAlts]uint32 {
	return b.homeLBAs
}

// Files returns the number of file IDs in use, system files included
func (b *Builder) Files() int {
	return b.index.Used()
}

// FreeSectors returns the sectors left unallocated so far
func (b *Builder) FreeSectors() uint64 {
	return b.free.FreeSectors()
}

// HeaderLBAs returns where the header copies of fid are written
func (b *Builder) HeaderLBAs(fid uint32) (types.IndexSlotT, error) {
	return b.index.Slot(fid)
}

// Header returns the pending header of fid. Extents are filled in by Finish.
func (b *Builder) Header(fid uint32) (*types.FileHeaderT, error) {
	f, ok := b.files[fid]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", fid, types.ErrNotFound)
	}
	return f.header, nil
}

// allocateContents reserves sectors for size bytes in every content copy of f
func (b *Builder) allocateContents(fid uint32, f *pendingFile, size int) error {
	sectors := uint32((size + types.BytesPerSector - 1) / types.BytesPerSector)
	f.header.Size = uint32(size)
	f.header.Clusters = sectors
	if sectors == 0 {
		return nil
	}
	for alt := 0; alt < b.opts.ContentCopies; alt++ {
		run, err := services.AllocateRun(b.free, sectors, nil, 0)
		if err != nil {
			return fmt.Errorf("failed to allocate contents of %d: %w", fid, err)
		}
		for _, e := range run {
			if err := file_header.AppendExtent(f.header, alt, e); err != nil {
				return fmt.Errorf("failed to allocate contents of %d: %w", fid, err)
			}
		}
	}
	return nil
}

func (b *Builder) writeContents(fid uint32, f *pendingFile) error {
	for alt := 0; alt < b.opts.ContentCopies; alt++ {
		off := 0
		for _, e := range f.header.Extents(alt) {
			for s := uint32(0); s < e.Length; s++ {
				end := min(off+types.BytesPerSector, len(f.data))
				var chunk []byte
				if off < end {
					chunk = f.data[off:end]
				}
				if err := b.store.WriteSector(e.Start+s, chunk); err != nil {
					return fmt.Errorf("failed to write contents of %d: %w", fid, err)
				}
				off += types.BytesPerSector
			}
		}
	}
	return nil
}

// Finish allocates and writes every file's contents, the file headers, index.sys,
// freemap.sys and finally the home blocks
func (b *Builder) Finish() error {
	if b.finished {
		return fmt.Errorf("%w: volume already written", types.ErrLogic)
	}
	b.finished = true

	fids := make([]uint32, 0, len(b.files))
	for fid := range b.files {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })

	for _, fid := range fids {
		f := b.files[fid]
		if f.header.IsDir() {
			data, err := directory.Encode(f.entries)
			if err != nil {
				return fmt.Errorf("failed to encode directory %d: %w", fid, err)
			}
			f.data = data
		}
		size := len(f.data)
		switch fid {
		case types.IndexFileID:
			size = b.opts.IndexSlots * types.IndexSlotSize
		case types.FreeMapFileID:
			size = b.opts.FreeMapEntries * types.ExtentSize
		}
		if err := b.allocateContents(fid, f, size); err != nil {
			return err
		}
	}

	// The free list is final once every allocation has been made
	b.files[types.IndexFileID].data = b.index.Encode(b.opts.IndexSlots)
	freeMap, err := free_map.EncodeFreeMap(b.free.Entries(), b.opts.FreeMapEntries*types.ExtentSize)
	if err != nil {
		return fmt.Errorf("failed to encode freemap.sys: %w", err)
	}
	b.files[types.FreeMapFileID].data = freeMap

	for _, fid := range fids {
		f := b.files[fid]
		if err := b.writeContents(fid, f); err != nil {
			return err
		}
		if err := services.WriteRedundant(b.store, file_header.EncodeFileHeader(f.header), f.lbas); err != nil {
			return fmt.Errorf("failed to write header of %d: %w", fid, err)
		}
	}

	home := home_block.NewDefaultHomeBlock(b.store.Sectors(), b.opts.Timestamp)
	home.Index = b.files[types.IndexFileID].lbas
	home.Journal = b.files[types.JournalFileID].lbas
	if err := services.WriteRedundant(b.store, home_block.EncodeHomeBlock(home), b.homeLBAs); err != nil {
		return fmt.Errorf("failed to write home blocks: %w", err)
	}

	b.logger.Info().Int("files", b.index.Used()).Int("free_entries", b.free.Len()).
		Uint64("free_sectors", b.free.FreeSectors()).Msg("volume written")
	return nil
}
