package services

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/free_map"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/index_table"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// VolumeOptions configures OpenVolume
type VolumeOptions struct {
	// Logger receives engine events. Nil disables logging.
	Logger *zerolog.Logger

	// Verbose selects the debug categories that are logged
	Verbose types.Verbosity

	// Metrics receives engine counters. Nil disables them.
	Metrics *Metrics

	// HomeBlockRange overrides the spread of the home block copies. Zero uses the default.
	HomeBlockRange uint32
}

// HomeBlockStatus describes how the home block copies agreed
type HomeBlockStatus struct {
	LBAs             [types.MaxAlts]uint32
	Copy             int
	Valid            uint8
	Matching         uint8
	ComputedChecksum uint32
	CopyErrors       [types.MaxAlts]error
}

// Volume is the mount context: the home block, index table, free list and node arena of
// one volume. It does no locking; callers serialize access.
type Volume struct {
	SessionID uuid.UUID

	store      interfaces.SectorStore
	home       *types.HomeBlockT
	homeStatus HomeBlockStatus
	index      *index_table.IndexTable
	freeSpace  *FreeSpace
	tree       *Tree

	logger  zerolog.Logger
	verbose types.Verbosity
	metrics *Metrics
}

// OpenVolume reads the home block, index table and free list of the volume in store and
// prepares the node arena with the root directory and system files.
func OpenVolume(store interfaces.SectorStore, opts VolumeOptions) (*Volume, error) {
	v := &Volume{
		SessionID: uuid.New(),
		store:     store,
		logger:    zerolog.Nop(),
		verbose:   opts.Verbose,
		metrics:   opts.Metrics,
	}
	if opts.Logger != nil {
		v.logger = opts.Logger.With().Str("session", v.SessionID.String()).Logger()
	}

	rng := opts.HomeBlockRange
	if rng == 0 {
		rng = types.HomeBlockRange
	}
	if err := v.loadHomeBlock(types.HomeBlockLBAs(store.Sectors(), rng)); err != nil {
		return nil, err
	}
	if err := v.loadIndex(); err != nil {
		return nil, err
	}
	if err := v.loadFreeMap(); err != nil {
		return nil, err
	}
	if err := v.initTree(); err != nil {
		return nil, err
	}

	v.logger.Info().Uint32("max_lba", v.home.MaxLBA).Int("index_capacity", v.index.Capacity()).
		Int("files", v.index.Used()).Int("free_entries", v.freeSpace.Len()).
		Uint64("free_sectors", v.freeSpace.FreeSectors()).Msg("volume opened")
	return v, nil
}

func (v *Volume) loadHomeBlock(lbas [types.MaxAlts]uint32) error {
	result, err := ReadHomeBlock(v.store, lbas)
	v.metrics.observeQuorum("home_block", result.Rejected(), err)
	v.homeStatus = HomeBlockStatus{
		LBAs:       lbas,
		Copy:       result.Copy,
		Valid:      result.Valid,
		Matching:   result.Matching,
		CopyErrors: result.CopyErrors,
	}
	for i, copyErr := range result.CopyErrors {
		if copyErr != nil {
			v.logger.Warn().Err(copyErr).Int("copy", i).Uint32("lba", lbas[i]).Msg("home block copy rejected")
		}
	}
	if err != nil {
		return fmt.Errorf("failed to read home block: %w", err)
	}

	v.home = result.Record.HomeBlock()
	v.homeStatus.ComputedChecksum = result.Record.ComputedChecksum()
	if v.verbose.Has(types.VerboseHome) {
		v.logger.Debug().Int("copy", result.Copy).Uint8("valid", result.Valid).Uint8("matching", result.Matching).
			Uint32("max_lba", v.home.MaxLBA).Msg("home block selected")
	}
	return nil
}

func (v *Volume) loadIndex() error {
	header, err := v.readHeader(v.home.Index, types.IndexHeaderID, 0, "index.sys")
	if err != nil {
		return fmt.Errorf("failed to read index.sys header: %w", err)
	}

	data, err := v.readContents(header, "index.sys")
	if err != nil {
		return fmt.Errorf("failed to read index.sys: %w", err)
	}
	capacity := int(uint64(header.Clusters) * types.BytesPerSector / types.IndexSlotSize)
	v.index = index_table.NewIndexTable(data, capacity, binary.LittleEndian)
	// Slots past the stored contents exist but are unused
	if v.index.Capacity() < capacity {
		grown := index_table.NewEmptyIndexTable(capacity)
		for fid, slot := range v.index.Slots() {
			_ = grown.Set(uint32(fid), slot)
		}
		v.index = grown
	}

	v.tree = NewTree(v.store, v, v.index.Capacity())
	v.tree.SetLogger(v.logger, v.verbose)
	v.tree.SetMetrics(v.metrics)
	if _, err := v.tree.AddNode(types.IndexFileID, types.SystemFileNames[types.IndexFileID], header, types.RootDirFileID); err != nil {
		return fmt.Errorf("failed to register index.sys: %w", err)
	}

	if v.verbose.Has(types.VerboseIndex) {
		for fid, slot := range v.index.Slots() {
			if slot.IsFree() {
				continue
			}
			v.logger.Debug().Int("fid", fid).Str("name", index_table.SystemName(uint32(fid))).
				Uint32("lba0", slot[0]).Uint32("lba1", slot[1]).Uint32("lba2", slot[2]).Msg("index slot")
		}
	}
	return nil
}

func (v *Volume) loadFreeMap() error {
	header, err := v.ResolveHeader(types.FreeMapFileID, 0)
	if err != nil {
		return fmt.Errorf("failed to read freemap.sys header: %w", err)
	}
	data, err := v.readContents(header, "freemap.sys")
	if err != nil {
		return fmt.Errorf("failed to read freemap.sys: %w", err)
	}

	capacity := int(uint64(header.Clusters) * types.BytesPerSector / types.ExtentSize)
	entries := free_map.DecodeFreeMap(data, capacity, binary.LittleEndian)
	if err := free_map.CheckOrdering(entries); err != nil {
		v.logger.Warn().Err(err).Msg("free map is not in canonical order")
	}

	v.freeSpace, err = NewFreeSpace(entries, capacity)
	if err != nil {
		return fmt.Errorf("failed to load freemap.sys: %w", err)
	}
	v.freeSpace.SetLogger(v.logger, v.verbose)
	v.freeSpace.SetMetrics(v.metrics)

	if v.verbose.Has(types.VerboseFreeMap) {
		for i, e := range entries {
			v.logger.Debug().Int("entry", i).Stringer("extent", e).Msg("free map entry")
		}
	}
	return nil
}

func (v *Volume) initTree() error {
	root, err := v.tree.AddNode(types.RootDirFileID, types.SystemFileNames[types.RootDirFileID], nil, types.RootDirFileID)
	if err != nil {
		return err
	}
	if err := v.tree.ensureHeader(root); err != nil {
		return fmt.Errorf("failed to read root directory: %w", err)
	}
	if !root.IsDir() {
		return fmt.Errorf("%w: root directory header has type %s", types.ErrCorruption, root.Header.Type)
	}
	for _, fid := range []uint32{types.FreeMapFileID, types.JournalFileID} {
		if v.index.IsFree(fid) {
			continue
		}
		if _, err := v.tree.AddNode(fid, types.SystemFileNames[fid], nil, types.RootDirFileID); err != nil {
			return err
		}
	}
	return nil
}

// readHeader quorum reads a header, logging rejected copies
func (v *Volume) readHeader(lbas [types.MaxAlts]uint32, id uint32, gen uint8, name string) (*types.FileHeaderT, error) {
	result, err := ReadFileHeader(v.store, lbas, id, gen)
	v.metrics.observeQuorum("file_header", result.Rejected(), err)
	for i, copyErr := range result.CopyErrors {
		if copyErr != nil {
			v.logger.Warn().Err(copyErr).Str("file", name).Int("copy", i).Msg("file header copy rejected")
		}
	}
	if err != nil {
		if gen != 0 && onlyGenerationMismatches(result.CopyErrors) {
			return nil, fmt.Errorf("%s: %w", name, types.ErrGenerationMatch)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	header := result.Record.Header()
	if v.verbose.Has(types.VerboseHeaders) {
		event := v.logger.Debug().Str("file", name).Int("copy", result.Copy).Uint32("size", header.Size).
			Uint32("clusters", header.Clusters).Uint8("generation", header.Generation).Str("type", header.Type.String())
		if v.verbose.Has(types.VerboseRetPtrs) {
			event = event.Interface("pointers", header.Extents(0))
		}
		event.Msg("file header loaded")
	}
	return header, nil
}

func onlyGenerationMismatches(errs [types.MaxAlts]error) bool {
	seen := false
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrGenerationMatch) {
			return false
		}
		seen = true
	}
	return seen
}

func (v *Volume) readContents(header *types.FileHeaderT, name string) ([]byte, error) {
	data := make([]byte, header.Size)
	reader := NewContentReader(v.store, header, name)
	reader.SetLogger(v.logger, v.verbose)
	n, err := reader.Read(data, 0)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

// ResolveHeader returns the header of fid through its index slot. A non-zero expectedGen
// must match the header's generation.
func (v *Volume) ResolveHeader(fid uint32, expectedGen uint8) (*types.FileHeaderT, error) {
	if fid == types.IndexFileID && v.tree != nil {
		if node, err := v.tree.Node(fid); err == nil && node.Header != nil {
			return node.Header, nil
		}
	}
	slot, err := v.index.Slot(fid)
	if err != nil {
		return nil, err
	}
	if slot.IsFree() {
		return nil, fmt.Errorf("file id %d: %w", fid, types.ErrNotFound)
	}
	name := index_table.SystemName(fid)
	if name == "" {
		name = fmt.Sprintf("fid %d", fid)
	}
	return v.readHeader([types.MaxAlts]uint32(slot), types.FileHeaderID, expectedGen, name)
}

// HomeBlock returns the selected home block
func (v *Volume) HomeBlock() *types.HomeBlockT {
	return v.home
}

// HomeBlockStatus returns how the home block copies agreed at open
func (v *Volume) HomeBlockStatus() HomeBlockStatus {
	return v.homeStatus
}

// Index returns the index table
func (v *Volume) Index() *index_table.IndexTable {
	return v.index
}

// FreeSpace returns the free list
func (v *Volume) FreeSpace() *FreeSpace {
	return v.freeSpace
}

// Tree returns the node arena
func (v *Volume) Tree() *Tree {
	return v.tree
}

// Store returns the underlying sector store
func (v *Volume) Store() interfaces.SectorStore {
	return v.store
}

// Lookup resolves a path from the root
func (v *Volume) Lookup(path string) (*Node, error) {
	return v.tree.Lookup(path)
}

// OpenContent returns a reader over the contents of the regular file fid
func (v *Volume) OpenContent(fid uint32) (*ContentReader, error) {
	node, err := v.tree.Stat(fid)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return nil, fmt.Errorf("open %q: %w", node.Name, types.ErrIsDirectory)
	}
	reader := NewContentReader(v.store, node.Header, node.Name)
	reader.SetLogger(v.logger, v.verbose)
	reader.SetMetrics(v.metrics)
	return reader, nil
}
