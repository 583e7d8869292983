package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// NoNode marks an absent parent, sibling or child link
const NoNode uint32 = 0xFFFFFFFF

// UnpackState tracks whether a directory's entries have been materialized
type UnpackState int

const (
	Unvisited UnpackState = iota
	Unpacking
	Unpacked
)

func (s UnpackState) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Unpacking:
		return "unpacking"
	case Unpacked:
		return "unpacked"
	default:
		return fmt.Sprintf("UnpackState(%d)", int(s))
	}
}

// Node is one file in the arena. Links are file IDs.
type Node struct {
	FileID      uint32
	Name        string
	Generation  uint8
	Header      *types.FileHeaderT
	Parent      uint32
	Next        uint32
	FirstChild  uint32
	NumChildren int
	State       UnpackState

	lastChild uint32
}

// IsDir reports whether the node's header describes a directory
func (n *Node) IsDir() bool {
	return n.Header != nil && n.Header.IsDir()
}

// Tree lazily builds the directory hierarchy of a volume in an arena indexed by file ID.
// It does no locking; callers serialize access.
type Tree struct {
	store    interfaces.SectorStore
	resolver interfaces.HeaderResolver
	nodes    []*Node

	logger  zerolog.Logger
	verbose types.Verbosity
	metrics *Metrics
}

// NewTree returns an empty arena able to hold capacity file IDs
func NewTree(store interfaces.SectorStore, resolver interfaces.HeaderResolver, capacity int) *Tree {
	return &Tree{
		store:    store,
		resolver: resolver,
		nodes:    make([]*Node, capacity),
		logger:   zerolog.Nop(),
	}
}

// SetLogger sets the logger. Skipped entries are always logged as warnings; unpack and
// lookup steps are logged at debug level under VerboseUnpack and VerboseLookup.
func (t *Tree) SetLogger(logger zerolog.Logger, verbose types.Verbosity) {
	t.logger = logger
	t.verbose = verbose
}

// SetMetrics sets the collectors updated while unpacking
func (t *Tree) SetMetrics(m *Metrics) {
	t.metrics = m
}

// Capacity returns the number of file IDs the arena can hold
func (t *Tree) Capacity() int {
	return len(t.nodes)
}

// AddNode places a node for fid in the arena without linking it under a directory.
// A nil header is resolved on first use.
func (t *Tree) AddNode(fid uint32, name string, header *types.FileHeaderT, parent uint32) (*Node, error) {
	if uint64(fid) >= uint64(len(t.nodes)) {
		return nil, fmt.Errorf("failed to add node %d: %w", fid, types.ErrInvalidFileID)
	}
	node := &Node{
		FileID:     fid,
		Name:       name,
		Header:     header,
		Parent:     parent,
		Next:       NoNode,
		FirstChild: NoNode,
		lastChild:  NoNode,
	}
	if header != nil {
		node.Generation = header.Generation
	}
	t.nodes[fid] = node
	return node, nil
}

// Node returns the materialized node of fid
func (t *Tree) Node(fid uint32) (*Node, error) {
	if uint64(fid) >= uint64(len(t.nodes)) {
		return nil, fmt.Errorf("node %d: %w", fid, types.ErrInvalidFileID)
	}
	node := t.nodes[fid]
	if node == nil {
		return nil, fmt.Errorf("node %d: %w", fid, types.ErrNotFound)
	}
	return node, nil
}

// Root returns the root directory node
func (t *Tree) Root() (*Node, error) {
	return t.Node(types.RootDirFileID)
}

// Stat returns the materialized node of fid with its header loaded
func (t *Tree) Stat(fid uint32) (*Node, error) {
	node, err := t.Node(fid)
	if err != nil {
		return nil, err
	}
	if err := t.ensureHeader(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (t *Tree) ensureHeader(node *Node) error {
	if node.Header != nil {
		return nil
	}
	header, err := t.resolver.ResolveHeader(node.FileID, node.Generation)
	if err != nil {
		return fmt.Errorf("failed to load header of %d: %w", node.FileID, err)
	}
	node.Header = header
	node.Generation = header.Generation
	return nil
}

// Unpack reads the directory fid and links its entries as children. Unpacking an
// unpacked directory does nothing; re-entering a directory being unpacked is an error.
// Subdirectories are not unpacked.
func (t *Tree) Unpack(fid uint32) error {
	node, err := t.Node(fid)
	if err != nil {
		return fmt.Errorf("failed to unpack: %w", err)
	}
	switch node.State {
	case Unpacked:
		return nil
	case Unpacking:
		return fmt.Errorf("failed to unpack %d %q: %w", fid, node.Name, types.ErrUnpackInProgress)
	}

	node.State = Unpacking
	if err := t.unpack(node); err != nil {
		node.State = Unvisited
		return err
	}
	node.State = Unpacked
	t.metrics.observeUnpacked()
	return nil
}

func (t *Tree) unpack(dir *Node) error {
	if err := t.ensureHeader(dir); err != nil {
		return fmt.Errorf("failed to unpack %d %q: %w", dir.FileID, dir.Name, err)
	}
	if !dir.IsDir() {
		return fmt.Errorf("failed to unpack %d %q: %w", dir.FileID, dir.Name, types.ErrNotDirectory)
	}

	contents := make([]byte, dir.Header.Size)
	reader := NewContentReader(t.store, dir.Header, dir.Name)
	reader.SetLogger(t.logger, t.verbose)
	if _, err := reader.Read(contents, 0); err != nil {
		return fmt.Errorf("failed to read directory %d %q: %w", dir.FileID, dir.Name, err)
	}

	entries, decodeErr := directory.Decode(contents)
	if decodeErr != nil {
		t.logger.Warn().Err(decodeErr).Uint32("fid", dir.FileID).Str("dir", dir.Name).
			Int("decoded", len(entries)).Msg("directory contents malformed, remainder skipped")
	}

	for _, entry := range entries {
		if entry.IsDot() {
			continue
		}
		t.link(dir, entry)
	}

	if t.verbose.Has(types.VerboseUnpack) {
		t.logger.Debug().Uint32("fid", dir.FileID).Str("dir", dir.Name).Int("children", dir.NumChildren).Msg("unpacked directory")
	}
	return nil
}

func (t *Tree) skip(dir *Node, entry types.DirEntryT, reason string, err error) {
	t.metrics.observeSkippedEntry(reason)
	event := t.logger.Warn()
	if err != nil {
		event = event.Err(err)
	}
	event.Uint32("fid", entry.FileID).Uint8("generation", entry.Generation).Str("name", entry.Name).
		Uint32("dir_fid", dir.FileID).Str("dir", dir.Name).Str("reason", reason).Msg("skipped directory entry")
}

// link attaches the file named by entry as the last child of dir, or logs why it cannot
func (t *Tree) link(dir *Node, entry types.DirEntryT) {
	fid := entry.FileID
	if uint64(fid) >= uint64(len(t.nodes)) {
		t.skip(dir, entry, "invalid_fid", nil)
		return
	}
	if fid == dir.FileID {
		t.skip(dir, entry, "self_reference", nil)
		return
	}

	child := t.nodes[fid]
	if child != nil {
		if child.Generation != entry.Generation {
			t.skip(dir, entry, "generation", nil)
			return
		}
		if child.Parent != NoNode {
			t.skip(dir, entry, "already_linked", nil)
			return
		}
		if err := t.ensureHeader(child); err != nil {
			t.skip(dir, entry, "bad_header", err)
			return
		}
	} else {
		header, err := t.resolver.ResolveHeader(fid, entry.Generation)
		switch {
		case errors.Is(err, types.ErrNotFound):
			t.skip(dir, entry, "free_fid", err)
			return
		case errors.Is(err, types.ErrInvalidFileID):
			t.skip(dir, entry, "invalid_fid", err)
			return
		case errors.Is(err, types.ErrGenerationMatch):
			t.skip(dir, entry, "generation", err)
			return
		case err != nil:
			t.skip(dir, entry, "bad_header", err)
			return
		}
		child = &Node{
			FileID:     fid,
			Generation: header.Generation,
			Header:     header,
			Next:       NoNode,
			FirstChild: NoNode,
			lastChild:  NoNode,
		}
		t.nodes[fid] = child
	}

	child.Name = entry.Name
	child.Parent = dir.FileID
	child.Next = NoNode
	if dir.lastChild == NoNode {
		dir.FirstChild = fid
	} else {
		t.nodes[dir.lastChild].Next = fid
	}
	dir.lastChild = fid
	dir.NumChildren++

	if t.verbose.Has(types.VerboseUnpack) {
		t.logger.Debug().Uint32("fid", fid).Uint32("parent", dir.FileID).Str("type", child.Header.Type.String()).
			Str("name", child.Name).Msg("linked entry")
	}
}

// Children unpacks fid if needed and returns its children in on-disk order
func (t *Tree) Children(fid uint32) ([]*Node, error) {
	if err := t.Unpack(fid); err != nil {
		return nil, err
	}
	dir := t.nodes[fid]
	children := make([]*Node, 0, dir.NumChildren)
	for id := dir.FirstChild; id != NoNode; id = t.nodes[id].Next {
		children = append(children, t.nodes[id])
		if len(children) > dir.NumChildren {
			return children, fmt.Errorf("%w: sibling chain of %d loops", types.ErrLogic, fid)
		}
	}
	return children, nil
}

// Lookup resolves a slash separated path from the root, unpacking directories on the way
func (t *Tree) Lookup(path string) (*Node, error) {
	cur, err := t.Root()
	if err != nil {
		return nil, err
	}

	for _, component := range strings.Split(path, "/") {
		switch component {
		case "", ".":
			continue
		case "..":
			cur = t.nodes[cur.Parent]
			continue
		}

		children, err := t.Children(cur.FileID)
		if err != nil {
			if errors.Is(err, types.ErrNotDirectory) {
				return nil, fmt.Errorf("lookup %q: %s: %w", path, cur.Name, types.ErrNotDirectory)
			}
			return nil, fmt.Errorf("lookup %q: %w", path, err)
		}

		var found *Node
		for _, child := range children {
			if t.verbose.Has(types.VerboseLookupAll) {
				t.logger.Debug().Str("want", component).Str("name", child.Name).Uint32("fid", child.FileID).Msg("comparing entry")
			}
			if child.Name == component {
				found = child
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("lookup %q: %s: %w", path, component, types.ErrNotFound)
		}
		cur = found
	}

	if err := t.ensureHeader(cur); err != nil {
		return nil, fmt.Errorf("lookup %q: %w", path, err)
	}
	if t.verbose.Has(types.VerboseLookup) {
		t.logger.Debug().Str("path", path).Uint32("fid", cur.FileID).Msg("lookup resolved")
	}
	return cur, nil
}

// WalkFunc is called for every node reached by Walk with its depth below the start node
type WalkFunc func(node *Node, depth int) error

// Walk visits fid and everything below it depth first, unpacking directories as it goes.
// A node reached a second time is reported and not descended into. Directories that fail to
// unpack are logged and treated as empty.
func (t *Tree) Walk(fid uint32, fn WalkFunc) error {
	visited := make(map[uint32]bool)
	return t.walk(fid, 0, visited, fn)
}

func (t *Tree) walk(fid uint32, depth int, visited map[uint32]bool, fn WalkFunc) error {
	node, err := t.Node(fid)
	if err != nil {
		return err
	}
	if visited[fid] {
		t.logger.Warn().Uint32("fid", fid).Str("name", node.Name).Msg("directory loop detected")
		return nil
	}
	visited[fid] = true

	if err := t.ensureHeader(node); err != nil {
		t.logger.Warn().Err(err).Uint32("fid", fid).Msg("failed to load header")
	}
	if err := fn(node, depth); err != nil {
		return err
	}
	if !node.IsDir() {
		return nil
	}

	children, err := t.Children(fid)
	if err != nil {
		t.logger.Warn().Err(err).Uint32("fid", fid).Str("name", node.Name).Msg("failed to unpack directory")
	}
	for _, child := range children {
		if err := t.walk(child.FileID, depth+1, visited, fn); err != nil {
			return err
		}
	}
	return nil
}
