// Package mount exposes a volume read-only through FUSE.
package mount

import (
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

const (
	dirMode  = fuse.S_IFDIR | 0o555
	fileMode = fuse.S_IFREG | 0o444
)

// Options configures a FileSystem
type Options struct {
	// UID and GID own every file
	UID uint32
	GID uint32

	// Timeout is how long the kernel may cache entries and attributes
	Timeout time.Duration

	Logger  *zerolog.Logger
	Verbose types.Verbosity
}

// FileSystem is a go-fuse RawFileSystem over a Volume. Every call into the engine is made
// while holding one mutex. Operations it does not implement fall back to ENOSYS.
type FileSystem struct {
	fuse.RawFileSystem

	mu         sync.Mutex
	vol        *services.Volume
	handles    map[uint64]*services.ContentReader
	nextHandle uint64

	uid     uint32
	gid     uint32
	timeout time.Duration
	logger  zerolog.Logger
	verbose types.Verbosity
}

// NewFileSystem returns a FileSystem serving vol
func NewFileSystem(vol *services.Volume, opts Options) *FileSystem {
	fs := &FileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		vol:           vol,
		handles:       make(map[uint64]*services.ContentReader),
		nextHandle:    1,
		uid:           opts.UID,
		gid:           opts.GID,
		timeout:       opts.Timeout,
		logger:        zerolog.Nop(),
		verbose:       opts.Verbose,
	}
	if opts.Logger != nil {
		fs.logger = *opts.Logger
	}
	return fs
}

func (fs *FileSystem) String() string {
	return "agcfs"
}

// nodeID maps a file ID to a FUSE node ID. The root directory is FUSE_ROOT_ID.
func nodeID(fid uint32) uint64 {
	if fid == types.RootDirFileID {
		return fuse.FUSE_ROOT_ID
	}
	return uint64(fid) + 2
}

func fileID(node uint64) uint32 {
	if node == fuse.FUSE_ROOT_ID {
		return types.RootDirFileID
	}
	return uint32(node - 2)
}

// errorStatus converts an engine error into the errno returned to the kernel
func errorStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrInvalidFileID):
		return fuse.ENOENT
	case errors.Is(err, types.ErrNotDirectory):
		return fuse.ENOTDIR
	case errors.Is(err, types.ErrIsDirectory), errors.Is(err, types.ErrInvalidSeek):
		return fuse.EINVAL
	default:
		return fuse.EIO
	}
}

func (fs *FileSystem) trace(op string, node uint64) {
	if fs.verbose.Has(types.VerboseFuseCmd) {
		fs.logger.Debug().Str("op", op).Uint64("node", node).Msg("fuse request")
	}
}

func (fs *FileSystem) fail(op string, node uint64, err error) fuse.Status {
	status := errorStatus(err)
	if status == fuse.EIO {
		fs.logger.Warn().Err(err).Str("op", op).Uint64("node", node).Msg("fuse request failed")
	} else if fs.verbose.Has(types.VerboseFuse) {
		fs.logger.Debug().Err(err).Str("op", op).Uint64("node", node).Msg("fuse request refused")
	}
	return status
}

// fillAttr describes node. Directories are unpacked so their link count is known.
func (fs *FileSystem) fillAttr(node *services.Node, out *fuse.Attr) {
	header := node.Header
	out.Ino = nodeID(node.FileID)
	out.Size = uint64(header.Size)
	out.Blocks = uint64(header.Clusters)
	out.Blksize = types.BytesPerSector
	out.Mtime = uint64(header.Mtime)
	out.Ctime = uint64(header.Ctime)
	out.Atime = uint64(header.Mtime)
	out.Owner = fuse.Owner{Uid: fs.uid, Gid: fs.gid}

	if node.IsDir() {
		out.Mode = dirMode
		out.Nlink = 2
		if err := fs.vol.Tree().Unpack(node.FileID); err == nil {
			out.Nlink += uint32(node.NumChildren)
		}
		return
	}
	out.Mode = fileMode
	out.Nlink = 1
}

func (fs *FileSystem) fillEntry(node *services.Node, out *fuse.EntryOut) {
	out.NodeId = nodeID(node.FileID)
	out.Generation = uint64(node.Generation)
	fs.fillAttr(node, &out.Attr)
	out.SetEntryTimeout(fs.timeout)
	out.SetAttrTimeout(fs.timeout)
}

// GetAttr reports the attributes of a node
func (fs *FileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("getattr", input.NodeId)

	node, err := fs.vol.Tree().Stat(fileID(input.NodeId))
	if err != nil {
		return fs.fail("getattr", input.NodeId, err)
	}
	fs.fillAttr(node, &out.Attr)
	out.SetTimeout(fs.timeout)
	return fuse.OK
}

// Lookup finds name in the directory header.NodeId
func (fs *FileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("lookup", header.NodeId)

	child, err := fs.lookupChild(fileID(header.NodeId), name)
	if err != nil {
		return fs.fail("lookup", header.NodeId, err)
	}
	fs.fillEntry(child, out)
	return fuse.OK
}

func (fs *FileSystem) lookupChild(dir uint32, name string) (*services.Node, error) {
	children, err := fs.vol.Tree().Children(dir)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Name == name {
			return fs.vol.Tree().Stat(child.FileID)
		}
	}
	return nil, types.ErrNotFound
}

// Open creates a read handle. Directories and write access are refused.
func (fs *FileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("open", input.NodeId)

	if input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		return fuse.EACCES
	}
	reader, err := fs.vol.OpenContent(fileID(input.NodeId))
	if err != nil {
		return fs.fail("open", input.NodeId, err)
	}
	out.Fh = fs.nextHandle
	fs.nextHandle++
	fs.handles[out.Fh] = reader
	return fuse.OK
}

// Read returns file contents, clipped at the end of the file
func (fs *FileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("read", input.NodeId)

	reader, ok := fs.handles[input.Fh]
	if !ok {
		return nil, fuse.ToStatus(syscall.EBADF)
	}
	n, err := reader.Read(buf, int64(input.Offset))
	if err != nil {
		return nil, fs.fail("read", input.NodeId, err)
	}
	if fs.verbose.Has(types.VerboseFuse) {
		fs.logger.Debug().Uint64("node", input.NodeId).Uint64("offset", input.Offset).Int("bytes", n).Msg("read")
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

// Release drops a read handle
func (fs *FileSystem) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("release", input.NodeId)
	delete(fs.handles, input.Fh)
}

// OpenDir checks that the node is a directory and unpacks it
func (fs *FileSystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("opendir", input.NodeId)

	if _, err := fs.vol.Tree().Children(fileID(input.NodeId)); err != nil {
		return fs.fail("opendir", input.NodeId, err)
	}
	return fuse.OK
}

// dirEntries lists a directory the way ReadDir returns it, dot entries first
func (fs *FileSystem) dirEntries(fid uint32) ([]fuse.DirEntry, error) {
	dir, err := fs.vol.Tree().Node(fid)
	if err != nil {
		return nil, err
	}
	children, err := fs.vol.Tree().Children(fid)
	if err != nil {
		return nil, err
	}

	entries := make([]fuse.DirEntry, 0, len(children)+2)
	entries = append(entries,
		fuse.DirEntry{Mode: fuse.S_IFDIR, Name: ".", Ino: nodeID(fid)},
		fuse.DirEntry{Mode: fuse.S_IFDIR, Name: "..", Ino: nodeID(dir.Parent)},
	)
	for _, child := range children {
		mode := uint32(fuse.S_IFREG)
		if child.IsDir() {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Mode: mode, Name: child.Name, Ino: nodeID(child.FileID)})
	}
	return entries, nil
}

// ReadDir lists the directory from input.Offset until the reply is full
func (fs *FileSystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("readdir", input.NodeId)

	entries, err := fs.dirEntries(fileID(input.NodeId))
	if err != nil {
		return fs.fail("readdir", input.NodeId, err)
	}
	for i := int(input.Offset); i < len(entries); i++ {
		if !out.AddDirEntry(entries[i]) {
			break
		}
	}
	return fuse.OK
}

// ReadDirPlus lists the directory and returns the attributes of every child
func (fs *FileSystem) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("readdirplus", input.NodeId)

	entries, err := fs.dirEntries(fileID(input.NodeId))
	if err != nil {
		return fs.fail("readdirplus", input.NodeId, err)
	}
	for i := int(input.Offset); i < len(entries); i++ {
		entryOut := out.AddDirLookupEntry(entries[i])
		if entryOut == nil {
			break
		}
		if entries[i].Name == "." || entries[i].Name == ".." {
			continue
		}
		node, err := fs.vol.Tree().Stat(fileID(entries[i].Ino))
		if err != nil {
			continue
		}
		fs.fillEntry(node, entryOut)
	}
	return fuse.OK
}

// StatFs reports volume capacity
func (fs *FileSystem) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.trace("statfs", input.NodeId)

	st, err := fs.vol.Statfs()
	if err != nil {
		return fs.fail("statfs", input.NodeId, err)
	}
	out.Bsize = st.BlockSize
	out.Frsize = st.BlockSize
	out.Blocks = st.Blocks
	out.Bfree = st.BFree
	out.Bavail = st.BAvail
	out.Files = st.Files
	out.Ffree = st.FFree
	out.NameLen = st.NameMax
	return fuse.OK
}
