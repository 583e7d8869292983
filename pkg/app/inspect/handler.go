package inspect

import (
	"fmt"
	"path"
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/parsers/index_table"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Handle processes an inspection request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Inspecting %s", req.Target.String()))
	ctx.Progress("Opening volume...", 10)

	// 2. Mount the volume
	vol, err := app.OpenVolume(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	defer vol.Close()

	response := &Response{
		Image:     req.Target.Path,
		SessionID: vol.SessionID.String(),
	}

	// 3. Collect the requested sections
	ctx.Progress("Reading metadata...", 40)
	if req.wants(SectionHome) {
		response.Home = homeInfo(vol.Volume)
	}
	if req.wants(SectionIndex) {
		response.Index = indexSlots(vol.Index())
	}
	if req.wants(SectionFreeMap) {
		response.FreeMap = freeMapInfo(vol.FreeSpace())
	}
	if req.wants(SectionDir) {
		listing, err := listDirectory(vol.Volume, req.Path, req.Extents)
		if err != nil {
			return nil, app.WrapError(fmt.Sprintf("failed to list %s", req.Path), err)
		}
		response.Directory = listing
	}
	if req.wants(SectionLookup) {
		node, err := vol.Lookup(req.Path)
		if err != nil {
			return nil, app.WrapError(fmt.Sprintf("failed to look up %s", req.Path), err)
		}
		info := fileInfo(node, path.Clean("/"+req.Path), req.Extents)
		response.Lookup = &info
	}
	if req.wants(SectionTree) {
		ctx.Progress("Walking directory tree...", 60)
		entries, err := walkTree(ctx, vol.Volume, req)
		if err != nil {
			return nil, app.WrapError(fmt.Sprintf("failed to walk %s", req.Path), err)
		}
		response.Tree = entries
	}

	response.ElapsedTime = time.Since(startTime)
	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Inspection completed in %v", response.ElapsedTime))
	return response, nil
}

func homeInfo(vol *services.Volume) *HomeInfo {
	status := vol.HomeBlockStatus()
	home := vol.HomeBlock()
	info := &HomeInfo{
		Copy:             status.Copy,
		Valid:            fmt.Sprintf("%03b", status.Valid),
		Matching:         fmt.Sprintf("%03b", status.Matching),
		LBAs:             status.LBAs,
		Version:          fmt.Sprintf("%d.%d", home.HbMajor, home.HbMinor),
		Checksum:         home.Chksum,
		ComputedChecksum: status.ComputedChecksum,
		MaxLBA:           home.MaxLBA,
		DefExtend:        home.DefExtend,
		Features:         home.Features,
		Options:          home.Options,
		UpdateInProgress: home.UpdFlag != 0,
		Created:          unixTime(home.Ctime),
		Modified:         unixTime(home.Mtime),
		Index:            home.Index,
		Journal:          home.Journal,
	}
	for i, err := range status.CopyErrors {
		if err != nil {
			info.CopyErrors = append(info.CopyErrors, fmt.Sprintf("copy %d: %v", i, err))
		}
	}
	return info
}

func indexSlots(index *index_table.IndexTable) []IndexSlot {
	var slots []IndexSlot
	for fid, slot := range index.Slots() {
		if slot.IsFree() {
			continue
		}
		slots = append(slots, IndexSlot{
			FileID: uint32(fid),
			Name:   index_table.SystemName(uint32(fid)),
			LBAs:   slot,
		})
	}
	return slots
}

func freeMapInfo(free *services.FreeSpace) *FreeMapInfo {
	return &FreeMapInfo{
		Entries:     app.ExtentsFrom(free.Entries()),
		Capacity:    free.Capacity(),
		FreeSectors: free.FreeSectors(),
	}
}

func listDirectory(vol *services.Volume, dirPath string, withExtents bool) (*DirectoryListing, error) {
	dir, err := vol.Lookup(dirPath)
	if err != nil {
		return nil, err
	}
	children, err := vol.Tree().Children(dir.FileID)
	if err != nil {
		return nil, err
	}

	base := path.Clean("/" + dirPath)
	listing := &DirectoryListing{Path: base, FileID: dir.FileID, Entries: make([]FileInfo, 0, len(children))}
	for _, child := range children {
		listing.Entries = append(listing.Entries, fileInfo(child, path.Join(base, child.Name), withExtents))
	}
	return listing, nil
}

func walkTree(ctx *app.Context, vol *services.Volume, req *Request) ([]TreeEntry, error) {
	start, err := vol.Lookup(req.Path)
	if err != nil {
		return nil, err
	}

	base := path.Clean("/" + req.Path)
	var entries []TreeEntry
	var names []string
	err = vol.Tree().Walk(start.FileID, func(node *services.Node, depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		names = append(names[:depth], node.Name)
		if req.MaxDepth > 0 && depth > req.MaxDepth {
			return nil
		}
		p := base
		if depth > 0 {
			p = path.Join(append([]string{base}, names[1:]...)...)
		}
		entries = append(entries, TreeEntry{FileInfo: fileInfo(node, p, req.Extents), Depth: depth})
		return nil
	})
	return entries, err
}

func fileInfo(node *services.Node, filePath string, withExtents bool) FileInfo {
	info := FileInfo{
		FileID:     node.FileID,
		Name:       node.Name,
		Path:       filePath,
		Generation: node.Generation,
	}
	header := node.Header
	if header == nil {
		info.Type = "UNK"
		info.Error = "header not loaded"
		return info
	}

	info.Type = header.Type.String()
	info.Size = header.Size
	info.Clusters = header.Clusters
	info.Modified = unixTime(header.Mtime)
	for alt := 0; alt < types.MaxAlts; alt++ {
		list := header.Extents(alt)
		if len(list) == 0 {
			continue
		}
		info.Copies++
		if withExtents {
			info.Extents = append(info.Extents, app.ExtentsFrom(list))
		}
	}
	return info
}

func unixTime(seconds uint32) time.Time {
	return time.Unix(int64(seconds), 0).UTC()
}
