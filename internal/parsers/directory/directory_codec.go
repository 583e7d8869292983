package directory

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// Decode parses a directory's contents. It stops at a zero file ID, skipping zero-ID
// records that still carry a generation and a name length. On a malformed record the
// entries decoded so far are returned together with the error.
func Decode(buf []byte) ([]types.DirEntryT, error) {
	var entries []types.DirEntryT
	off := 0

	for off < len(buf) {
		rest := buf[off:]
		if len(rest) < types.DirEntryHeaderSize {
			if isZero(rest) {
				break
			}
			return entries, fmt.Errorf("entry at offset %d has %d header bytes: %w", off, len(rest), types.ErrTruncatedEntry)
		}

		fid := uint32(rest[0]) | uint32(rest[1])<<8 | uint32(rest[2])<<16
		gen := rest[3]
		rawLen := int(rest[4])
		off += types.DirEntryHeaderSize

		if fid == 0 {
			if gen != 0 && rawLen != 0 {
				if off+rawLen > len(buf) {
					return entries, fmt.Errorf("skipped entry at offset %d: %w", off-types.DirEntryHeaderSize, types.ErrTruncatedEntry)
				}
				off += rawLen
				continue
			}
			break
		}

		nameLen := rawLen
		if nameLen == 0 {
			nameLen = 256
		}
		if off+nameLen > len(buf) {
			return entries, fmt.Errorf("entry for fid %d at offset %d needs %d name bytes: %w",
				fid, off-types.DirEntryHeaderSize, nameLen, types.ErrTruncatedEntry)
		}
		raw := buf[off : off+nameLen]
		if raw[nameLen-1] != 0 {
			return entries, fmt.Errorf("entry for fid %d at offset %d: %w", fid, off-types.DirEntryHeaderSize, types.ErrMalformedName)
		}
		name := raw[:nameLen-1]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		off += nameLen

		entries = append(entries, types.DirEntryT{FileID: fid, Generation: gen, Name: string(name)})
	}

	return entries, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Encode serializes entries followed by a zero terminator record
func Encode(entries []types.DirEntryT) ([]byte, error) {
	size := types.DirEntryHeaderSize
	for _, e := range entries {
		size += EntrySize(e.Name)
	}

	buf := make([]byte, 0, size)
	for _, e := range entries {
		if e.FileID == 0 || e.FileID > types.MaxFileID {
			return nil, fmt.Errorf("failed to encode %q: fid %d: %w", e.Name, e.FileID, types.ErrInvalidFileID)
		}
		if e.Name == "" || len(e.Name) > types.MaxFilenameLen || strings.IndexByte(e.Name, 0) >= 0 {
			return nil, fmt.Errorf("failed to encode %q: invalid name of %d bytes: %w", e.Name, len(e.Name), types.ErrLogic)
		}

		nameLen := len(e.Name) + 1
		buf = append(buf,
			byte(e.FileID), byte(e.FileID>>8), byte(e.FileID>>16),
			e.Generation,
			byte(nameLen), // 256 wraps to 0
		)
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, types.DirEntryHeaderSize)...)
	return buf, nil
}

// EntrySize returns the encoded size of an entry with the given name
func EntrySize(name string) int {
	return types.DirEntryHeaderSize + len(name) + 1
}
