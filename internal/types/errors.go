package types

import (
	"errors"
	"fmt"
)

// Error kinds. Every engine error wraps exactly one of these so callers can classify it
// with errors.Is.
var (
	// ErrIO means a sector could not be read or written.
	ErrIO = errors.New("i/o error")

	// ErrCorruption means on-disk data failed a checksum, tag, generation or format check.
	ErrCorruption = errors.New("corruption detected")

	// ErrCapacity means a bounded list or table has no room left.
	ErrCapacity = errors.New("capacity exhausted")

	// ErrLogic means an invariant was violated by the caller or by on-disk state.
	ErrLogic = errors.New("invariant violation")
)

var (
	ErrNoValidCopy      = fmt.Errorf("%w: no valid copy", ErrCorruption)
	ErrNoReadableCopy   = fmt.Errorf("%w: no readable copy", ErrIO)
	ErrBadChecksum      = fmt.Errorf("%w: checksum mismatch", ErrCorruption)
	ErrBadRecordID      = fmt.Errorf("%w: unexpected record id", ErrCorruption)
	ErrGenerationMatch  = fmt.Errorf("%w: generation mismatch", ErrCorruption)
	ErrMalformedName    = fmt.Errorf("%w: directory name not NUL terminated", ErrCorruption)
	ErrTruncatedEntry   = fmt.Errorf("%w: directory entry runs past end of buffer", ErrCorruption)
	ErrExtentListEnded  = fmt.Errorf("%w: retrieval pointers end before requested range", ErrIO)
	ErrShortRead        = fmt.Errorf("%w: short sector read", ErrIO)
	ErrOutOfRange       = fmt.Errorf("%w: sector beyond end of volume", ErrIO)
	ErrFreeListEmpty    = fmt.Errorf("%w: free list empty", ErrCapacity)
	ErrNoFit            = fmt.Errorf("%w: no free extent fits", ErrCapacity)
	ErrNoRoomToSplit    = fmt.Errorf("%w: no room to split free extent", ErrCapacity)
	ErrFreeListFull     = fmt.Errorf("%w: no room in free list", ErrCapacity)
	ErrTooManyExtents   = fmt.Errorf("%w: retrieval pointer list full", ErrCapacity)
	ErrIndexFull        = fmt.Errorf("%w: index table full", ErrCapacity)
	ErrOverlappingFree  = fmt.Errorf("%w: freed extent overlaps free list", ErrLogic)
	ErrEmptyExtent      = fmt.Errorf("%w: zero-length extent", ErrLogic)
	ErrUnpackInProgress = fmt.Errorf("%w: directory unpack already in progress", ErrLogic)
	ErrInvalidFileID    = fmt.Errorf("%w: file id out of range", ErrLogic)
)

// Lookup outcomes that are not engine failures.
var (
	ErrNotFound     = errors.New("no such file")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrInvalidSeek  = errors.New("seek position out of range")
)
