package app

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// ImageTarget selects the volume inside an image file across commands
type ImageTarget struct {
	Path string

	// BaseSector forces the volume start, bypassing partition detection when non-zero
	BaseSector uint32

	// NoPartitionDetect treats the image as a bare volume
	NoPartitionDetect bool
}

// Validate ensures the image target is usable
func (t *ImageTarget) Validate() error {
	if t.Path == "" {
		return NewError(ErrCodeInvalidInput, "image path is required", nil)
	}
	if t.BaseSector != 0 && t.NoPartitionDetect {
		return NewError(ErrCodeInvalidInput, "cannot combine base-sector with no-partition-detect", nil)
	}
	return nil
}

// String returns a string representation of the image target
func (t *ImageTarget) String() string {
	if t.BaseSector != 0 {
		return fmt.Sprintf("%s @ sector 0x%X", t.Path, t.BaseSector)
	}
	return t.Path
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeImageAccess  = "IMAGE_ACCESS"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeCorruption   = "CORRUPTION"
	ErrCodeIO           = "IO"
	ErrCodeCapacity     = "CAPACITY"
	ErrCodeInvariant    = "INVARIANT"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ClassifyError returns the error code matching the engine error kind wrapped by err.
// Errors that already carry a code keep it.
func ClassifyError(err error) string {
	var common *CommonError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &common):
		return common.Code
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrNotDirectory), errors.Is(err, types.ErrIsDirectory):
		return ErrCodeNotFound
	case errors.Is(err, types.ErrInvalidSeek):
		return ErrCodeInvalidInput
	case errors.Is(err, types.ErrCorruption):
		return ErrCodeCorruption
	case errors.Is(err, types.ErrIO):
		return ErrCodeIO
	case errors.Is(err, types.ErrCapacity):
		return ErrCodeCapacity
	case errors.Is(err, types.ErrLogic):
		return ErrCodeInvariant
	default:
		return ErrCodeIO
	}
}

// WrapError creates a CommonError whose code is derived from cause
func WrapError(message string, cause error) *CommonError {
	return NewError(ClassifyError(cause), message, cause)
}

// Extent is a run of sectors as reported by commands
type Extent struct {
	Start  uint32 `json:"start" yaml:"start"`
	Length uint32 `json:"length" yaml:"length"`
}

// String renders the extent as start+length
func (e Extent) String() string {
	return fmt.Sprintf("0x%X+%d", e.Start, e.Length)
}

// ExtentsFrom converts engine extents for reporting
func ExtentsFrom(list []types.ExtentT) []Extent {
	out := make([]Extent, 0, len(list))
	for _, e := range list {
		out = append(out, Extent{Start: e.Start, Length: e.Length})
	}
	return out
}
