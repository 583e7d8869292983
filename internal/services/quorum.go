package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// RecordCodec decodes and checks one redundant on-disk record
type RecordCodec[T any] interface {
	// Decode parses a record from a sector
	Decode(sector []byte) (T, error)

	// Validate accepts or rejects a decoded copy
	Validate(record T) error

	// Equal reports whether two copies carry the same record
	Equal(a, b T) bool
}

// QuorumResult is the outcome of reading the redundant copies of a record
type QuorumResult[T any] struct {
	// Record is the selected copy
	Record T

	// Copy is the index of the selected copy
	Copy int

	// Valid has bit i set when copy i passed validation
	Valid uint8

	// Matching has bit i set when copy i decodes to the same record as copy 0
	Matching uint8

	// CopyErrors holds the read or validation failure of each rejected copy
	CopyErrors [types.MaxAlts]error
}

// Rejected returns the number of copies that were unreadable or invalid
func (r *QuorumResult[T]) Rejected() int {
	n := 0
	for _, err := range r.CopyErrors {
		if err != nil {
			n++
		}
	}
	return n
}

// QuorumRead reads every copy of a record and returns the first valid one in copy order.
// Disagreeing copies are reported through the bitmasks and are never rewritten.
func QuorumRead[T any](store interfaces.SectorStore, lbas [types.MaxAlts]uint32, codec RecordCodec[T]) (*QuorumResult[T], error) {
	result := &QuorumResult[T]{Copy: -1}

	var decoded [types.MaxAlts]T
	var readable, decodedOK [types.MaxAlts]bool

	for i, lba := range lbas {
		sector, err := store.ReadSector(lba)
		if err != nil {
			result.CopyErrors[i] = fmt.Errorf("copy %d at 0x%08X: %w", i, lba, err)
			continue
		}
		record, err := codec.Decode(sector)
		if err != nil {
			result.CopyErrors[i] = fmt.Errorf("copy %d at 0x%08X: %v: %w", i, lba, err, types.ErrCorruption)
			readable[i] = true
			continue
		}
		readable[i] = true
		decodedOK[i] = true
		decoded[i] = record

		if err := codec.Validate(record); err != nil {
			result.CopyErrors[i] = fmt.Errorf("copy %d at 0x%08X: %w", i, lba, err)
		} else {
			result.Valid |= 1 << i
			if result.Copy < 0 {
				result.Copy = i
				result.Record = record
			}
		}
	}

	if decodedOK[0] {
		for i := 0; i < types.MaxAlts; i++ {
			if decodedOK[i] && codec.Equal(decoded[0], decoded[i]) {
				result.Matching |= 1 << i
			}
		}
	}

	if result.Copy >= 0 {
		return result, nil
	}

	anyReadable := false
	for _, r := range readable {
		anyReadable = anyReadable || r
	}
	if anyReadable {
		return result, fmt.Errorf("%w: %s", types.ErrNoValidCopy, result.describeFailures())
	}
	return result, fmt.Errorf("%w: %s", types.ErrNoReadableCopy, result.describeFailures())
}

// describeFailures flattens the per-copy errors into one line
func (r *QuorumResult[T]) describeFailures() string {
	parts := make([]string, 0, types.MaxAlts)
	for _, err := range r.CopyErrors {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

// WriteRedundant writes the same sector image to every target. All targets are attempted;
// the failures are joined.
func WriteRedundant(store interfaces.SectorStore, image []byte, lbas [types.MaxAlts]uint32) error {
	var errs []error
	for i, lba := range lbas {
		if err := store.WriteSector(lba, image); err != nil {
			errs = append(errs, fmt.Errorf("copy %d at 0x%08X: %w", i, lba, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to write redundant record: %w", errors.Join(errs...))
	}
	return nil
}
