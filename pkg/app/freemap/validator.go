package freemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Validate validates a simulation request and parses its operations
func (r *Request) Validate() error {
	if r.Target.Path != "" {
		if err := r.Target.Validate(); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
		}
		if r.Capacity != 0 {
			return app.NewError(app.ErrCodeInvalidInput, "capacity only applies to the sample list", nil)
		}
	}
	if r.Capacity < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "capacity cannot be negative", nil)
	}
	if len(r.Operations) == 0 {
		return app.NewError(app.ErrCodeInvalidInput, "at least one operation is required", nil)
	}

	r.parsed = r.parsed[:0]
	for _, s := range r.Operations {
		op, err := ParseOperation(s)
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid operation %q", s), err)
		}
		r.parsed = append(r.parsed, op)
	}
	return nil
}

// ParseOperation parses "find:N", "find:N@MIN" or "free:START+LENGTH"
func ParseOperation(s string) (Operation, error) {
	kind, arg, ok := strings.Cut(s, ":")
	if !ok {
		return Operation{}, fmt.Errorf("missing ':'")
	}

	switch kind {
	case OpFind:
		countStr, minStr, hasMin := strings.Cut(arg, "@")
		count, err := parseNumber(countStr)
		if err != nil {
			return Operation{}, err
		}
		if count == 0 {
			return Operation{}, fmt.Errorf("sector count must be positive")
		}
		op := Operation{Kind: OpFind, Count: count}
		if hasMin {
			if op.MinSector, err = parseNumber(minStr); err != nil {
				return Operation{}, err
			}
		}
		return op, nil
	case OpFree:
		startStr, lengthStr, ok := strings.Cut(arg, "+")
		if !ok {
			return Operation{}, fmt.Errorf("free needs START+LENGTH")
		}
		start, err := parseNumber(startStr)
		if err != nil {
			return Operation{}, err
		}
		length, err := parseNumber(lengthStr)
		if err != nil {
			return Operation{}, err
		}
		return Operation{Kind: OpFree, Extent: types.ExtentT{Start: start, Length: length}}, nil
	default:
		return Operation{}, fmt.Errorf("unknown operation %q", kind)
	}
}

func parseNumber(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
