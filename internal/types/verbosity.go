package types

import "strings"

// Verbosity is a bit mask selecting which engine activities emit debug events.
type Verbosity uint32

const (
	VerboseMinimum Verbosity = 1 << iota
	VerboseHome
	VerboseHeaders
	VerboseRetPtrs
	VerboseRead
	VerboseIndex
	VerboseFree
	VerboseFreeMap
	VerboseVerifyFreeMap
	VerboseDumpRoot
	VerboseUnpack
	VerboseLookup
	VerboseLookupAll
	VerboseIterate
	VerboseFuse
	VerboseFuseCmd

	// VerboseAny has every bit set.
	VerboseAny = VerboseFuseCmd<<1 - 1
)

var verbosityNames = []struct {
	bit  Verbosity
	name string
}{
	{VerboseMinimum, "minimum"},
	{VerboseHome, "home"},
	{VerboseHeaders, "headers"},
	{VerboseRetPtrs, "retptrs"},
	{VerboseRead, "read"},
	{VerboseIndex, "index"},
	{VerboseFree, "free"},
	{VerboseFreeMap, "freemap"},
	{VerboseVerifyFreeMap, "verify-freemap"},
	{VerboseDumpRoot, "dumproot"},
	{VerboseUnpack, "unpack"},
	{VerboseLookup, "lookup"},
	{VerboseLookupAll, "lookup-all"},
	{VerboseIterate, "iterate"},
	{VerboseFuse, "fuse"},
	{VerboseFuseCmd, "fuse-cmd"},
}

// Has reports whether any of the bits in flag are set.
func (v Verbosity) Has(flag Verbosity) bool {
	return v&flag != 0
}

// String lists the enabled categories.
func (v Verbosity) String() string {
	if v == 0 {
		return "none"
	}
	var parts []string
	for _, n := range verbosityNames {
		if v.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseVerbosity converts a comma separated list of category names into a mask.
// Unknown names are returned so the caller can report them.
func ParseVerbosity(s string) (Verbosity, []string) {
	var v Verbosity
	var unknown []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if part == "all" {
			v |= VerboseAny
			continue
		}
		found := false
		for _, n := range verbosityNames {
			if n.name == part {
				v |= n.bit
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, part)
		}
	}
	return v, unknown
}
