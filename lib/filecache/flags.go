package filecache

import (
	"fmt"
	"os"
)

// OpenFlags controls how Pool.Open treats a logical file. Only the six
// bits below are accepted; the APR-level BINARY / BUFFERED / XTHREAD bits
// from the original implementation have no Go equivalent (os.File is
// always effectively all three) and must not be set.
type OpenFlags uint8

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenCreate
	OpenAppend
	OpenTruncate
	OpenExcl

	openFlagsAll = OpenRead | OpenWrite | OpenCreate | OpenAppend | OpenTruncate | OpenExcl
)

func (f OpenFlags) has(bit OpenFlags) bool { return f&bit != 0 }

func (f OpenFlags) validate() error {
	if f&^openFlagsAll != 0 {
		return fmt.Errorf("filecache: unsupported open flags %#x", uint8(f&^openFlagsAll))
	}
	if !f.has(OpenRead) && !f.has(OpenWrite) {
		return fmt.Errorf("filecache: flags must include OpenRead, OpenWrite, or both")
	}
	return nil
}

// osFlags translates OpenFlags into the standard library's os.OpenFile
// bitmask.
func (f OpenFlags) osFlags() int {
	var out int
	switch {
	case f.has(OpenRead) && f.has(OpenWrite):
		out = os.O_RDWR
	case f.has(OpenWrite):
		out = os.O_WRONLY
	default:
		out = os.O_RDONLY
	}
	if f.has(OpenCreate) {
		out |= os.O_CREATE
	}
	if f.has(OpenAppend) {
		out |= os.O_APPEND
	}
	if f.has(OpenTruncate) {
		out |= os.O_TRUNC
	}
	if f.has(OpenExcl) {
		out |= os.O_EXCL
	}
	return out
}
