// Package filecache multiplexes a bounded number of open OS file
// descriptors across an unbounded number of logical, buffered File
// objects.
//
// A Pool owns the descriptors. Every File keeps its position and a small
// number of aligned data buffers entirely in memory and only borrows a
// descriptor from the Pool for the duration of an actual read, write, or
// seek; the descriptor is returned to the Pool immediately afterwards, to
// be handed to whichever File needs one next. This lets a caller keep
// thousands of logical files "open" — accumulating buffered, uncommitted
// writes — while the process holds only as many real descriptors as the
// Pool's capacity allows.
//
// This mirrors Subversion's libsvn_subr/file.c shared-handle cache, and
// is sized the way rclone's lib/pool buffer pool and vfs/vfscache item
// cache are: a bounded resource pool wrapped by an API that makes the
// bound invisible to callers.
package filecache
