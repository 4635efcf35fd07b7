// Package syncutil provides the small set of synchronization primitives
// the task scheduler and the shared file-handle cache are built on: a
// mutex with optional recursive-lock detection, a condition variable, a
// waitable counter, and a single-shot initializer.
//
// Every primitive can be constructed as a real, OS-backed object or as a
// lightweight no-op shell. The shells exist so that code written against
// this package can run its serial (single-goroutine) path through exactly
// the same call sequence as its concurrent path, without branching on
// "are we threaded" at every call site — mirroring how Subversion's
// svn_mutex__t and svn_thread_cond__t collapse to no-ops when
// APR_HAS_THREADS is unset.
package syncutil
