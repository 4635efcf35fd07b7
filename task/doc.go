// Package task implements a tree-shaped, pre-order task scheduler: a
// root task can spawn sub-tasks from its process or output callbacks,
// and the tree is executed either on one goroutine or across a small
// lazily-grown worker pool while preserving the invariant that every
// task's output is emitted in the same pre-order a purely sequential
// walk of the tree would produce.
//
// The scheduling algorithm - tracking the first unprocessed task and
// the first "ready" task per sub-tree so both a worker looking for
// fresh work and the foreground thread draining output can find what
// they need in near-constant time - along with the contention
// heuristic that steers idle workers toward distant sub-trees, is
// ported from Subversion's task.c. Go's garbage collector removes the
// need for the original's three hand-rolled memory arenas (task,
// process-baton, results); this package keeps the tree/pointer
// structure and the processed/ready bookkeeping, and drops the
// explicit pool lifetimes in favor of ordinary Go values collected
// when no longer reachable.
package task
