package task

// ProcessFunc processes a single task. A nil output short-circuits the
// output phase for this task: its results are discarded immediately
// instead of waiting for the pre-order drain to reach it.
type ProcessFunc func(t *Task, threadCtx any, baton any, cancel CancelFunc) (output any, err error)

// OutputFunc emits a task's output (or its prior-parent-output, see
// AddSimilar) on the single foreground goroutine that drains results
// in pre-order.
type OutputFunc func(t *Task, output any, baton any, cancel CancelFunc) error

// ContextCtor builds a per-worker context, run once per worker
// goroutine (and once at the start of serial execution).
type ContextCtor func(baton any) (any, error)

// CancelFunc reports cancellation, returning ErrCancelled once the
// scheduler has been told to stop.
type CancelFunc func() error

// callbacks bundles the process/output pair a task runs. Shared
// between a task and any "similar" children added via AddSimilar, the
// way the original shares one callbacks_t between a recursive call's
// siblings.
type callbacks struct {
	processFn   ProcessFunc
	outputFn    OutputFunc
	outputBaton any
}

// results holds what a task's process function produced, allocated
// lazily the first time something needs to be attached to the task
// (an output, an error, partial parent output, or a partial-results
// flag).
type results struct {
	output            any
	err               error
	priorParentOutput any
	hasPartialResults bool
}

// Task is one node in the scheduling tree.
type Task struct {
	root *Root

	parent   *Task
	firstSub *Task
	lastSub  *Task
	next     *Task

	// subTaskIdx is this task's ordinal among siblings at insertion
	// time. It is never renumbered, even if earlier siblings are
	// later removed; it exists purely to answer before/after
	// questions cheaply.
	subTaskIdx int

	// firstReady is the first task, in pre-order, of this sub-tree
	// whose processing has not yet started. nil means every task in
	// the sub-tree has at least started processing. If firstReady ==
	// this task, the task itself is waiting to be picked, and it has
	// no sub-tasks yet.
	firstReady *Task

	// firstUnprocessed is the first immediate sub-task that hasn't
	// been processed, or nil (which does not rule out unprocessed
	// tasks deeper down).
	firstUnprocessed *Task

	callbacks    *callbacks
	processBaton any

	// processed mirrors the original's "process_arena == nil": false
	// until the process function (if any) has run to completion.
	processed bool

	results *results
}

// ProcessArena is the token returned by CreateProcessPool. The
// original uses it to hand the new sub-task's process-baton pool to
// Add/AddSimilar; Go needs no such pool, but the token is kept so the
// "create exactly one arena per sub-task, then hand it to Add" call
// shape survives unchanged, and so a reused or mismatched arena is
// still caught as the invariant violation it is in the source model.
type ProcessArena struct {
	parent *Task
	used   bool
}

// CreateProcessPool allocates the (trivial, in this port) arena for a
// new sub-task of parent. Must be called exactly once per sub-task;
// the result is consumed by Add or AddSimilar.
func CreateProcessPool(parent *Task) *ProcessArena {
	return &ProcessArena{parent: parent}
}

func ensureResults(t *Task) *results {
	if t.results == nil {
		t.results = &results{}
	}
	return t.results
}

// firstReadySubTaskIdx returns the sub_task_idx of the immediate
// child of t through which t.firstReady is reachable. t must have a
// ready task somewhere in its sub-tree.
func firstReadySubTaskIdx(t *Task) int {
	sub := t.firstReady
	for sub.parent != t {
		sub = sub.parent
	}
	return sub.subTaskIdx
}

// linkNewTask appends newTask to its parent's sibling chain and
// updates the ready/unprocessed bookkeeping up the ancestor chain.
// Must be called with root.mu held.
func linkNewTask(newTask *Task) error {
	parent := newTask.parent
	if parent.lastSub != nil {
		parent.lastSub.next = newTask
		newTask.subTaskIdx = parent.lastSub.subTaskIdx + 1
	}
	parent.lastSub = newTask
	if parent.firstSub == nil {
		parent.firstSub = newTask
	}

	for current, anc := newTask, parent; anc != nil; current, anc = anc, anc.parent {
		if anc.firstReady != nil && firstReadySubTaskIdx(anc) < current.subTaskIdx {
			break
		}
		anc.firstReady = newTask
	}

	if parent.firstUnprocessed == nil {
		parent.firstUnprocessed = newTask
	}

	if newTask.parent == nil || newTask.firstSub != nil || newTask.lastSub != nil ||
		newTask.next != nil || newTask.firstReady != newTask || newTask.firstUnprocessed != nil ||
		newTask.callbacks == nil || newTask.processed {
		return errTaskInvariant
	}
	return nil
}

// nextReady follows the sibling chain starting at t and returns the
// first task with a ready sub-tree (t included), or nil.
func nextReady(t *Task) *Task {
	for ; t != nil; t = t.next {
		if t.firstReady != nil {
			return t
		}
	}
	return nil
}

// nextUnprocessed follows the sibling chain starting at t and returns
// the first task that is itself unprocessed (t included), or nil.
func nextUnprocessed(t *Task) *Task {
	for ; t != nil; t = t.next {
		if t.firstReady == t {
			return t
		}
	}
	return nil
}

// unreadyTask marks t as picked for processing: it is no longer
// "ready", and every ancestor whose firstReady pointed at t is
// updated to point at the next ready task, or nil. Must be called
// with root.mu held.
func unreadyTask(t *Task) error {
	if t.firstReady != t || t.firstSub != nil {
		return errUnreadyTask
	}
	t.firstReady = nil

	var firstReady *Task
	for current, parent := t, t.parent; parent != nil && parent.firstReady == t; current, parent = parent, parent.parent {
		if firstReady == nil {
			if sub := nextReady(current.next); sub != nil {
				firstReady = sub.firstReady
			}
		}
		parent.firstReady = firstReady
	}

	if t.parent != nil && t.parent.firstUnprocessed == t {
		t.parent.firstUnprocessed = nextUnprocessed(t.next)
	}
	return nil
}

// isContended reports whether another worker appears to already be
// active in t's sub-tree or is about to collide with t's next
// sibling. Detection need not be perfect; it only steers the
// contention-avoidance heuristic in setProcessedAndPick. Must be
// called with root.mu held.
func isContended(t *Task) bool {
	if t.firstSub != t.firstReady {
		return true
	}
	if t.firstReady == nil && t.next != nil && t.next.firstReady == t.next {
		return true
	}
	return false
}

func setProcessed(t *Task) {
	t.processed = true
}

func isProcessed(t *Task) bool {
	return t.processed
}

// setProcessedAndPick marks t processed and returns the next task to
// run, preferring a distant sub-tree when isContended(t) suggests
// another worker is already nearby. Must be called with root.mu held.
func setProcessedAndPick(t *Task) (*Task, error) {
	setProcessed(t)

	var next *Task
	if isContended(t) {
		for t.parent != nil && t.parent.firstUnprocessed != nil {
			t = t.parent
		}
		next = t.firstUnprocessed
	} else {
		for t.firstReady == nil && t.parent != nil {
			t = t.parent
		}
		next = t.firstReady
	}

	if next != nil {
		if err := unreadyTask(next); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// removeTask unlinks t from its parent's sub-task list. t must have
// been fully processed with no sub-tasks remaining. Must be called
// with root.mu held.
func removeTask(t *Task) {
	parent := t.parent
	if parent == nil {
		return
	}
	if parent.firstSub == t {
		parent.firstSub = t.next
	}
	if parent.lastSub == t {
		parent.lastSub = nil
	}
}

// clearErrors walks t's sub-tree and drops any remaining results
// error, so a tree torn down after an early exit doesn't leak a
// spurious second error report.
func clearErrors(t *Task) {
	for sub := t.firstSub; sub != nil; sub = sub.next {
		clearErrors(sub)
	}
	if t.results != nil {
		t.results.err = nil
	}
}
