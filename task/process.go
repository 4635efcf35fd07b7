package task

// process runs t's process function (if any) to completion and
// attaches its results. It does not mark t processed; callers decide
// when that transition becomes visible, since the concurrent model
// needs it to happen atomically with picking the next task.
func process(t *Task, threadCtx any, cancel CancelFunc) {
	cb := t.callbacks
	if cb.processFn == nil {
		return
	}

	res := ensureResults(t)
	res.output, res.err = cb.processFn(t, threadCtx, t.processBaton, cancel)

	if cb.outputFn == nil {
		res.output = nil
	}

	if res.err == nil && res.output == nil && res.priorParentOutput == nil && !res.hasPartialResults {
		t.results = nil
	}
}

// outputProcessed drains output in pre-order starting at start, until
// it reaches a task that has not finished processing (possibly start
// itself), returning that task. On error it returns start unchanged,
// mirroring the source's "early return without writing back *task" -
// the caller's notion of current is left exactly where it was before
// this call, since the run is about to stop anyway.
func outputProcessed(root *Root, start *Task, cancel CancelFunc) (*Task, error) {
	current := start

	for current != nil && isProcessed(current) {
		enforceBarrier(root)

		if current.firstSub != nil {
			child := current.firstSub
			if res := child.results; res != nil && res.priorParentOutput != nil {
				cb := child.parent.callbacks
				if err := cb.outputFn(child.parent, res.priorParentOutput, cb.outputBaton, cancel); err != nil {
					return start, err
				}
			}
			current = child
			continue
		}

		res := current.results
		if res != nil {
			err := res.err
			res.err = nil
			if err != nil {
				return start, err
			}
			if res.output != nil {
				cb := current.callbacks
				if err := cb.outputFn(current, res.output, cb.outputBaton, cancel); err != nil {
					return start, err
				}
				res.output = nil
			}
		}

		if current.firstSub == nil {
			toDelete := current
			parent := current.parent

			_ = root.mu.Lock()
			removeTask(toDelete)
			root.outstanding--
			root.mu.Unlock(nil)

			current = parent
		}
	}

	return current, nil
}
