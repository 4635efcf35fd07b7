package task

// Run constructs the root task wrapping processFn/processBaton and
// outputFn/outputBaton, executes it (and any sub-tasks added along the
// way) to completion, and returns the Root it ran on alongside the
// single reported task error.
//
// threadCount > 1 selects the concurrent execution model; anything
// else runs serially on the calling goroutine. ctxCtor, if non-nil,
// builds a context once per worker goroutine (and once for the serial
// path) that every process call on that goroutine shares. cancelFn may
// be nil; process callbacks always see cancellation once Run decides
// to stop regardless, but a caller-supplied cancelFn is additionally
// polled by every output callback.
func Run(
	threadCount int,
	processFn ProcessFunc, processBaton any,
	outputFn OutputFunc, outputBaton any,
	ctxCtor ContextCtor, ctxBaton any,
	cancelFn CancelFunc,
) (*Root, error) {
	threaded := threadCount > 1

	r := newRoot(threaded, ctxCtor, ctxBaton)
	r.task.callbacks = &callbacks{processFn: processFn, outputFn: outputFn, outputBaton: outputBaton}
	r.task.processBaton = processBaton
	r.outstanding = 1

	if cancelFn == nil {
		cancelFn = func() error { return nil }
	}

	var err error
	if threaded {
		err = executeConcurrently(r, threadCount, cancelFn)
	} else {
		err = executeSerially(r, cancelFn)
	}
	return r, err
}

// Add schedules a new sub-task of parent, to be picked up by the
// scheduler once linked. arena must come from CreateProcessPool(parent)
// and may only be used for this one call. partialOutput, if non-nil,
// is emitted through parent's output function before any output of
// this sub-task or of the sub-tasks below it, provided parent has an
// output function at all.
func Add(
	parent *Task, arena *ProcessArena, partialOutput any,
	processFn ProcessFunc, processBaton any,
	outputFn OutputFunc, outputBaton any,
) error {
	cb := &callbacks{processFn: processFn, outputFn: outputFn, outputBaton: outputBaton}
	return addTask(parent, arena, partialOutput, cb, processBaton)
}

// AddSimilar is Add but reusing parent's own callbacks object, the
// common shape for recursive tree walks that apply the same
// process/output pair to every sub-task.
func AddSimilar(parent *Task, arena *ProcessArena, partialOutput any, processBaton any) error {
	return addTask(parent, arena, partialOutput, parent.callbacks, processBaton)
}

func addTask(parent *Task, arena *ProcessArena, partialOutput any, cb *callbacks, baton any) error {
	if arena == nil || arena.parent != parent || arena.used {
		return errArenaMisuse
	}
	arena.used = true

	newTask := &Task{
		root:         parent.root,
		parent:       parent,
		callbacks:    cb,
		processBaton: baton,
	}
	newTask.firstReady = newTask

	if partialOutput != nil && parent.callbacks.outputFn != nil {
		ensureResults(parent).hasPartialResults = true
		ensureResults(newTask).priorParentOutput = partialOutput
	}

	root := parent.root
	_ = root.mu.Lock()
	err := linkNewTask(newTask)
	if err == nil {
		root.outstanding++
	}
	root.mu.Unlock(nil)
	if err != nil {
		return err
	}

	if root.workerWakeup != nil {
		root.workerWakeup.Broadcast()
	}
	return nil
}
