package task

import "sync"

// worker repeatedly picks and processes tasks until the root is told
// to terminate. It builds its own thread-context once, matching a
// worker goroutine in the original's thread pool.
func worker(r *Root, errs *errCollector) {
	var threadCtx any
	if r.ctxCtor != nil {
		ctx, err := r.ctxCtor(r.ctxBaton)
		if err != nil {
			errs.add(err)
			return
		}
		threadCtx = ctx
	}

	cancel := workerCancelled(r)
	var cur *Task

	for !r.terminate.Load() {
		if cur == nil {
			// Nothing cached from the last pass: let the foreground
			// know it may be worth checking for outputtable results
			// before we go looking for more work.
			r.taskProcessed.Signal()

			_ = r.mu.Lock()
			next, err := nextTask(r)
			r.mu.Unlock(nil)
			if err != nil {
				errs.add(err)
				return
			}
			if next == nil {
				return
			}
			cur = next
		}

		process(cur, threadCtx, cancel)

		_ = r.mu.Lock()
		pick, err := setProcessedAndPick(cur)
		r.processedCount++
		r.mu.Unlock(nil)
		if err != nil {
			errs.add(err)
			return
		}
		cur = pick
	}
}

// waitForOutputtingState blocks the foreground goroutine until
// current's process function has completed, lazily spawning another
// worker (up to threadCount) each time it is about to sleep empty
// handed. Must be called with r.mu held.
func waitForOutputtingState(r *Root, current *Task, threadCount int, wg *sync.WaitGroup, spawned *int, errs *errCollector) {
	for {
		if isProcessed(current) {
			return
		}
		if threadCount > *spawned {
			*spawned++
			wg.Add(1)
			go func() {
				defer wg.Done()
				worker(r, errs)
			}()
		}
		r.taskProcessed.Wait()
	}
}

// executeConcurrently runs r.task to completion using up to
// threadCount worker goroutines, and returns the single task error
// (if any) composed with any worker failures.
func executeConcurrently(r *Root, threadCount int, cancel CancelFunc) error {
	current := r.task
	var taskErr error

	var wg sync.WaitGroup
	spawned := 0
	errs := &errCollector{}

	for current != nil && taskErr == nil {
		_ = r.mu.Lock()
		waitForOutputtingState(r, current, threadCount, &wg, &spawned, errs)
		r.mu.Unlock(nil)

		var err error
		current, err = outputProcessed(r, current, cancel)
		taskErr = err
	}

	_ = r.mu.Lock()
	sendTerminate(r)
	r.mu.Unlock(nil)

	wg.Wait()
	syncErr := errs.errorOrNil()

	if syncErr == nil {
		clearErrors(r.task)
	}
	return composeErrors(syncErr, taskErr)
}
