package task

import (
	"sync/atomic"

	"github.com/apache/subversion-sub001/lib/syncutil"
)

// Root owns everything a single Run invocation needs: the global
// mutex guarding the task tree, the memory-barrier mutex, the two
// condition variables workers and the foreground coordinate through,
// and the root task itself.
type Root struct {
	mu  *syncutil.Mutex
	mb  *syncutil.Mutex
	workerWakeup  *syncutil.Cond
	taskProcessed *syncutil.Cond

	task *Task

	ctxCtor  ContextCtor
	ctxBaton any

	terminate atomic.Bool

	threaded bool

	// outstanding and processedCount back Stats. While workers are
	// running, both are only mutated with mu held; the serial path has
	// no workers and updates them directly.
	outstanding    int
	processedCount int
}

// Stats is a read-only snapshot of a Root's task-tree liveness, handy
// for tests and for embedders that want a progress signal. It changes
// no scheduling behavior.
type Stats struct {
	Outstanding int
	Processed   int
}

// Stats returns a point-in-time snapshot. Safe to call concurrently
// with a running scheduler, including from within a process or output
// callback.
func (r *Root) Stats() Stats {
	_ = r.mu.Lock()
	defer r.mu.Unlock(nil)
	return Stats{Outstanding: r.outstanding, Processed: r.processedCount}
}

func newRoot(threaded bool, ctxCtor ContextCtor, ctxBaton any) *Root {
	mu := syncutil.NewMutex(threaded, false)
	mb := syncutil.NewMutex(threaded, false)

	r := &Root{
		mu:       mu,
		mb:       mb,
		ctxCtor:  ctxCtor,
		ctxBaton: ctxBaton,
		threaded: threaded,
	}
	if threaded {
		r.workerWakeup = syncutil.NewCond(mu, true)
		r.taskProcessed = syncutil.NewCond(mu, true)
	}

	r.task = &Task{root: r}
	r.task.firstReady = r.task
	return r
}

// enforceBarrier is the portable substitute for an explicit acquire
// fence: an uncontended lock/unlock of a mutex dedicated to nothing
// else. It must be called before reading a task's fields after
// observing isProcessed(task), so that a worker's writes made before
// it marked the task processed are guaranteed visible here.
func enforceBarrier(r *Root) {
	_ = r.mb.Lock()
	_ = r.mb.Unlock(nil)
}

func workerCancelled(r *Root) CancelFunc {
	return func() error {
		if r.terminate.Load() {
			return ErrCancelled
		}
		return nil
	}
}

func sendTerminate(r *Root) {
	r.terminate.Store(true)
	if r.workerWakeup != nil {
		r.workerWakeup.Broadcast()
	}
}

// nextTask finds the first ready task in pre-order, sleeping on
// workerWakeup until one exists or the root is told to terminate.
// Must be called with r.mu held.
func nextTask(r *Root) (*Task, error) {
	for {
		if r.terminate.Load() {
			return nil, nil
		}
		if r.task.firstReady != nil {
			cur := r.task.firstReady
			if err := unreadyTask(cur); err != nil {
				return nil, err
			}
			return cur, nil
		}
		r.workerWakeup.Wait()
	}
}
