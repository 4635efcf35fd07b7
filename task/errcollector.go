package task

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// errCollector accumulates worker-goroutine failures so they can be
// joined into one error after all workers have exited, the way the
// original composes each apr_thread_join's error into sync_err.
type errCollector struct {
	mu  sync.Mutex
	err *multierror.Error
}

func (c *errCollector) add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.err = multierror.Append(c.err, err)
	c.mu.Unlock()
}

func (c *errCollector) errorOrNil() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err.ErrorOrNil()
}

// composeErrors joins a worker-join error with the task error surfaced
// by output_processed. When only one side fired, it is returned
// unchanged rather than wrapped in a single-element chain; when both
// fired, the task error takes precedence, reported first with the
// sync error chained after it.
func composeErrors(syncErr, taskErr error) error {
	switch {
	case taskErr == nil:
		return syncErr
	case syncErr == nil:
		return taskErr
	default:
		merr := multierror.Append(nil, taskErr, syncErr)
		return merr.ErrorOrNil()
	}
}
