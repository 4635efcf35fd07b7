package syncutil

import "sync"

// Once guarantees that an initializer function runs exactly once,
// regardless of how many goroutines race to trigger it, and remembers a
// failure so every caller — including the one that triggered the
// original attempt — observes the same error forever after. This is the
// Go analogue of svn_atomic__init_once, used by lib/filecache to
// lazily construct the process-wide handle pool exactly once.
type Once struct {
	once sync.Once
	err  error
}

// Do runs init exactly once across all calls to Do on this Once. Every
// call, including concurrent ones that arrive while init is still
// running, blocks until init has completed and then returns its result.
func (o *Once) Do(init func() error) error {
	o.once.Do(func() {
		o.err = init()
	})
	return o.err
}
