package filecache

import "github.com/apache/subversion-sub001/lib/syncutil"

var (
	defaultPoolOnce syncutil.Once
	defaultPool     *Pool
)

func defaultPoolInstance() *Pool {
	_ = defaultPoolOnce.Do(func() error {
		defaultPool = NewPool(DefaultCapacity)
		return nil
	})
	return defaultPool
}

// Open is a convenience wrapper around a process-wide default Pool, for
// callers that don't need an isolated handle budget. Everything it does
// is also available, with an explicit Pool, via Pool.Open.
func Open(name string, flags OpenFlags, bufferSize, bufferCount int, deferCreation bool) (*File, error) {
	return defaultPoolInstance().Open(name, flags, bufferSize, bufferCount, deferCreation)
}

// MaxSharedHandles returns the default Pool's current capacity.
func MaxSharedHandles() int {
	return defaultPoolInstance().MaxSharedHandles()
}

// SetMaxSharedHandles changes the default Pool's capacity.
func SetMaxSharedHandles(n int) error {
	return defaultPoolInstance().SetMaxSharedHandles(n)
}
