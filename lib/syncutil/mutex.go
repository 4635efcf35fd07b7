package syncutil

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// ErrRecursiveLock is returned by (*Mutex).Lock when a checked mutex is
// locked a second time from the goroutine that already holds it.
var ErrRecursiveLock = errors.New("syncutil: recursive lock")

// ErrInvalidUnlock is returned by (*Mutex).Unlock when a checked mutex is
// unlocked while not held.
var ErrInvalidUnlock = errors.New("syncutil: invalid unlock")

// Mutex wraps sync.Mutex with two independent options: whether it is
// backed by a real lock at all (required), and whether it additionally
// detects recursive-locking mistakes (checked). A Mutex with
// required == false never blocks on an OS lock — it exists so call sites
// can be written the same way regardless of whether the surrounding code
// runs with one goroutine or many, the way svn_mutex__t collapses to a
// no-op when APR_HAS_THREADS is unset.
type Mutex struct {
	required bool
	checked  bool

	mu sync.Mutex

	// ownerMu protects owner. For a required mutex, owner is only ever
	// touched while mu is also held, so a second mutex may look
	// redundant — but Lock must read the *previous* owner before it has
	// acquired mu, so the two cannot share one lock.
	ownerMu sync.Mutex
	// owner is the goroutine ID currently holding the lock, or 0.
	// Only meaningful when checked is true.
	owner uint64
}

// NewMutex creates a Mutex. If required is false, Lock and Unlock never
// touch an OS mutex; they are pure bookkeeping (and, if checked, still
// catch recursive-lock and invalid-unlock mistakes symmetrically with the
// real case, so application bugs surface the same way in both modes).
func NewMutex(required, checked bool) *Mutex {
	return &Mutex{required: required, checked: checked}
}

// Lock acquires the mutex. If the mutex is checked and already held by
// the calling goroutine, it returns ErrRecursiveLock without blocking.
func (m *Mutex) Lock() error {
	id := uint64(0)
	if m.checked {
		id = currentGoroutineID()
		m.ownerMu.Lock()
		owner := m.owner
		m.ownerMu.Unlock()
		// A zero owner means "unlocked"; currentGoroutineID never
		// legitimately returns 0, so treating 0 as "no owner" carries
		// no false-positive risk.
		if owner != 0 && owner == id {
			return ErrRecursiveLock
		}
	}

	if m.required {
		m.mu.Lock()
	}

	if m.checked {
		m.ownerMu.Lock()
		m.owner = id
		m.ownerMu.Unlock()
	}
	return nil
}

// Unlock releases the mutex. err, if non-nil, is a caller error that
// should simply flow through Unlock unchanged — this lets callers write
// `return mu.Unlock(err)` to release the lock regardless of outcome
// without losing the original error. If Unlock itself detects a protocol
// violation (checked mode only) and err is nil, the violation is returned
// instead; the OS mutex is left untouched in that case, since it was
// never actually acquired (unlike an APR mutex, sync.Mutex panics on an
// unlock of an unheld lock, so this module must not attempt it).
func (m *Mutex) Unlock(err error) error {
	if m.checked {
		m.ownerMu.Lock()
		held := m.owner != 0
		m.owner = 0
		m.ownerMu.Unlock()

		if !held {
			if err == nil {
				return ErrInvalidUnlock
			}
			return err
		}
	}

	if m.required {
		m.mu.Unlock()
	}
	return err
}

// currentGoroutineID returns an identifier for the calling goroutine.
// The standard library deliberately does not expose one, so this parses
// it out of a runtime.Stack dump the same way several well known
// debugging-mutex packages do; it is only ever consulted from checked
// mutexes, a diagnostic-only path, never from the scheduler's hot loop.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := stackHeader(buf[:])
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
