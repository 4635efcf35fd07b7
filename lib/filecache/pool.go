package filecache

import (
	"context"
	"hash/fnv"
	"os"

	"github.com/apache/subversion-sub001/lib/syncutil"
	"golang.org/x/sync/errgroup"
)

// handle is one process-level OS file descriptor, loaned out to whichever
// File currently needs it. next/prev thread it onto exactly one of the
// pool's two LRU lists (open or unused) while it is not in use; a handle
// that is currently on loan is on neither list.
type handle struct {
	file *os.File

	name        string
	reopenFlags OpenFlags
	nameHash    uint32
	position    int64

	idx        int
	next, prev *handle
}

// Pool is a bounded cache of open OS file descriptors shared by many
// logical Files. Construct one with NewPool and pass it to Open; most
// programs need exactly one Pool, but nothing in this package assumes a
// process-wide singleton, so embedders that want isolation (per-test,
// per-request) can create as many as they like.
type Pool struct {
	mu *syncutil.Mutex

	handles []*handle

	firstOpen, lastOpen *handle
	firstUnused         *handle

	capacity             int
	openCount, usedCount int
	unusedCount          int
}

// DefaultCapacity is the number of OS handles a Pool created with
// NewPool(0) will allow, matching Subversion's DEFAULT_CAPACITY.
const DefaultCapacity = 16

// NewPool creates a handle pool that will keep at most capacity OS
// descriptors open at once. capacity == 0 means DefaultCapacity;
// negative values are clamped to 0 (the pool still functions, cycling a
// single handle per request, exactly as spec'd for max == 0).
func NewPool(capacity int) *Pool {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Pool{
		mu:       syncutil.NewMutex(true, false),
		capacity: capacity,
	}
}

// PoolStats is a read-only snapshot of a Pool's bookkeeping, useful for
// tests and for embedders that want a liveness signal.
type PoolStats struct {
	Capacity    int
	OpenCount   int
	UsedCount   int
	UnusedCount int
}

// Stats returns a snapshot of the pool's current counters.
func (p *Pool) Stats() PoolStats {
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()
	return PoolStats{
		Capacity:    p.capacity,
		OpenCount:   p.openCount,
		UsedCount:   p.usedCount,
		UnusedCount: p.unusedCount,
	}
}

// MaxSharedHandles returns the pool's current capacity.
func (p *Pool) MaxSharedHandles() int {
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()
	return p.capacity
}

// SetMaxSharedHandles changes the pool's capacity. While more handles are
// open than the new capacity allows, idle ones are closed immediately,
// oldest first; handles currently in use stay open until released.
func (p *Pool) SetMaxSharedHandles(n int) error {
	if n < 0 {
		n = 0
	}
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()

	p.capacity = n
	for p.openCount > p.capacity && p.lastOpen != nil {
		h := p.reclaimOpenLocked()
		_ = h.file.Close()
		p.openCount--
	}
	return nil
}

func nameHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// acquire hands the caller a descriptor suitable for f, creating or
// recycling one as needed per the table in §4.2.2: quick hint match,
// linear open-LRU scan, then (by capacity/unused availability) allocate
// fresh, recycle an unused slot, or reclaim the oldest open handle.
func (p *Pool) acquire(f *File) (*handle, error) {
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()

	if h := p.matchLocked(f); h != nil {
		p.usedCount++
		f.handleHint = h.idx
		f.reopenFlags = h.reopenFlags
		return h, nil
	}

	h, err := p.createLocked(f)
	if err != nil {
		return nil, err
	}
	p.usedCount++
	f.handleHint = h.idx
	f.reopenFlags = h.reopenFlags
	return h, nil
}

// matchLocked implements the quick hint check followed by the open-LRU
// scan. Caller holds p.mu.
func (p *Pool) matchLocked(f *File) *handle {
	if f.handleHint >= 0 && f.handleHint < len(p.handles) {
		if h := p.handles[f.handleHint]; h != nil && handleMatches(h, f) {
			p.unlinkOpenLocked(h)
			p.handles[h.idx] = nil
			return h
		}
	}
	for h := p.firstOpen; h != nil; h = h.next {
		if handleMatches(h, f) {
			p.unlinkOpenLocked(h)
			p.handles[h.idx] = nil
			return h
		}
	}
	return nil
}

func handleMatches(h *handle, f *File) bool {
	return h.nameHash == f.nameHash &&
		h.reopenFlags == reopenFlagsFor(f.reopenFlags) &&
		h.name == f.name
}

// reopenFlagsFor strips a file's flags down to the subset a shared
// handle actually needs to be reopened with: read/write access only.
func reopenFlagsFor(f OpenFlags) OpenFlags {
	return f & (OpenRead | OpenWrite)
}

// createLocked allocates or reclaims a handle per the §4.2.2 table, then
// opens (or re-opens) the OS file for f. Caller holds p.mu.
func (p *Pool) createLocked(f *File) (*handle, error) {
	var h *handle
	switch {
	case p.capacity <= p.openCount:
		if p.usedCount == p.openCount {
			h = p.allocLocked()
		} else {
			h = p.reclaimOpenLocked()
			_ = h.file.Close()
		}
	default:
		if p.unusedCount == 0 {
			h = p.allocLocked()
		} else {
			h = p.recycleUnusedLocked()
		}
	}

	// f.reopenFlags holds whatever the caller asked for the first time
	// this file is touched (so CREATE/TRUNCATE/EXCL take effect exactly
	// once), and the read/write-only subset every later reopen uses once
	// acquire has mirrored it back below. Opening with f.reopenFlags as-is
	// is therefore correct on both the first call and every subsequent
	// reopen after an eviction.
	osFile, err := os.OpenFile(f.name, f.reopenFlags.osFlags(), 0o666)
	if err != nil {
		return nil, pathError("open", f.name, err)
	}

	h.file = osFile
	h.name = f.name
	h.nameHash = f.nameHash
	h.reopenFlags = reopenFlagsFor(f.reopenFlags)
	h.position = 0
	return h, nil
}

func (p *Pool) allocLocked() *handle {
	h := &handle{idx: len(p.handles)}
	p.handles = append(p.handles, nil)
	p.openCount++
	return h
}

// reclaimOpenLocked pops the least-recently-used open handle (closing its
// backing descriptor is the caller's job) and frees its slot.
func (p *Pool) reclaimOpenLocked() *handle {
	h := p.lastOpen
	p.lastOpen = h.prev
	if p.lastOpen != nil {
		p.lastOpen.next = nil
	} else {
		p.firstOpen = nil
	}
	h.prev, h.next = nil, nil
	p.handles[h.idx] = nil
	return h
}

func (p *Pool) recycleUnusedLocked() *handle {
	h := p.firstUnused
	p.firstUnused = h.next
	h.next = nil
	p.openCount++
	p.unusedCount--
	return h
}

func (p *Pool) unlinkOpenLocked(h *handle) {
	if h.next != nil {
		h.next.prev = h.prev
	} else {
		p.lastOpen = h.prev
	}
	if h.prev != nil {
		h.prev.next = h.next
	} else {
		p.firstOpen = h.next
	}
	h.prev, h.next = nil, nil
}

// release returns h to the pool. keepOpen is the caller's hint that the
// descriptor is likely to be reused soon (e.g. sequential I/O); it is
// overridden when the pool is already over capacity.
func (p *Pool) release(h *handle, keepOpen bool) {
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()

	p.usedCount--
	if !keepOpen || p.capacity <= p.usedCount {
		p.closeToUnusedLocked(h)
		return
	}

	h.next = p.firstOpen
	if p.firstOpen != nil {
		p.firstOpen.prev = h
	} else {
		p.lastOpen = h
	}
	p.firstOpen = h
	p.handles[h.idx] = h
}

func (p *Pool) closeToUnusedLocked(h *handle) {
	_ = h.file.Close()
	h.next = p.firstUnused
	p.firstUnused = h
	p.unusedCount++
	p.openCount--
}

// flushIdleConcurrency bounds how many open-but-unused handles
// FlushIdle closes at once; closing a descriptor is a lone syscall
// with nothing shared to race on, so a handful running at once is
// plenty.
const flushIdleConcurrency = 4

// FlushIdle closes every handle on the pool's open LRU - descriptors
// a File kept open on the chance of reuse (release with keepOpen) but
// that nobody has touched since - giving the underlying OS
// descriptors back. It is meant to be driven by a caller's own idle
// timer or shutdown path; the pool never schedules this itself.
func (p *Pool) FlushIdle(ctx context.Context) error {
	_ = p.mu.Lock()
	var toClose []*handle
	for h := p.firstOpen; h != nil; h = h.next {
		toClose = append(toClose, h)
		p.handles[h.idx] = nil
	}
	p.firstOpen, p.lastOpen = nil, nil
	p.openCount -= len(toClose)
	p.mu.Unlock(nil)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(flushIdleConcurrency)
	for _, h := range toClose {
		h := h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return h.file.Close()
		})
	}
	return g.Wait()
}

// closeFile drops any handle the pool currently associates with f,
// without handing it out to anyone — used by File.Close to make sure a
// lingering idle handle for a now-closed file is actually released.
func (p *Pool) closeFile(f *File) {
	_ = p.mu.Lock()
	defer func() { _ = p.mu.Unlock(nil) }()

	h := p.matchLocked(f)
	if h == nil {
		return
	}
	p.closeToUnusedLocked(h)
}
