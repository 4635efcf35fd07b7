package filecache

import (
	"fmt"
	"io"
	"sync"
)

// DefaultBufferSize is the buffer size Open uses when the caller passes 0.
const DefaultBufferSize = 4096

// invalidSize marks a File whose on-disk length has not yet been
// discovered.
const invalidSize int64 = -1

// File is a logical, buffered view onto a path. It borrows a *handle
// from its Pool for the duration of each actual read, write, or seek and
// otherwise holds no OS resources, so an arbitrary number of Files can
// be "open" against a Pool of bounded capacity.
//
// A File is safe for concurrent use; all public methods serialize
// through an internal mutex the way a single vfscache Item serializes
// access to its own state while sharing the process-wide handle budget.
type File struct {
	pool *Pool

	mu sync.Mutex

	name        string
	nameHash    uint32
	accessFlags OpenFlags
	reopenFlags OpenFlags
	handleHint  int

	bufferSize int
	buffers    []*buffer

	position int64
	size     int64

	closed bool
}

// Open creates a logical File backed by p. bufferSize must be a power of
// two (0 selects DefaultBufferSize); bufferCount selects how many
// buffer-size-aligned windows the file keeps resident (0 selects
// DefaultBufferCount). If deferCreation is false the OS file is opened
// and immediately released to verify it exists (and, for CREATE, that it
// can be created) before Open returns.
func (p *Pool) Open(name string, flags OpenFlags, bufferSize, bufferCount int, deferCreation bool) (*File, error) {
	if err := flags.validate(); err != nil {
		return nil, err
	}
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	if bufferSize <= 0 || bufferSize&(bufferSize-1) != 0 {
		return nil, fmt.Errorf("filecache: buffer_size %d is not a power of two", bufferSize)
	}
	if bufferCount <= 0 {
		bufferCount = DefaultBufferCount
	}

	f := &File{
		pool:        p,
		name:        name,
		nameHash:    nameHash(name),
		accessFlags: flags & (OpenRead | OpenWrite),
		reopenFlags: flags,
		handleHint:  -1,
		bufferSize:  bufferSize,
		size:        invalidSize,
		buffers:     make([]*buffer, bufferCount),
	}
	for i := range f.buffers {
		f.buffers[i] = newBuffer(bufferSize)
	}
	if flags.has(OpenCreate) || flags.has(OpenTruncate) {
		f.size = 0
	}

	if !deferCreation {
		h, err := f.acquireHandle()
		if err != nil {
			return nil, err
		}
		f.releaseHandle(h, false)
	}
	return f, nil
}

func (f *File) acquireHandle() (*handle, error) { return f.pool.acquire(f) }
func (f *File) releaseHandle(h *handle, keepOpen bool) { f.pool.release(h, keepOpen) }

func seekHandle(h *handle, offset int64) error {
	if h.position == offset {
		return nil
	}
	if _, err := h.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	h.position = offset
	return nil
}

// Close flushes dirty buffers, releases any handle the pool holds for
// this file, and marks it closed. Close is idempotent: a second call is
// a no-op, mirroring the original pool-cleanup-hook contract without
// needing Go finalizers.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.accessFlags.has(OpenWrite) {
		err = f.flushAllLocked()
	}
	f.pool.closeFile(f)
	if err != nil {
		return pathError("close", f.name, err)
	}
	return nil
}

func (f *File) flushAllLocked() error {
	var h *handle
	var err error
	for _, b := range f.buffers {
		if !b.modified || b.used == 0 {
			continue
		}
		if h == nil {
			var aerr error
			h, aerr = f.acquireHandle()
			if aerr != nil {
				return aerr
			}
		}
		if ferr := f.flushBufferLocked(h, b); ferr != nil && err == nil {
			err = ferr
		}
	}
	if h != nil {
		f.releaseHandle(h, false)
	}
	return err
}

func (f *File) flushBufferLocked(h *handle, b *buffer) error {
	if err := seekHandle(h, b.startOffset); err != nil {
		return pathError("write", f.name, err)
	}
	n, err := h.file.Write(b.data[:b.used])
	h.position += int64(n)
	if err != nil {
		return pathError("write", f.name, err)
	}
	b.modified = false
	return nil
}

// bufferAt returns the buffer resident at the given aligned offset
// without disturbing MRU order, or nil.
func (f *File) bufferAt(aligned int64) *buffer {
	for _, b := range f.buffers {
		if b.startOffset == aligned {
			return b
		}
	}
	return nil
}

// loadBufferLocked returns the buffer covering aligned, loading it from
// disk (evicting the LRU-oldest buffer, flushing it first if dirty) on a
// cache miss.
func (f *File) loadBufferLocked(aligned int64) (*buffer, error) {
	if b := f.findBuffer(aligned); b != nil {
		return b, nil
	}

	last := len(f.buffers) - 1
	b := f.buffers[last]

	h, err := f.acquireHandle()
	if err != nil {
		return nil, err
	}
	defer f.releaseHandle(h, true)

	if b.modified && b.used > 0 {
		if err := f.flushBufferLocked(h, b); err != nil {
			return nil, err
		}
	}

	if !f.accessFlags.has(OpenRead) && f.size != invalidSize && aligned >= f.size {
		// A write-only handle cannot be read from, and a block at or
		// past the known end of file has nothing on disk to read.
		b.startOffset = aligned
		b.used = 0
		b.modified = false
		return f.moveToFront(last), nil
	}

	if err := seekHandle(h, aligned); err != nil {
		return nil, pathError("read", f.name, err)
	}
	n, rerr := io.ReadFull(h.file, b.data)
	h.position += int64(n)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		return nil, pathError("read", f.name, rerr)
	}

	b.startOffset = aligned
	b.used = n
	b.modified = false
	if n < f.bufferSize {
		f.size = aligned + int64(n)
	}
	return f.moveToFront(last), nil
}

// readLocked copies up to len(dst) bytes starting at f.position into
// dst, without mutating f.position itself; callers advance position by
// the returned count. A short count with a nil error means EOF.
func (f *File) readLocked(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	start := f.position
	end := start + int64(len(dst))
	if f.alignedOffset(start) == f.alignedOffset(end-1) {
		return f.readSingleLocked(start, dst)
	}
	return f.readMultiLocked(start, dst)
}

func (f *File) readSingleLocked(pos int64, dst []byte) (int, error) {
	b, err := f.loadBufferLocked(f.alignedOffset(pos))
	if err != nil {
		return 0, err
	}
	within := int(pos - b.startOffset)
	avail := b.used - within
	if avail <= 0 {
		return 0, nil
	}
	n := len(dst)
	if n > avail {
		n = avail
	}
	copy(dst[:n], b.data[within:within+n])
	return n, nil
}

// readMultiLocked serves a read that spans more than one aligned block:
// resident blocks are copied directly; a run of consecutive, wholly
// requested, non-resident blocks is read from disk in one call straight
// into dst; a final partial block falls back to the buffered path so
// later small reads against it stay fast.
func (f *File) readMultiLocked(start int64, dst []byte) (int, error) {
	total := len(dst)
	requestEnd := start + int64(total)
	out := 0
	pos := start

	for out < total {
		aligned := f.alignedOffset(pos)

		if b := f.bufferAt(aligned); b != nil {
			f.promoteResident(b)
			within := int(pos - b.startOffset)
			avail := b.used - within
			if avail <= 0 {
				return out, nil
			}
			n := total - out
			if n > avail {
				n = avail
			}
			copy(dst[out:out+n], b.data[within:within+n])
			out += n
			pos += int64(n)
			continue
		}

		holeBlocks := 0
		for {
			probe := aligned + int64(holeBlocks)*int64(f.bufferSize)
			blockEnd := probe + int64(f.bufferSize)
			if blockEnd > requestEnd {
				break
			}
			if f.bufferAt(probe) != nil {
				break
			}
			holeBlocks++
		}

		if holeBlocks == 0 {
			b, err := f.loadBufferLocked(aligned)
			if err != nil {
				return out, err
			}
			within := int(pos - b.startOffset)
			avail := b.used - within
			if avail <= 0 {
				return out, nil
			}
			n := total - out
			if n > avail {
				n = avail
			}
			copy(dst[out:out+n], b.data[within:within+n])
			out += n
			pos += int64(n)
			continue
		}

		holeLen := int64(holeBlocks)*int64(f.bufferSize) - (pos - aligned)
		h, err := f.acquireHandle()
		if err != nil {
			return out, err
		}
		if err := seekHandle(h, pos); err != nil {
			f.releaseHandle(h, true)
			return out, pathError("read", f.name, err)
		}
		n, rerr := io.ReadFull(h.file, dst[out:out+int(holeLen)])
		h.position += int64(n)
		f.releaseHandle(h, true)
		out += n
		pos += int64(n)
		if rerr != nil {
			if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
				return out, nil
			}
			return out, pathError("read", f.name, rerr)
		}
	}
	return out, nil
}

func (f *File) promoteResident(b *buffer) {
	for i, cur := range f.buffers {
		if cur == b {
			f.moveToFront(i)
			return
		}
	}
}

// writeLocked mirrors readLocked for writes: returns the number of bytes
// accepted without mutating f.position.
func (f *File) writeLocked(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	start := f.position
	end := start + int64(len(src))
	if f.alignedOffset(start) == f.alignedOffset(end-1) {
		return f.writeSingleLocked(start, src)
	}
	return f.writeMultiLocked(start, src)
}

func (f *File) writeSingleLocked(pos int64, src []byte) (int, error) {
	b, err := f.loadBufferLocked(f.alignedOffset(pos))
	if err != nil {
		return 0, err
	}
	within := int(pos - b.startOffset)
	n := copy(b.data[within:], src)
	if within+n > b.used {
		b.used = within + n
	}
	b.modified = true
	return n, nil
}

func (f *File) writeMultiLocked(start int64, src []byte) (int, error) {
	total := len(src)
	requestEnd := start + int64(total)
	out := 0
	pos := start

	for out < total {
		aligned := f.alignedOffset(pos)

		if b := f.bufferAt(aligned); b != nil {
			f.promoteResident(b)
			within := int(pos - b.startOffset)
			n := copy(b.data[within:], src[out:])
			if within+n > b.used {
				b.used = within + n
			}
			b.modified = true
			out += n
			pos += int64(n)
			continue
		}

		holeBlocks := 0
		for {
			probe := aligned + int64(holeBlocks)*int64(f.bufferSize)
			blockEnd := probe + int64(f.bufferSize)
			if blockEnd > requestEnd {
				break
			}
			if f.bufferAt(probe) != nil {
				break
			}
			holeBlocks++
		}

		if holeBlocks == 0 {
			b, err := f.loadBufferLocked(aligned)
			if err != nil {
				return out, err
			}
			within := int(pos - b.startOffset)
			n := copy(b.data[within:], src[out:])
			if within+n > b.used {
				b.used = within + n
			}
			b.modified = true
			out += n
			pos += int64(n)
			continue
		}

		holeLen := int64(holeBlocks)*int64(f.bufferSize) - (pos - aligned)
		h, err := f.acquireHandle()
		if err != nil {
			return out, err
		}
		if err := seekHandle(h, pos); err != nil {
			f.releaseHandle(h, true)
			return out, pathError("write", f.name, err)
		}
		n, werr := h.file.Write(src[out : out+int(holeLen)])
		h.position += int64(n)
		f.releaseHandle(h, true)
		out += n
		pos += int64(n)
		if werr != nil {
			return out, pathError("write", f.name, werr)
		}
	}
	return out, nil
}

// Read fills dst and reports whether it ran past the end of the file.
// It never returns ErrEOF; a caller that wants an error on a short read
// should use ReadFull instead.
func (f *File) Read(dst []byte) (n int, hitEOF bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, false, errFileClosed
	}
	if !f.accessFlags.has(OpenRead) {
		return 0, false, ErrNoReadAccess
	}
	n, err = f.readLocked(dst)
	f.position += int64(n)
	if err != nil {
		return n, false, err
	}
	return n, n < len(dst), nil
}

// ReadFull fills dst entirely or returns ErrEOF, the no-count-out
// variant of Read.
func (f *File) ReadFull(dst []byte) error {
	n, hitEOF, err := f.Read(dst)
	if err != nil {
		return err
	}
	if hitEOF || n < len(dst) {
		return ErrEOF
	}
	return nil
}

// Write appends src at the current position, buffering it in memory
// until a flush (at Close, or when a dirty buffer is evicted) commits it
// to disk.
func (f *File) Write(src []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errFileClosed
	}
	if !f.accessFlags.has(OpenWrite) {
		return 0, ErrNoWriteAccess
	}
	n, err := f.writeLocked(src)
	f.position += int64(n)
	if f.size == invalidSize || f.position > f.size {
		f.size = f.position
	}
	return n, err
}

// Getc reads a single byte, taking the aligned buffer-0 fast path on the
// common sequential-access case.
func (f *File) Getc() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errFileClosed
	}
	if !f.accessFlags.has(OpenRead) {
		return 0, ErrNoReadAccess
	}

	if b := f.buffers[0]; b.startOffset == f.alignedOffset(f.position) {
		within := int(f.position - b.startOffset)
		if within < b.used {
			c := b.data[within]
			f.position++
			return c, nil
		}
	}

	var tmp [1]byte
	n, err := f.readLocked(tmp[:])
	f.position += int64(n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrEOF
	}
	return tmp[0], nil
}

// Putc writes a single byte, taking the aligned buffer-0 fast path on
// the common sequential-access case.
func (f *File) Putc(c byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFileClosed
	}
	if !f.accessFlags.has(OpenWrite) {
		return ErrNoWriteAccess
	}

	if b := f.buffers[0]; b.startOffset == f.alignedOffset(f.position) {
		within := int(f.position - b.startOffset)
		if within < f.bufferSize {
			b.data[within] = c
			if within+1 > b.used {
				b.used = within + 1
			}
			b.modified = true
			f.position++
			if f.position > f.size {
				f.size = f.position
			}
			return nil
		}
	}

	n, err := f.writeLocked([]byte{c})
	f.position += int64(n)
	if f.size == invalidSize || f.position > f.size {
		f.size = f.position
	}
	return err
}

// Seek repositions the file logically; it never touches the OS by
// itself, only the next Read/Write/Getc/Putc does.
func (f *File) Seek(pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFileClosed
	}
	if pos < 0 {
		return fmt.Errorf("filecache: negative seek position %d", pos)
	}
	f.position = pos
	return nil
}

// Position returns the current logical offset.
func (f *File) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Size returns the file's length, discovering it via Stat on first use
// if it was not already known from open flags or buffered I/O.
func (f *File) Size() (int64, error) {
	f.mu.Lock()
	if f.size != invalidSize {
		defer f.mu.Unlock()
		return f.size, nil
	}
	f.mu.Unlock()

	h, err := f.acquireHandle()
	if err != nil {
		return 0, err
	}
	info, err := h.file.Stat()
	f.releaseHandle(h, true)
	if err != nil {
		return 0, pathError("stat", f.name, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.size == invalidSize {
		f.size = info.Size()
	}
	return f.size, nil
}

// AtEOF reports whether the current position is at or past the file's
// end.
func (f *File) AtEOF() (bool, error) {
	size, err := f.Size()
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position >= size, nil
}

// Truncate shortens the file to the current position, discarding any
// buffered bytes beyond it.
func (f *File) Truncate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFileClosed
	}
	if !f.accessFlags.has(OpenWrite) {
		return ErrNoWriteAccess
	}

	h, err := f.acquireHandle()
	if err != nil {
		return err
	}
	newSize := f.position
	terr := h.file.Truncate(newSize)
	f.releaseHandle(h, true)
	if terr != nil {
		return pathError("truncate", f.name, terr)
	}
	f.size = newSize

	for _, b := range f.buffers {
		if b.startOffset == invalidOffset {
			continue
		}
		switch {
		case b.startOffset >= newSize:
			b.used = 0
		case b.end() > newSize:
			b.used = int(newSize - b.startOffset)
		}
	}
	return nil
}
