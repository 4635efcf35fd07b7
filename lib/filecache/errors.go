package filecache

import "github.com/pkg/errors"

// ErrNoReadAccess is returned by Read-family calls on a File opened
// without OpenRead.
var ErrNoReadAccess = errors.New("filecache: file has no read access")

// ErrNoWriteAccess is returned by Write-family calls on a File opened
// without OpenWrite.
var ErrNoWriteAccess = errors.New("filecache: file has no write access")

// ErrEOF is returned by the no-count-out read calls (Getc, ReadFull) when
// they run past the end of the file. Callers that pass their own
// count-out (Read) never see this; they observe a short count and
// hitEOF == true instead.
var ErrEOF = errors.New("filecache: end of file")

// ErrIncompleteRead is the error value for an internal buffer refill that
// returns fewer bytes than the file's recorded size implies. No code path
// in this package returns it: a short refill is taken as the end of the
// file, and the recorded size is set from it.
var ErrIncompleteRead = errors.New("filecache: incomplete read")

// errFileClosed guards every File method against use after Close.
var errFileClosed = errors.New("filecache: file is closed")

// pathError wraps err with name for user-visible diagnostics, the way
// Subversion's file cache reports failures tagged with the file's
// local-style path.
func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "filecache: %s %q", op, name)
}
