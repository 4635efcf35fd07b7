package subst

import "github.com/apache/subversion-sub001/lib/filecache"

// DetectEOL reads forward from f's current position far enough to
// identify the first line-ending sequence, then restores the original
// position. It returns "", "\n", "\r\n", or "\r"; an empty string means
// the file ended before any line ending was found.
func DetectEOL(f *filecache.File) (string, error) {
	start := f.Position()
	defer func() { _ = f.Seek(start) }()

	for {
		c, err := f.Getc()
		if err == filecache.ErrEOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}

		switch c {
		case '\n':
			return "\n", nil
		case '\r':
			next, err := f.Getc()
			if err == filecache.ErrEOF {
				return "\r", nil
			}
			if err != nil {
				return "", err
			}
			if next == '\n' {
				return "\r\n", nil
			}
			return "\r", nil
		}
	}
}
