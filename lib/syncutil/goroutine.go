package syncutil

import "runtime"

// stackHeader writes the first line of the calling goroutine's stack
// trace ("goroutine 123 [running]:") into buf and returns how many bytes
// were written.
func stackHeader(buf []byte) int {
	n := runtime.Stack(buf, false)
	for i, b := range buf[:n] {
		if b == '\n' {
			return i
		}
	}
	return n
}
