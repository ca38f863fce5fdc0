//go:build linux

package osthread

import "golang.org/x/sys/unix"

// CurrentID returns the kernel thread id of the calling thread.
func CurrentID() uint32 {
	return uint32(unix.Gettid())
}
