//go:build !linux && !windows

package osthread

import "os"

// CurrentID falls back to the process id where no portable thread id exists.
func CurrentID() uint32 {
	return uint32(os.Getpid())
}
