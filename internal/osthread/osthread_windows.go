//go:build windows

package osthread

import "golang.org/x/sys/windows"

// CurrentID returns the Win32 thread id of the calling thread.
func CurrentID() uint32 {
	return windows.GetCurrentThreadId()
}
