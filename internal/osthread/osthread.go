// Package osthread identifies the operating-system thread a producer runs on.
// Goroutines migrate between threads unless the caller holds
// runtime.LockOSThread, so identifiers are only stable under that lock.
package osthread
