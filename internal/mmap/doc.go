// Package mmap obtains host memory outside the Go heap.
//
// The simulated machine's physical RAM is one large anonymous mapping. Keeping
// it off-heap gives frames stable addresses and lets a reset hand whole ranges
// back to the host with madvise.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE, madvise(2)
//   - Windows: VirtualAlloc (advice is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must not touch
// Bytes() after Close returns.
package mmap
