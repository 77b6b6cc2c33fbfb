// Package mm implements memory-mapped files for one address space.
//
// A MemoryManager pairs a page table with a region arena and offers the
// three mapping operations of the kernel:
//
//   - Mmap validates a request and reserves a region in the mapping window
//     below the trapframe. No memory is touched.
//   - HandleFault resolves a load or store page fault inside a region by
//     mapping a fresh frame and filling it from the file, or, for a shared
//     region of a forked child, by copying the parent's resident page.
//   - Munmap tears down a run of blocks, writing modified shared pages back
//     to the file first, and releases the region once it is empty.
//
// Fork and Release extend these to process creation and exit.
package mm
