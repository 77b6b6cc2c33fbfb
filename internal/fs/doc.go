// Package fs provides the disk the simulated kernel's inodes live on.
//
// The package defines two key interfaces:
//
//   - [File]: an open inode with positional read/write and sync
//   - [FileSystem]: open, stat and remove by path
//
// # Implementations
//
//   - [LocalFS]: the host file system, optionally rooted at a directory
//   - [FaultyFS]: test utility for fault injection (simulate disk errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR, 0)
//
// Tests can inject [FaultyFS] to make reads or writeback fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("data.bin", fs.Fault{FailOnRead: true})
//
// # Design Notes
//
// Operations take no context.Context. Positional I/O on a local disk is
// short and not interruptible at the syscall level; throttling happens one
// layer up in the memory manager.
package fs
