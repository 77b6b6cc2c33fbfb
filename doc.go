// Package vmmap simulates a small RISC-V Unix kernel whose processes can map
// files into their address space with mmap and munmap.
//
// A Kernel owns simulated physical RAM, a process table and a root process.
// Mappings are lazy: Mmap only records a region in the mapping window below
// the trapframe, and each page is read from its file on the first access
// that faults on it. Shared writable pages are written back on Munmap and
// on Exit. A child created by Fork inherits its parent's regions; when the
// parent already holds a shared page, the child copies it instead of
// reading the file again.
//
// # Quick Start
//
//	k, _ := vmmap.New(vmmap.WithRootDir("./data"))
//	defer k.Close()
//
//	ctx := context.Background()
//	p := k.Init()
//	fd, _ := p.Open("notes.txt", vmmap.ORdWr)
//	addr, _ := p.Mmap(ctx, 0, 8192, vmmap.ProtRead|vmmap.ProtWrite, vmmap.MapShared, fd, 0)
//	_ = p.Store(ctx, addr, []byte("hello"))
//	_ = p.Munmap(ctx, addr, 8192) // "hello" is now in notes.txt
//
// # Limits
//
// A process holds at most 16 live mappings of at most 64 pages each, inside
// a window of 1024 pages. A page fault that cannot be resolved terminates
// the faulting process only; its operations then return ErrKilled.
//
// # Configuration
//
// Settings come from functional options or from a YAML file:
//
//	cfg, _ := vmmap.LoadConfig("kernel.yaml")
//	k, _ := vmmap.New(vmmap.WithConfig(cfg))
package vmmap
