package vmmap

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/proc"
)

// RegionInfo describes one live mapping of a process.
type RegionInfo = mm.RegionInfo

// MemoryStats holds the cumulative mapping counters of one process.
type MemoryStats = mm.Stats

// Process is a handle on a user process. Methods of one process must not be
// called concurrently; distinct processes may run on distinct goroutines.
type Process struct {
	k   *Kernel
	p   *proc.Process
	log *Logger
}

// PID returns the process id.
func (p *Process) PID() int { return p.p.PID() }

// ParentPID returns the pid of the parent, or 0 for the root process.
func (p *Process) ParentPID() int {
	if pp := p.p.Parent(); pp != nil {
		return pp.PID()
	}
	return 0
}

// Killed reports whether the process has been marked for termination.
func (p *Process) Killed() bool { return p.p.Killed() }

// Exited reports whether the process has terminated.
func (p *Process) Exited() bool { return p.p.Exited() }

// ExitStatus returns the status passed to Exit, or -1 if the kernel
// terminated the process.
func (p *Process) ExitStatus() int { return p.p.ExitStatus() }

// Open opens path with the given mode and returns the lowest free
// descriptor.
func (p *Process) Open(path string, mode int) (int, error) {
	done, err := p.enter()
	if err != nil {
		return -1, err
	}
	defer done()
	return p.p.Open(path, mode)
}

// Close closes fd. Mappings of the file stay valid.
func (p *Process) Close(fd int) error {
	done, err := p.enter()
	if err != nil {
		return err
	}
	defer done()
	return p.p.Close(fd)
}

// Mmap maps length bytes of the file open on fd into the mapping window
// and returns the start address. No page is touched until it is accessed.
// The kernel picks the address: addr and offset must be 0.
func (p *Process) Mmap(ctx context.Context, addr uint64, length int64, prot, flags, fd int, offset int64) (uint64, error) {
	done, err := p.enter()
	if err != nil {
		return 0, err
	}
	defer done()

	args := mm.MmapArgs{
		Addr:   addr,
		Length: length,
		Prot:   prot,
		Flags:  flags,
		Offset: offset,
	}
	if f, ferr := p.p.File(fd); ferr == nil {
		args.File = f
	}

	va, err := p.p.MemoryManager().Mmap(ctx, args)
	p.log.LogMmap(ctx, va, length, prot, flags, err)
	if err != nil {
		return 0, err
	}
	return va, nil
}

// Munmap unmaps the pages of [addr, addr+length) that belong to the region
// holding addr. Dirty pages of writable shared mappings are written back.
func (p *Process) Munmap(ctx context.Context, addr uint64, length int64) error {
	done, err := p.enter()
	if err != nil {
		return err
	}
	defer done()

	err = p.p.MemoryManager().Munmap(ctx, addr, length)
	p.log.LogMunmap(ctx, addr, length, err)
	return err
}

// Load reads n bytes of user memory at va. Pages are faulted in on first
// touch. A fault that cannot be resolved terminates the process and
// returns an error matching ErrKilled and the fault cause.
func (p *Process) Load(ctx context.Context, va uint64, n int) ([]byte, error) {
	done, err := p.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	data, err := p.p.Load(ctx, va, n)
	if err != nil {
		p.logFault(ctx, err)
		return nil, err
	}
	return data, nil
}

// Store writes data to user memory at va. Faults are handled as in Load.
func (p *Process) Store(ctx context.Context, va uint64, data []byte) error {
	done, err := p.enter()
	if err != nil {
		return err
	}
	defer done()

	if err := p.p.Store(ctx, va, data); err != nil {
		p.logFault(ctx, err)
		return err
	}
	return nil
}

// Fork creates a child with copies of the open files and mappings. The
// child's pages are faulted in again on first touch.
func (p *Process) Fork(ctx context.Context) (*Process, error) {
	done, err := p.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	pid, err := p.p.Fork(ctx)
	if err != nil {
		return nil, err
	}
	child, err := p.k.table.Lookup(pid)
	if err != nil {
		return nil, err
	}
	return p.k.wrap(child), nil
}

// Exit terminates the process with status. Shared writable mappings are
// written back before the address space is freed.
func (p *Process) Exit(ctx context.Context, status int) {
	done, err := p.enter()
	if err != nil {
		return
	}
	defer done()
	p.p.Exit(ctx, status)
}

// Kill marks pid for termination at its next trap.
func (p *Process) Kill(pid int) error {
	done, err := p.enter()
	if err != nil {
		return err
	}
	defer done()
	return p.p.Kill(pid)
}

// Syscall performs system call num from user mode and returns a0.
// A failed call returns SyscallFail and a nil error; the error is only
// non-nil when the process was terminated.
func (p *Process) Syscall(ctx context.Context, num uint64, args ...uint64) (uint64, error) {
	done, err := p.enter()
	if err != nil {
		return 0, err
	}
	defer done()
	return p.p.Ecall(ctx, num, args...)
}

// Tick delivers a timer interrupt and reports whether the process should
// yield.
func (p *Process) Tick(ctx context.Context) (bool, error) {
	done, err := p.enter()
	if err != nil {
		return false, err
	}
	defer done()
	return p.p.Tick(ctx)
}

// VMPrint writes the page table, vmprint style.
func (p *Process) VMPrint(w io.Writer) error {
	done, err := p.enter()
	if err != nil {
		return err
	}
	defer done()
	if p.p.Exited() {
		return ErrKilled
	}
	return p.p.MemoryManager().Dump(w)
}

// Regions lists the live mappings in slot order.
func (p *Process) Regions() []RegionInfo {
	return p.p.MemoryManager().Regions()
}

// MemoryStats returns the mapping counters of the process.
func (p *Process) MemoryStats() MemoryStats {
	return p.p.MemoryManager().Stats()
}

func (p *Process) enter() (func(), error) {
	done, err := p.k.enter()
	if err != nil {
		return nil, err
	}
	if p.p.Exited() {
		done()
		return nil, ErrKilled
	}
	return done, nil
}

func (p *Process) logFault(ctx context.Context, err error) {
	var fe *FaultError
	if errors.As(err, &fe) {
		p.log.LogFault(ctx, fe.Addr, fe.Access.String(), fe.Err)
	}
}
