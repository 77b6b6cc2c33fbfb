// Package proc implements the process table and the software MMU that
// turns user loads and stores into page-fault traps.
package proc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/trap"
)

// State is the lifecycle state of a process.
type State int

const (
	Unused State = iota
	Runnable
	Zombie
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Zombie:
		return "zombie"
	default:
		return "unused"
	}
}

// Process is one user process. Its frame, files and user accesses belong to
// the goroutine running it; killed, state and parent may be touched from
// anywhere.
type Process struct {
	table *Table
	pid   int
	frame trap.Frame
	mm    *mm.MemoryManager
	files [NOFILE]*file.File

	mu        sync.Mutex
	parent    *Process
	state     State
	killed    bool
	xstate    int
	lastFault error
}

// PID returns the process id.
func (p *Process) PID() int { return p.pid }

// Frame returns the saved user registers.
func (p *Process) Frame() *trap.Frame { return &p.frame }

// MemoryManager returns the process's mapping state.
func (p *Process) MemoryManager() *mm.MemoryManager { return p.mm }

// Parent returns the parent process, nil for the root.
func (p *Process) Parent() *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent
}

// State returns the lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ExitStatus returns the status passed to Exit.
func (p *Process) ExitStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xstate
}

// Killed reports whether the process has been killed.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// SetKilled marks the process killed.
func (p *Process) SetKilled() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
}

// Uptime returns clock ticks since boot.
func (p *Process) Uptime() uint64 { return p.table.dispatcher.Clock().Ticks() }

// Console returns the kernel console.
func (p *Process) Console() io.Writer { return p.table.console }

// Kill marks another process killed.
func (p *Process) Kill(pid int) error { return p.table.Kill(pid) }

// Fault resolves a page fault. Any process with a live parent may inherit
// the parent's resident shared pages; the root process has none.
func (p *Process) Fault(ctx context.Context, addr uint64, at mm.AccessType) error {
	var parent *mm.MemoryManager
	if pp := p.Parent(); pp != nil {
		parent = pp.mm
	}
	err := p.mm.HandleFault(ctx, parent, addr, at)
	if err != nil {
		p.mu.Lock()
		p.lastFault = err
		p.mu.Unlock()
	}
	return err
}

// Syscall runs the system call in the frame.
func (p *Process) Syscall(ctx context.Context) {
	p.table.syscalls.Dispatch(ctx, p)
}

// Open opens name and returns the lowest free descriptor.
func (p *Process) Open(name string, mode int) (int, error) {
	f, err := file.Open(p.table.fsys, name, mode)
	if err != nil {
		return -1, err
	}
	fd, err := p.Install(f)
	if err != nil {
		_ = f.Close()
		return -1, err
	}
	return fd, nil
}

// Install places f in the lowest free descriptor slot.
func (p *Process) Install(f *file.File) (int, error) {
	for fd := range p.files {
		if p.files[fd] == nil {
			p.files[fd] = f
			return fd, nil
		}
	}
	return -1, ErrTooManyFiles
}

// File returns the open file behind fd.
func (p *Process) File(fd int) (*file.File, error) {
	if fd < 0 || fd >= NOFILE || p.files[fd] == nil {
		return nil, fmt.Errorf("%w: %d", ErrBadFd, fd)
	}
	return p.files[fd], nil
}

// Close closes fd. Mappings of the file keep their own reference.
func (p *Process) Close(fd int) error {
	f, err := p.File(fd)
	if err != nil {
		return err
	}
	p.files[fd] = nil
	return f.Close()
}

// Fork creates a child sharing the parent's open files and a copy of its
// mappings. The child's a0 is 0.
func (p *Process) Fork(_ context.Context) (int, error) {
	child, err := p.table.alloc(p)
	if err != nil {
		return -1, err
	}

	child.frame = p.frame
	child.frame.A[0] = 0
	for fd, f := range p.files {
		if f != nil {
			child.files[fd] = f.Dup()
		}
	}
	if err := p.mm.Fork(child.mm); err != nil {
		child.Exit(context.Background(), -1)
		return -1, err
	}

	if p.table.logger != nil {
		p.table.logger.Debug("fork", "pid", p.pid, "child", child.pid)
	}
	return child.pid, nil
}

// Exit tears the process down: files are closed, every mapping is
// unmapped with writeback, the page table is freed and children are handed
// to the root. Calling Exit on an exited process does nothing.
func (p *Process) Exit(ctx context.Context, status int) {
	p.mu.Lock()
	if p.state != Runnable {
		p.mu.Unlock()
		return
	}
	p.state = Zombie
	p.xstate = status
	p.mu.Unlock()

	for fd, f := range p.files {
		if f != nil {
			p.files[fd] = nil
			_ = f.Close()
		}
	}

	err := p.mm.Release(ctx)
	if err != nil && p.table.logger != nil {
		p.table.logger.Warn("exit teardown", "pid", p.pid, "error", err)
	}
	p.mm.Destroy()
	p.table.remove(p)

	if p.table.logger != nil {
		p.table.logger.Debug("exit", "pid", p.pid, "status", status)
	}
}

// Exited reports whether Exit has run.
func (p *Process) Exited() bool { return p.State() != Runnable }

// Trap delivers a trap with the given cause to the process. A trap that
// ends in Exit terminates the process and returns ErrKilled.
func (p *Process) Trap(ctx context.Context, scause, stval uint64) (trap.Outcome, error) {
	if p.Exited() {
		return trap.Outcome{Exit: true}, ErrKilled
	}
	p.frame.Scause = scause
	p.frame.Stval = stval

	out := p.table.dispatcher.UserTrap(ctx, p)
	if out.Exit {
		p.Exit(ctx, -1)
		return out, p.killErr()
	}
	if p.Exited() {
		// exit(2) ran inside the trap.
		return trap.Outcome{Exit: true}, nil
	}
	return out, nil
}

func (p *Process) killErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastFault != nil {
		return fmt.Errorf("%w: %w", ErrKilled, p.lastFault)
	}
	return ErrKilled
}

// Ecall performs system call num with args from user mode and returns a0.
func (p *Process) Ecall(ctx context.Context, num uint64, args ...uint64) (uint64, error) {
	if len(args) > 6 {
		return 0, fmt.Errorf("ecall: %d arguments", len(args))
	}
	p.frame.A = [8]uint64{}
	copy(p.frame.A[:], args)
	p.frame.A[7] = num

	if _, err := p.Trap(ctx, arch.CauseUserEcall, 0); err != nil {
		return 0, err
	}
	return p.frame.A[0], nil
}

// Tick delivers a timer interrupt and reports whether the process should
// yield.
func (p *Process) Tick(ctx context.Context) (bool, error) {
	out, err := p.Trap(ctx, arch.CauseSupervisorSoftware, 0)
	return out.Yield, err
}

// Load reads n bytes of user memory at va, faulting pages in as needed.
func (p *Process) Load(ctx context.Context, va uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	err := p.access(ctx, va, n, mm.Load, func(page []byte, done int) {
		copy(buf[done:], page)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Store writes data to user memory at va, faulting pages in as needed.
func (p *Process) Store(ctx context.Context, va uint64, data []byte) error {
	return p.access(ctx, va, len(data), mm.Store, func(page []byte, done int) {
		copy(page, data[done:])
	})
}

// access walks [va, va+n) page by page. A page whose entry is missing or
// lacks the permission raises a page fault and is retried once the trap
// returns.
func (p *Process) access(ctx context.Context, va uint64, n int, at mm.AccessType, fn func(page []byte, done int)) error {
	cause := arch.CauseLoadPageFault
	if at == mm.Store {
		cause = arch.CauseStorePageFault
	}

	mem := p.table.mem
	for done := 0; done < n; {
		if p.Exited() {
			return ErrKilled
		}
		a := va + uint64(done) //nolint:gosec // done >= 0
		page0 := arch.PageRoundDown(a)
		off := int(a - page0) //nolint:gosec // < PageSize
		chunk := min(n-done, arch.PageSize-off)

		pa, ok := p.translate(page0, at)
		if !ok {
			if _, err := p.Trap(ctx, cause, a); err != nil {
				return err
			}
			continue
		}
		fn(mem.Page(pa)[off:off+chunk], done)
		done += chunk
	}
	return nil
}

func (p *Process) translate(va uint64, at mm.AccessType) (uint64, bool) {
	pte, ok := p.mm.PageTable().Lookup(va)
	if !ok || pte&arch.PTEUser == 0 {
		return 0, false
	}
	need := uint64(arch.PTERead)
	if at == mm.Store {
		need = arch.PTEWrite
	}
	if pte&need == 0 {
		return 0, false
	}
	return arch.PTE2PA(pte), true
}
