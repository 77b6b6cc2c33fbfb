package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/hupe1980/vmmap/internal/fs"
	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/pagetable"
	"github.com/hupe1980/vmmap/internal/phys"
	"github.com/hupe1980/vmmap/internal/syscall"
	"github.com/hupe1980/vmmap/internal/trap"
)

const (
	// NPROC is the default process table capacity.
	NPROC = 64
	// NOFILE is the number of descriptors per process.
	NOFILE = 16
	// RootPID is the pid of the first process.
	RootPID = 1
)

var (
	// ErrKilled is returned by user accesses of a process that was killed.
	ErrKilled = errors.New("process killed")
	// ErrNoProc is returned when the process table is full.
	ErrNoProc = errors.New("process table full")
	// ErrNoSuchProcess is returned for an unknown pid.
	ErrNoSuchProcess = errors.New("no such process")
	// ErrBadFd is returned for a descriptor that is not open.
	ErrBadFd = errors.New("bad file descriptor")
	// ErrTooManyFiles is returned when every descriptor slot is in use.
	ErrTooManyFiles = errors.New("too many open files")
)

// Table is the process table.
type Table struct {
	mu      sync.Mutex
	procs   map[int]*Process
	nextPID int
	max     int
	root    *Process

	mem        *phys.Memory
	dispatcher *trap.Dispatcher
	syscalls   *syscall.Table
	fsys       fs.FileSystem
	console    io.Writer
	logger     *slog.Logger
	mmOpts     []mm.Option
}

// Option defines a configuration option for the Table.
type Option func(*Table)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// WithMaxProcs sets the table capacity.
func WithMaxProcs(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.max = n
		}
	}
}

// WithFileSystem sets the file system files are opened on.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(t *Table) {
		if fsys != nil {
			t.fsys = fsys
		}
	}
}

// WithConsole sets where vmprint output goes.
func WithConsole(w io.Writer) Option {
	return func(t *Table) {
		if w != nil {
			t.console = w
		}
	}
}

// WithSyscalls replaces the system call table.
func WithSyscalls(s *syscall.Table) Option {
	return func(t *Table) {
		if s != nil {
			t.syscalls = s
		}
	}
}

// WithMemoryOptions passes opts to every process's MemoryManager.
func WithMemoryOptions(opts ...mm.Option) Option {
	return func(t *Table) {
		t.mmOpts = append(t.mmOpts, opts...)
	}
}

// NewTable creates a process table on mem and starts the root process.
func NewTable(mem *phys.Memory, d *trap.Dispatcher, opts ...Option) (*Table, error) {
	t := &Table{
		procs:      make(map[int]*Process),
		nextPID:    RootPID,
		max:        NPROC,
		mem:        mem,
		dispatcher: d,
		fsys:       fs.Default,
		console:    io.Discard,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.syscalls == nil {
		t.syscalls = syscall.NewTable(syscall.WithLogger(t.logger))
	}

	root, err := t.alloc(nil)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// Root returns the first process.
func (t *Table) Root() *Process { return t.root }

// Lookup returns the live process with pid.
func (t *Table) Lookup(pid int) (*Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}
	return p, nil
}

// Len returns the number of live processes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// PIDs returns the live pids in ascending order.
func (t *Table) PIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pids := make([]int, 0, len(t.procs))
	for pid := range t.procs {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

// Kill marks pid killed. It exits at its next trap.
func (t *Table) Kill(pid int) error {
	p, err := t.Lookup(pid)
	if err != nil {
		return err
	}
	p.SetKilled()
	if t.logger != nil {
		t.logger.Debug("kill", "pid", pid)
	}
	return nil
}

// Shutdown exits every process, youngest first, so children still find
// their parents while they tear down.
func (t *Table) Shutdown(ctx context.Context) {
	pids := t.PIDs()
	slices.Reverse(pids)
	for _, pid := range pids {
		if p, err := t.Lookup(pid); err == nil {
			p.Exit(ctx, 0)
		}
	}
}

func (t *Table) alloc(parent *Process) (*Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.procs) >= t.max {
		return nil, ErrNoProc
	}

	pt, err := pagetable.New(t.mem)
	if err != nil {
		return nil, err
	}

	opts := t.mmOpts
	if t.logger != nil {
		opts = append(slices.Clip(opts), mm.WithLogger(t.logger))
	}

	p := &Process{
		table:  t,
		pid:    t.nextPID,
		parent: parent,
		state:  Runnable,
		mm:     mm.New(pt, opts...),
	}
	t.nextPID++
	t.procs[p.pid] = p
	return p, nil
}

// remove drops p from the table and hands its children to the root.
func (t *Table) remove(p *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.procs, p.pid)
	for _, c := range t.procs {
		c.mu.Lock()
		if c.parent == p {
			c.parent = t.root
		}
		c.mu.Unlock()
	}
}
