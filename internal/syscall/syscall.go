// Package syscall decodes system calls from a trap frame and runs them.
//
// The calling convention is the xv6 one: the number is in a7, arguments in
// a0..a5 and the result goes back in a0. Every failure returns Fail.
package syscall

import (
	"context"
	"io"
	"log/slog"

	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/trap"
)

// System call numbers.
const (
	SysFork    = 1
	SysExit    = 2
	SysKill    = 6
	SysGetpid  = 11
	SysUptime  = 14
	SysMmap    = 22
	SysMunmap  = 23
	SysVmprint = 24
)

// Fail is the value a failed system call leaves in a0 (-1).
const Fail = ^uint64(0)

// Process is the calling process as seen by system calls.
type Process interface {
	PID() int
	Frame() *trap.Frame
	File(fd int) (*file.File, error)
	MemoryManager() *mm.MemoryManager
	Fork(ctx context.Context) (int, error)
	Exit(ctx context.Context, status int)
	Kill(pid int) error
	Uptime() uint64
	Console() io.Writer
}

// Handler implements one system call.
type Handler func(ctx context.Context, p Process) (uint64, error)

type entry struct {
	name string
	fn   Handler
}

// Table maps system call numbers to handlers.
type Table struct {
	calls  map[uint64]entry
	logger *slog.Logger
}

// Option defines a configuration option for the Table.
type Option func(*Table)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// NewTable returns a table with every built-in system call registered.
func NewTable(opts ...Option) *Table {
	t := &Table{calls: make(map[uint64]entry)}
	t.Register(SysFork, "fork", sysFork)
	t.Register(SysExit, "exit", sysExit)
	t.Register(SysKill, "kill", sysKill)
	t.Register(SysGetpid, "getpid", sysGetpid)
	t.Register(SysUptime, "uptime", sysUptime)
	t.Register(SysMmap, "mmap", sysMmap)
	t.Register(SysMunmap, "munmap", sysMunmap)
	t.Register(SysVmprint, "vmprint", sysVmprint)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register installs h as system call num, replacing any previous handler.
func (t *Table) Register(num uint64, name string, h Handler) {
	t.calls[num] = entry{name: name, fn: h}
}

// Name returns the name of system call num.
func (t *Table) Name(num uint64) (string, bool) {
	e, ok := t.calls[num]
	return e.name, ok
}

// Dispatch runs the system call in p's frame and stores the result in a0.
func (t *Table) Dispatch(ctx context.Context, p Process) {
	f := p.Frame()
	num := f.A[7]

	e, ok := t.calls[num]
	if !ok {
		if t.logger != nil {
			t.logger.Warn("unknown sys call", "pid", p.PID(), "num", num)
		}
		f.A[0] = Fail
		return
	}

	ret, err := e.fn(ctx, p)
	if err != nil {
		if t.logger != nil {
			t.logger.Debug("sys call failed", "pid", p.PID(), "call", e.name, "error", err)
		}
		ret = Fail
	}
	f.A[0] = ret
}
