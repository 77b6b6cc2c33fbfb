package vmmap

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/phys"
	"github.com/hupe1980/vmmap/internal/proc"
	"github.com/hupe1980/vmmap/internal/resource"
	"github.com/hupe1980/vmmap/internal/trap"
)

// Kernel is a booted machine: physical memory, a process table and the
// root process.
type Kernel struct {
	id       uuid.UUID
	cfg      Config
	logger   *Logger
	metrics  MetricsCollector
	observer *kernelObserver

	mem   *phys.Memory
	ctrl  *resource.Controller
	clock *trap.Clock
	table *proc.Table

	mu     sync.RWMutex
	closed bool
}

// Stats is a snapshot of kernel-wide counters.
type Stats struct {
	BootID string

	TotalFrames uint64
	FreeFrames  uint64
	UsedFrames  uint64

	Processes     int
	ResidentBytes int64
	Ticks         uint64

	Faults         uint64
	FatalFaults    uint64
	InheritedPages uint64
	Writebacks     uint64
}

// New boots a kernel and creates its root process.
func New(optFns ...Option) (*Kernel, error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := o.logger.With("boot", id.String())

	mem, err := phys.New(int(o.cfg.MemoryBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	k := &Kernel{
		id:       id,
		cfg:      o.cfg,
		logger:   logger,
		metrics:  o.metricsCollector,
		observer: &kernelObserver{mc: o.metricsCollector},
		mem:      mem,
		ctrl: resource.NewController(resource.Config{
			ResidentLimitBytes: o.cfg.ResidentLimitBytes,
			IOLimitBytesPerSec: o.cfg.IOBytesPerSec,
		}),
		clock: &trap.Clock{},
	}

	d := trap.NewDispatcher(k.clock,
		trap.WithLogger(logger.Logger),
		trap.WithKillHook(k.onKill),
	)

	k.table, err = proc.NewTable(mem, d,
		proc.WithLogger(logger.Logger),
		proc.WithMaxProcs(o.cfg.MaxProcs),
		proc.WithFileSystem(o.fsys),
		proc.WithConsole(o.console),
		proc.WithMemoryOptions(
			mm.WithResourceController(k.ctrl),
			mm.WithObserver(k.observer),
		),
	)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}

	logger.Info("kernel booted",
		"frames", mem.Stats().TotalFrames,
		"max_procs", o.cfg.MaxProcs,
		"resident_limit_bytes", o.cfg.ResidentLimitBytes,
	)
	return k, nil
}

// ID returns the boot id.
func (k *Kernel) ID() uuid.UUID { return k.id }

// Config returns the effective settings.
func (k *Kernel) Config() Config { return k.cfg }

// Init returns the root process.
func (k *Kernel) Init() *Process {
	return k.wrap(k.table.Root())
}

// Process returns the live process with the given pid.
func (k *Kernel) Process(pid int) (*Process, error) {
	done, err := k.enter()
	if err != nil {
		return nil, err
	}
	defer done()

	p, err := k.table.Lookup(pid)
	if err != nil {
		return nil, err
	}
	return k.wrap(p), nil
}

// PIDs returns the pids of all live processes in ascending order.
func (k *Kernel) PIDs() []int {
	return k.table.PIDs()
}

// Stats returns a snapshot of frame usage and fault counters.
func (k *Kernel) Stats() Stats {
	ms := k.mem.Stats()
	return Stats{
		BootID:         k.id.String(),
		TotalFrames:    ms.TotalFrames,
		FreeFrames:     ms.FreeFrames,
		UsedFrames:     ms.UsedFrames,
		Processes:      k.table.Len(),
		ResidentBytes:  k.ctrl.MemoryUsage(),
		Ticks:          k.clock.Ticks(),
		Faults:         k.observer.faults.Load(),
		FatalFaults:    k.observer.fatal.Load(),
		InheritedPages: k.observer.inherited.Load(),
		Writebacks:     k.observer.writebacks.Load(),
	}
}

// Close exits every process, writing back shared mappings, and releases
// physical memory. Calling Close twice is a no-op.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	k.table.Shutdown(context.Background())
	st := k.mem.Stats()
	if st.UsedFrames != 0 {
		k.logger.Warn("frames leaked at shutdown", "frames", st.UsedFrames)
	}
	k.logger.Info("kernel shut down")
	return k.mem.Close()
}

// enter holds off Close until the returned func is called.
func (k *Kernel) enter() (func(), error) {
	k.mu.RLock()
	if k.closed {
		k.mu.RUnlock()
		return nil, ErrClosed
	}
	return k.mu.RUnlock, nil
}

func (k *Kernel) onKill(pid int, err error) {
	k.metrics.RecordKill(pid, err)
	k.logger.LogKill(context.Background(), pid, err)
}

func (k *Kernel) wrap(p *proc.Process) *Process {
	return &Process{k: k, p: p, log: k.logger.WithPID(p.PID())}
}
