package mm

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/arena"
	"github.com/hupe1980/vmmap/internal/pagetable"
	"github.com/hupe1980/vmmap/internal/resource"
)

// AccessType is the kind of user access that faulted.
type AccessType uint8

const (
	Load AccessType = iota
	Store
)

func (a AccessType) String() string {
	if a == Store {
		return "store"
	}
	return "load"
}

// MemoryAcquirer charges resident pages against a budget.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// IOLimiter paces file transfers.
type IOLimiter interface {
	AcquireIO(ctx context.Context, bytes int) error
}

// MemoryManager owns the mapping state of one address space.
//
// The methods lock the manager so the Kernel may inspect a process from
// another goroutine, but the save/restore of file cursors still assumes a
// process issues one mapping operation at a time.
type MemoryManager struct {
	mu      sync.Mutex
	pt      *pagetable.PageTable
	regions *arena.Arena
	base    uint64

	logger   *slog.Logger
	acquirer MemoryAcquirer
	limiter  IOLimiter
	metrics  Observer

	stats atomicStats
}

// Option defines a configuration option for a MemoryManager.
type Option func(*MemoryManager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *MemoryManager) {
		m.logger = l
	}
}

// WithResourceController charges resident pages and paces file IO through rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(m *MemoryManager) {
		if rc != nil {
			m.acquirer = rc
			m.limiter = rc
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(m *MemoryManager) {
		if o != nil {
			m.metrics = o
		}
	}
}

// New creates a manager for the address space described by pt.
func New(pt *pagetable.PageTable, opts ...Option) *MemoryManager {
	m := &MemoryManager{
		pt:      pt,
		regions: &arena.Arena{},
		metrics: NoopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PageTable returns the page table the manager maps into.
func (m *MemoryManager) PageTable() *pagetable.PageTable { return m.pt }

// Base returns the mapping watermark; zero when no region is live.
func (m *MemoryManager) Base() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base
}

// Resident reports whether va lies in a block that is backed by a frame.
func (m *MemoryManager) Resident(va uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.residentLocked(arch.PageRoundDown(va))
}

func (m *MemoryManager) residentLocked(va uint64) bool {
	ref, pos, ok := m.regions.Lookup(va)
	if !ok {
		return false
	}
	r, err := m.regions.Get(ref)
	if err != nil {
		return false
	}
	if r.Block(pos).State != arena.Resident {
		return false
	}
	_, mapped := m.pt.WalkAddr(va)
	return mapped
}

// RegionInfo summarises one live region.
type RegionInfo struct {
	Slot     int
	Start    uint64
	Length   uint64
	Prot     int
	Flags    int
	File     string
	Reserved int
	Resident int
}

// Regions lists the live regions in slot order.
func (m *MemoryManager) Regions() []RegionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RegionInfo
	m.regions.Each(func(ref arena.Ref, r *arena.Region) bool {
		info := RegionInfo{
			Slot:   ref.Slot,
			Start:  r.Start(),
			Length: r.Length,
			Prot:   r.Prot,
			Flags:  r.Flags,
		}
		if r.File != nil {
			info.File = r.File.Name()
		}
		for i := 0; i < r.Len(); i++ {
			if r.Block(i).State == arena.Resident {
				info.Resident++
			} else {
				info.Reserved++
			}
		}
		out = append(out, info)
		return true
	})
	return out
}

// Dump writes the page table in vmprint format.
func (m *MemoryManager) Dump(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pt.Dump(w)
}

// Stats holds cumulative counters of one manager.
type Stats struct {
	Mmaps      uint64
	Munmaps    uint64
	Faults     uint64
	FileFills  uint64
	Inherited  uint64
	Spurious   uint64
	Fatal      uint64
	Writebacks uint64
}

type atomicStats struct {
	mmaps      atomic.Uint64
	munmaps    atomic.Uint64
	faults     atomic.Uint64
	fileFills  atomic.Uint64
	inherited  atomic.Uint64
	spurious   atomic.Uint64
	fatal      atomic.Uint64
	writebacks atomic.Uint64
}

// Stats returns a snapshot of the counters.
func (m *MemoryManager) Stats() Stats {
	return Stats{
		Mmaps:      m.stats.mmaps.Load(),
		Munmaps:    m.stats.munmaps.Load(),
		Faults:     m.stats.faults.Load(),
		FileFills:  m.stats.fileFills.Load(),
		Inherited:  m.stats.inherited.Load(),
		Spurious:   m.stats.spurious.Load(),
		Fatal:      m.stats.fatal.Load(),
		Writebacks: m.stats.writebacks.Load(),
	}
}

func (m *MemoryManager) acquirePage() error {
	if m.acquirer == nil {
		return nil
	}
	return m.acquirer.AcquireMemory(arch.PageSize)
}

func (m *MemoryManager) releasePage() {
	if m.acquirer != nil {
		m.acquirer.ReleaseMemory(arch.PageSize)
	}
}

func (m *MemoryManager) acquireIO(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.AcquireIO(ctx, arch.PageSize)
}
