package phys

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/mmap"
)

var (
	// ErrOutOfMemory is returned when no free frame is left.
	ErrOutOfMemory = errors.New("phys: out of memory")
	// ErrInvalidSize is returned when RAM is smaller than one frame.
	ErrInvalidSize = errors.New("phys: memory size smaller than one page")
)

// junk is written over freed frames.
const junk = 0x01

// Stats is a snapshot of frame usage.
type Stats struct {
	TotalFrames uint64
	FreeFrames  uint64
	UsedFrames  uint64
}

// Memory is the simulated physical RAM.
type Memory struct {
	mu      sync.Mutex
	mapping *mmap.Mapping
	data    []byte
	base    uint64
	nframes uint32
	free    *roaring.Bitmap
}

// New maps size bytes (rounded down to whole frames) of simulated RAM.
func New(size int) (*Memory, error) {
	nframes := size / arch.PageSize
	if nframes <= 0 {
		return nil, ErrInvalidSize
	}

	mapping, err := mmap.MapAnon(nframes * arch.PageSize)
	if err != nil {
		return nil, fmt.Errorf("phys: failed to map ram: %w", err)
	}
	if err := mapping.Advise(0, mapping.Size(), mmap.AccessRandom); err != nil {
		_ = mapping.Close()
		return nil, fmt.Errorf("phys: advise: %w", err)
	}

	free := roaring.New()
	free.AddRange(0, uint64(nframes))

	return &Memory{
		mapping: mapping,
		data:    mapping.Bytes(),
		base:    arch.KernBase,
		nframes: uint32(nframes), //nolint:gosec // bounded by host memory
		free:    free,
	}, nil
}

// Alloc returns the physical address of a zeroed frame.
func (m *Memory) Alloc() (uint64, error) {
	m.mu.Lock()
	if m.free.IsEmpty() {
		m.mu.Unlock()
		return 0, ErrOutOfMemory
	}
	frame := m.free.Minimum()
	m.free.Remove(frame)
	m.mu.Unlock()

	page := m.frame(frame)
	clear(page)
	return m.base + uint64(frame)*arch.PageSize, nil
}

// Free returns the frame at pa to the allocator.
func (m *Memory) Free(pa uint64) {
	frame, ok := m.frameOf(pa)
	if !ok {
		panic(fmt.Sprintf("phys: free of bad address %#x", pa))
	}

	page := m.frame(frame)
	for i := range page {
		page[i] = junk
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.free.Contains(frame) {
		panic(fmt.Sprintf("phys: double free of %#x", pa))
	}
	m.free.Add(frame)
}

// Page returns the bytes of the frame at pa. The address must be
// page-aligned and inside RAM.
func (m *Memory) Page(pa uint64) []byte {
	frame, ok := m.frameOf(pa)
	if !ok {
		panic(fmt.Sprintf("phys: bad frame address %#x", pa))
	}
	return m.frame(frame)
}

// Contains reports whether pa is a page-aligned address inside RAM.
func (m *Memory) Contains(pa uint64) bool {
	_, ok := m.frameOf(pa)
	return ok
}

// Allocated reports whether the frame at pa is currently handed out.
func (m *Memory) Allocated(pa uint64) bool {
	frame, ok := m.frameOf(pa)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.free.Contains(frame)
}

// Base returns the lowest physical address.
func (m *Memory) Base() uint64 { return m.base }

// Top returns one beyond the highest physical address.
func (m *Memory) Top() uint64 { return m.base + uint64(m.nframes)*arch.PageSize }

// Stats returns the current frame usage.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	free := m.free.GetCardinality()
	m.mu.Unlock()

	total := uint64(m.nframes)
	return Stats{
		TotalFrames: total,
		FreeFrames:  free,
		UsedFrames:  total - free,
	}
}

// Close unmaps RAM. Every page handed out becomes invalid.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free.Clear()
	m.data = nil
	return m.mapping.Close()
}

func (m *Memory) frameOf(pa uint64) (uint32, bool) {
	if pa < m.base || !arch.PageAligned(pa) {
		return 0, false
	}
	frame := (pa - m.base) >> arch.PageShift
	if frame >= uint64(m.nframes) {
		return 0, false
	}
	return uint32(frame), true //nolint:gosec // frame < nframes
}

func (m *Memory) frame(frame uint32) []byte {
	off := int(frame) * arch.PageSize
	return m.data[off : off+arch.PageSize : off+arch.PageSize]
}
