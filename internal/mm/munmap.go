package mm

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/arena"
)

// Munmap frees length bytes of blocks starting at the block whose address
// is addr, writing back dirty shared pages. The run never crosses into
// another region.
//
// A writeback failure does not stop the teardown; the first error is
// returned once every block in the run is freed.
func (m *MemoryManager) Munmap(ctx context.Context, addr uint64, length int64) (err error) {
	start := time.Now()
	freed := 0
	defer func() {
		m.metrics.OnMunmap(time.Since(start), freed, err)
	}()

	if length <= 0 {
		return fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}
	va := arch.PageRoundDown(addr)
	npages := arch.PageRoundUp(uint64(length)) / arch.PageSize

	m.mu.Lock()
	defer m.mu.Unlock()

	ref, pos, ok := m.regions.Lookup(va)
	if !ok {
		return fmt.Errorf("%w: %#x", ErrNotFound, addr)
	}

	freed, err = m.unmapRun(ctx, ref, pos, npages)
	m.stats.munmaps.Add(1)

	if m.logger != nil {
		m.logger.Debug("munmap", "addr", va, "pages", freed, "slot", ref.Slot, "error", err)
	}
	return err
}

// unmapRun frees up to n blocks of the region starting at sequence
// position pos and releases the region once it is empty.
func (m *MemoryManager) unmapRun(ctx context.Context, ref arena.Ref, pos int, n uint64) (int, error) {
	r, err := m.regions.Get(ref)
	if err != nil {
		return 0, err
	}

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	freed := 0
	for k := uint64(0); k < n && pos < r.Len(); k++ {
		b := r.Block(pos)
		if b.State == arena.Resident {
			if r.Shared() && r.Writable() {
				keep(m.writeback(ctx, r, b))
			}
			keep(m.pt.Unmap(b.Addr, 1, true))
			m.releasePage()
		}
		r.Unlink(pos)
		freed++
	}

	if r.Empty() {
		f, err := m.regions.Release(ref)
		keep(err)
		if f != nil {
			keep(f.Close())
		}
	}
	if m.regions.Empty() {
		m.base = 0
	}
	return freed, first
}

// writeback writes the full page of b to the region's file at the block
// offset. The file cursor is left where it was.
func (m *MemoryManager) writeback(ctx context.Context, r *arena.Region, b *arena.Block) (err error) {
	n := 0
	defer func() {
		m.stats.writebacks.Add(1)
		m.metrics.OnWriteback(n, err)
	}()

	if err := m.acquireIO(ctx); err != nil {
		return fmt.Errorf("writeback %#x: %w", b.Addr, err)
	}

	f := r.File
	saved := f.Offset()
	f.SetOffset(b.Offset)
	n, err = f.Write(m.pt, b.Addr, arch.PageSize)
	f.SetOffset(saved)
	if err != nil {
		return fmt.Errorf("writeback %#x: %w", b.Addr, err)
	}
	return nil
}
