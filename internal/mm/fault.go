package mm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/arena"
	"github.com/hupe1980/vmmap/internal/pagetable"
)

// HandleFault makes the page containing addr resident.
//
// parent is the manager of the faulting process's parent, or nil when the
// parent is the root process. For a shared region whose page the parent
// already holds, the child receives a copy of the parent's page instead
// of the file's bytes.
//
// Every failure is a *FaultError and matches ErrFatalFault.
func (m *MemoryManager) HandleFault(ctx context.Context, parent *MemoryManager, addr uint64, at AccessType) (err error) {
	start := time.Now()
	inherited := false
	defer func() {
		m.stats.faults.Add(1)
		if err != nil {
			m.stats.fatal.Add(1)
			if m.logger != nil {
				m.logger.Warn("page fault unresolved", "addr", addr, "access", at.String(), "error", err)
			}
		}
		m.metrics.OnFault(time.Since(start), at, inherited, err)
	}()

	if parent == m {
		parent = nil
	}
	va := arch.PageRoundDown(addr)

	m.mu.Lock()
	defer m.mu.Unlock()

	ref, pos, ok := m.regions.Lookup(va)
	if !ok {
		return &FaultError{Addr: addr, Access: at, Err: ErrNoMapping}
	}
	r, gerr := m.regions.Get(ref)
	if gerr != nil {
		return &FaultError{Addr: addr, Access: at, Err: gerr}
	}

	if (at == Load && !r.Readable()) || (at == Store && !r.Writable()) {
		return &FaultError{Addr: addr, Access: at, Err: ErrAccessViolation}
	}

	b := r.Block(pos)
	if b.State == arena.Resident {
		m.stats.spurious.Add(1)
		return nil
	}

	if err := m.acquirePage(); err != nil {
		return &FaultError{Addr: addr, Access: at, Err: err}
	}

	if parent != nil && r.Shared() {
		ok, err := m.inherit(parent, va, arch.ProtToPTE(r.Prot))
		if err != nil {
			m.releasePage()
			return &FaultError{Addr: addr, Access: at, Err: err}
		}
		if ok {
			b.State = arena.Resident
			inherited = true
			m.stats.inherited.Add(1)
			return nil
		}
	}

	if _, err := m.pt.MapFresh(va, arch.ProtToPTE(r.Prot)); err != nil {
		m.releasePage()
		return &FaultError{Addr: addr, Access: at, Err: err}
	}
	// The frame is mapped from here on; teardown reclaims it even when the
	// fill below fails.
	b.State = arena.Resident

	if err := m.acquireIO(ctx); err != nil {
		return &FaultError{Addr: addr, Access: at, Err: err}
	}
	f := r.File
	saved := f.Offset()
	f.SetOffset(b.Offset)
	_, rerr := f.Read(m.pt, va, arch.PageSize)
	f.SetOffset(saved)
	if rerr != nil {
		return &FaultError{Addr: addr, Access: at, Err: rerr}
	}

	m.stats.fileFills.Add(1)
	return nil
}

// inherit copies the parent's page at va into a fresh frame of m. It
// reports false, changing nothing, when the parent does not hold the page.
// The parent stays locked for the whole copy so it cannot unmap the page
// underneath it.
func (m *MemoryManager) inherit(parent *MemoryManager, va, perm uint64) (bool, error) {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	if !parent.residentLocked(va) {
		return false, nil
	}
	if _, err := m.pt.MapFresh(va, perm); err != nil {
		return false, err
	}
	if err := copyResident(parent.pt, m.pt, va); err != nil {
		if uerr := m.pt.Unmap(va, 1, true); uerr != nil {
			return false, errors.Join(err, uerr)
		}
		return false, err
	}
	return true, nil
}

// copyResident copies the page at va from src to dst through a bounce
// frame. Both tables must map va.
func copyResident(src, dst *pagetable.PageTable, va uint64) error {
	mem := dst.Memory()
	bounce, err := mem.Alloc()
	if err != nil {
		return fmt.Errorf("bounce frame: %w", err)
	}
	defer mem.Free(bounce)

	buf := mem.Page(bounce)
	if err := src.CopyIn(buf, va); err != nil {
		return fmt.Errorf("copy from parent: %w", err)
	}
	if err := dst.CopyOut(va, buf); err != nil {
		return fmt.Errorf("copy to child: %w", err)
	}
	return nil
}
