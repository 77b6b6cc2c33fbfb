package mm

import (
	"context"
	"fmt"

	"github.com/hupe1980/vmmap/internal/arena"
)

// Fork gives child a copy of every live region: same slots, same
// addresses, all blocks Reserved, one new file reference per region. The
// child starts with no resident pages; it populates them on first touch,
// from the parent for shared regions the parent holds.
func (m *MemoryManager) Fork(child *MemoryManager) error {
	if child == m {
		return fmt.Errorf("%w: fork into self", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !child.regions.Empty() {
		return fmt.Errorf("%w: child already has mappings", ErrInvalidArgument)
	}

	child.regions = m.regions.Clone()
	child.regions.Each(func(_ arena.Ref, r *arena.Region) bool {
		r.File.Dup()
		return true
	})
	child.base = m.base

	if m.logger != nil {
		m.logger.Debug("fork mappings", "regions", child.regions.Len(), "base", child.base)
	}
	return nil
}

// Release unmaps every region, writing back dirty shared pages, and drops
// every file reference. It is the first half of the exit path; Destroy is
// the second. The first error is returned after all regions are gone.
func (m *MemoryManager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var refs []arena.Ref
	m.regions.Each(func(ref arena.Ref, _ *arena.Region) bool {
		refs = append(refs, ref)
		return true
	})

	var first error
	for _, ref := range refs {
		r, err := m.regions.Get(ref)
		if err != nil {
			continue
		}
		if _, err := m.unmapRun(ctx, ref, 0, uint64(r.Len())); err != nil && first == nil { //nolint:gosec // Len >= 0
			first = err
		}
	}
	m.base = 0
	return first
}

// Destroy frees the page table and every frame it still maps. The manager
// must not be used afterwards.
func (m *MemoryManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pt.Destroy()
}
