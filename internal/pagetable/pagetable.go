package pagetable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/phys"
)

var (
	// ErrRemap is returned when installing over a valid leaf entry.
	ErrRemap = errors.New("pagetable: remap")
	// ErrNotMapped is returned when removing an address that has no leaf.
	ErrNotMapped = errors.New("pagetable: not mapped")
	// ErrNotLeaf is returned when an entry expected to be a leaf is a table.
	ErrNotLeaf = errors.New("pagetable: not a leaf")
	// ErrBadAddress is returned for addresses outside the user range or not
	// accessible from user mode.
	ErrBadAddress = errors.New("pagetable: bad address")
	// ErrMisaligned is returned for addresses that must be page-aligned.
	ErrMisaligned = errors.New("pagetable: misaligned address")
	// ErrDestroyed is returned once Destroy has run.
	ErrDestroyed = errors.New("pagetable: destroyed")
)

const pteSize = 8

// slot locates one entry inside a table frame.
type slot struct {
	table []byte
	off   int
}

func (s slot) load() uint64 {
	return binary.LittleEndian.Uint64(s.table[s.off : s.off+pteSize])
}

func (s slot) store(pte uint64) {
	binary.LittleEndian.PutUint64(s.table[s.off:s.off+pteSize], pte)
}

// PageTable is one process's Sv39 page table.
type PageTable struct {
	mem  *phys.Memory
	root uint64
}

// New allocates an empty page table.
func New(mem *phys.Memory) (*PageTable, error) {
	root, err := mem.Alloc()
	if err != nil {
		return nil, fmt.Errorf("pagetable: root: %w", err)
	}
	return &PageTable{mem: mem, root: root}, nil
}

// Root returns the physical address of the top-level table (what satp
// would point at), or 0 once destroyed.
func (pt *PageTable) Root() uint64 { return pt.root }

// Memory returns the physical memory the table lives in.
func (pt *PageTable) Memory() *phys.Memory { return pt.mem }

func (pt *PageTable) entry(tablePA, index uint64) slot {
	return slot{table: pt.mem.Page(tablePA), off: int(index) * pteSize} //nolint:gosec // index < 512
}

// walk returns the level-0 slot for va. With alloc set, missing
// intermediate tables are created; otherwise a missing table yields
// ok == false.
func (pt *PageTable) walk(va uint64, alloc bool) (slot, bool, error) {
	if pt.root == 0 {
		return slot{}, false, ErrDestroyed
	}
	if va >= arch.MaxVA {
		return slot{}, false, ErrBadAddress
	}

	table := pt.root
	for level := arch.Levels - 1; level > 0; level-- {
		s := pt.entry(table, arch.PX(level, va))
		pte := s.load()
		if pte&arch.PTEValid != 0 {
			table = arch.PTE2PA(pte)
			continue
		}
		if !alloc {
			return slot{}, false, nil
		}
		next, err := pt.mem.Alloc()
		if err != nil {
			return slot{}, false, err
		}
		s.store(arch.PA2PTE(next) | arch.PTEValid)
		table = next
	}
	return pt.entry(table, arch.PX(0, va)), true, nil
}

// MapPages installs leaf entries for [va, va+size) pointing at consecutive
// frames starting at pa.
func (pt *PageTable) MapPages(va, size, pa, perm uint64) error {
	if size == 0 {
		return fmt.Errorf("pagetable: map of zero bytes at %#x: %w", va, ErrMisaligned)
	}
	a := arch.PageRoundDown(va)
	last := arch.PageRoundDown(va + size - 1)
	for {
		s, _, err := pt.walk(a, true)
		if err != nil {
			return err
		}
		if s.load()&arch.PTEValid != 0 {
			return fmt.Errorf("%w at %#x", ErrRemap, a)
		}
		s.store(arch.PA2PTE(pa) | perm | arch.PTEValid)
		if a == last {
			return nil
		}
		a += arch.PageSize
		pa += arch.PageSize
	}
}

// MapFresh allocates a zeroed frame and installs it at va with perm.
// The frame is released again if the mapping cannot be installed.
func (pt *PageTable) MapFresh(va, perm uint64) (uint64, error) {
	pa, err := pt.mem.Alloc()
	if err != nil {
		return 0, err
	}
	if err := pt.MapPages(va, arch.PageSize, pa, perm); err != nil {
		pt.mem.Free(pa)
		return 0, err
	}
	return pa, nil
}

// Unmap removes npages leaf entries starting at va. With free set, the
// backing frames are returned to the allocator.
func (pt *PageTable) Unmap(va uint64, npages int, free bool) error {
	if !arch.PageAligned(va) {
		return fmt.Errorf("%w: %#x", ErrMisaligned, va)
	}
	for a := va; a < va+uint64(npages)*arch.PageSize; a += arch.PageSize { //nolint:gosec // npages is small
		s, ok, err := pt.walk(a, false)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %#x", ErrNotMapped, a)
		}
		pte := s.load()
		if pte&arch.PTEValid == 0 {
			return fmt.Errorf("%w: %#x", ErrNotMapped, a)
		}
		if arch.PTEFlags(pte) == arch.PTEValid {
			return fmt.Errorf("%w: %#x", ErrNotLeaf, a)
		}
		if free {
			pt.mem.Free(arch.PTE2PA(pte))
		}
		s.store(0)
	}
	return nil
}

// Lookup returns the raw leaf entry for va.
func (pt *PageTable) Lookup(va uint64) (uint64, bool) {
	s, ok, err := pt.walk(va, false)
	if err != nil || !ok {
		return 0, false
	}
	pte := s.load()
	if pte&arch.PTEValid == 0 {
		return 0, false
	}
	return pte, true
}

// WalkAddr translates a user virtual address to the physical address of
// its page. Only valid, user-accessible leaves translate.
func (pt *PageTable) WalkAddr(va uint64) (uint64, bool) {
	pte, ok := pt.Lookup(va)
	if !ok || pte&arch.PTEUser == 0 {
		return 0, false
	}
	return arch.PTE2PA(pte), true
}

// CopyOut copies src into user memory at dstva.
func (pt *PageTable) CopyOut(dstva uint64, src []byte) error {
	for len(src) > 0 {
		va0 := arch.PageRoundDown(dstva)
		pa0, ok := pt.WalkAddr(va0)
		if !ok {
			return fmt.Errorf("%w: %#x", ErrBadAddress, va0)
		}
		off := dstva - va0
		n := copy(pt.mem.Page(pa0)[off:], src)
		src = src[n:]
		dstva = va0 + arch.PageSize
	}
	return nil
}

// CopyIn copies user memory at srcva into dst.
func (pt *PageTable) CopyIn(dst []byte, srcva uint64) error {
	for len(dst) > 0 {
		va0 := arch.PageRoundDown(srcva)
		pa0, ok := pt.WalkAddr(va0)
		if !ok {
			return fmt.Errorf("%w: %#x", ErrBadAddress, va0)
		}
		off := srcva - va0
		n := copy(dst, pt.mem.Page(pa0)[off:])
		dst = dst[n:]
		srcva = va0 + arch.PageSize
	}
	return nil
}

// Destroy frees every table frame and every frame still mapped by a leaf.
func (pt *PageTable) Destroy() {
	if pt.root == 0 {
		return
	}
	pt.freeWalk(pt.root, arch.Levels-1)
	pt.root = 0
}

func (pt *PageTable) freeWalk(tablePA uint64, level int) {
	for i := uint64(0); i < arch.EntriesPerPT; i++ {
		s := pt.entry(tablePA, i)
		pte := s.load()
		if pte&arch.PTEValid == 0 {
			continue
		}
		if level > 0 {
			pt.freeWalk(arch.PTE2PA(pte), level-1)
		} else {
			pt.mem.Free(arch.PTE2PA(pte))
		}
		s.store(0)
	}
	pt.mem.Free(tablePA)
}

// Dump writes the valid entries of all three levels, xv6 vmprint style.
func (pt *PageTable) Dump(w io.Writer) error {
	if pt.root == 0 {
		return ErrDestroyed
	}
	if _, err := fmt.Fprintf(w, "page table %#016x\n", pt.root); err != nil {
		return err
	}
	return pt.dump(w, pt.root, arch.Levels-1, " ..")
}

func (pt *PageTable) dump(w io.Writer, tablePA uint64, level int, prefix string) error {
	for i := uint64(0); i < arch.EntriesPerPT; i++ {
		pte := pt.entry(tablePA, i).load()
		if pte&arch.PTEValid == 0 {
			continue
		}
		pa := arch.PTE2PA(pte)
		if _, err := fmt.Fprintf(w, "%s%d: pte %#016x pa %#016x\n", prefix, i, pte, pa); err != nil {
			return err
		}
		if level > 0 {
			if err := pt.dump(w, pa, level-1, prefix+" .."); err != nil {
				return err
			}
		}
	}
	return nil
}
