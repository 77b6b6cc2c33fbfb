package arena

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/file"
)

const (
	// MaxRegions is the number of region slots per address space.
	MaxRegions = arch.MaxRegions
	// MaxPages is the block pool capacity of one region.
	MaxPages = arch.MaxPages
)

var (
	// ErrNoSlot is returned when every region slot is in use.
	ErrNoSlot = errors.New("arena: no free region slot")
	// ErrTooManyPages is returned when a region would need more blocks than its pool holds.
	ErrTooManyPages = errors.New("arena: region exceeds block pool")
	// ErrStaleRef is returned for a Ref whose slot was released or reused.
	ErrStaleRef = errors.New("arena: stale region reference")
	// ErrNotEmpty is returned when releasing a region that still has live blocks.
	ErrNotEmpty = errors.New("arena: region still has live blocks")
)

// BlockState is the lifecycle state of one page block.
type BlockState uint8

const (
	// Free blocks belong to no mapping.
	Free BlockState = iota
	// Reserved blocks have an address and file offset but no frame.
	Reserved
	// Resident blocks are backed by a mapped frame.
	Resident
)

func (s BlockState) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Resident:
		return "resident"
	default:
		return "free"
	}
}

// Block describes one page of a region.
type Block struct {
	State  BlockState
	Addr   uint64
	Offset uint64
}

// Ref names a region slot together with the generation it was created in.
type Ref struct {
	Slot int
	Gen  uint32
}

// Params describes a region to reserve.
type Params struct {
	File   *file.File
	Base   uint64
	Length uint64
	Prot   int
	Flags  int
}

// Region is one mapping. Its blocks live in a fixed pool; seq holds the
// pool indices of live blocks in ascending address order.
type Region struct {
	File   *file.File
	Length uint64
	Prot   int
	Flags  int
	Offset uint64

	inUse bool
	gen   uint32
	pool  [MaxPages]Block
	seq   [MaxPages]uint8
	n     int
}

// Len returns the number of live blocks.
func (r *Region) Len() int { return r.n }

// Block returns the live block at sequence position i.
func (r *Region) Block(i int) *Block { return &r.pool[r.seq[i]] }

// Empty reports whether every block of the region is Free.
func (r *Region) Empty() bool { return r.n == 0 }

// Shared reports whether stores are visible to other mappers of the file.
func (r *Region) Shared() bool { return r.Flags&arch.MapShared != 0 }

// Readable reports whether the region permits loads.
func (r *Region) Readable() bool { return r.Prot&arch.ProtRead != 0 }

// Writable reports whether the region permits stores.
func (r *Region) Writable() bool { return r.Prot&arch.ProtWrite != 0 }

// Start returns the address of the first live block.
func (r *Region) Start() uint64 {
	if r.n == 0 {
		return 0
	}
	return r.Block(0).Addr
}

// Unlink marks the block at sequence position i Free and removes it from
// the sequence. Later blocks move down one position.
func (r *Region) Unlink(i int) {
	r.pool[r.seq[i]] = Block{}
	copy(r.seq[i:r.n], r.seq[i+1:r.n])
	r.n--
}

// Arena holds the regions of one address space. It is not safe for
// concurrent use; callers serialise per process.
type Arena struct {
	regions [MaxRegions]Region
	live    int
}

// Reserve claims the first free slot and fills its pool with
// ceil(Length/PageSize) Reserved blocks placed from Base upward. Nothing is
// changed on error.
func (a *Arena) Reserve(p Params) (Ref, error) {
	npages := arch.PageRoundUp(p.Length) / arch.PageSize
	if npages == 0 || npages > MaxPages {
		return Ref{}, fmt.Errorf("%w: %d pages", ErrTooManyPages, npages)
	}

	slot := -1
	for i := range a.regions {
		if !a.regions[i].inUse {
			slot = i
			break
		}
	}
	if slot < 0 {
		return Ref{}, ErrNoSlot
	}

	r := &a.regions[slot]
	gen := r.gen + 1
	*r = Region{
		File:   p.File,
		Length: arch.PageRoundUp(p.Length),
		Prot:   p.Prot,
		Flags:  p.Flags,
		inUse:  true,
		gen:    gen,
	}
	for i := range int(npages) { //nolint:gosec // npages <= MaxPages
		r.pool[i] = Block{
			State:  Reserved,
			Addr:   p.Base + uint64(i)*arch.PageSize, //nolint:gosec // i >= 0
			Offset: uint64(i) * arch.PageSize,        //nolint:gosec // i >= 0
		}
		r.seq[i] = uint8(i) //nolint:gosec // i < MaxPages
	}
	r.n = int(npages) //nolint:gosec // npages <= MaxPages
	a.live++

	return Ref{Slot: slot, Gen: gen}, nil
}

// Get resolves ref to its region.
func (a *Arena) Get(ref Ref) (*Region, error) {
	if ref.Slot < 0 || ref.Slot >= MaxRegions {
		return nil, ErrStaleRef
	}
	r := &a.regions[ref.Slot]
	if !r.inUse || r.gen != ref.Gen {
		return nil, ErrStaleRef
	}
	return r, nil
}

// Lookup finds the live block whose address is va. Regions are scanned by
// ascending slot, blocks in sequence order; the first match wins. It
// returns the owning region and the block's sequence position.
func (a *Arena) Lookup(va uint64) (Ref, int, bool) {
	for slot := range a.regions {
		r := &a.regions[slot]
		if !r.inUse {
			continue
		}
		for i := 0; i < r.n; i++ {
			if b := r.Block(i); b.State != Free && b.Addr == va {
				return Ref{Slot: slot, Gen: r.gen}, i, true
			}
		}
	}
	return Ref{}, 0, false
}

// Release returns an empty region's slot to the arena and yields the file
// reference it held so the caller can drop it.
func (a *Arena) Release(ref Ref) (*file.File, error) {
	r, err := a.Get(ref)
	if err != nil {
		return nil, err
	}
	if !r.Empty() {
		return nil, ErrNotEmpty
	}
	f := r.File
	gen := r.gen
	*r = Region{gen: gen}
	a.live--
	return f, nil
}

// Len returns the number of live regions.
func (a *Arena) Len() int { return a.live }

// Empty reports whether no region is live.
func (a *Arena) Empty() bool { return a.live == 0 }

// Each calls fn for every live region in slot order until fn returns false.
func (a *Arena) Each(fn func(Ref, *Region) bool) {
	for slot := range a.regions {
		r := &a.regions[slot]
		if !r.inUse {
			continue
		}
		if !fn(Ref{Slot: slot, Gen: r.gen}, r) {
			return
		}
	}
}

// Clone copies every live region into the same slot of a new arena with
// the same addresses and offsets. Resident blocks come back Reserved: the
// copy owns no frames. File pointers are copied as is; the caller takes
// the extra references.
func (a *Arena) Clone() *Arena {
	c := &Arena{}
	*c = *a
	for slot := range c.regions {
		r := &c.regions[slot]
		for i := 0; i < r.n; i++ {
			if b := r.Block(i); b.State == Resident {
				b.State = Reserved
			}
		}
	}
	return c
}

// Stats counts regions and blocks by state.
type Stats struct {
	Regions  int
	Reserved int
	Resident int
}

// Stats returns the current occupancy.
func (a *Arena) Stats() Stats {
	s := Stats{Regions: a.live}
	a.Each(func(_ Ref, r *Region) bool {
		for i := 0; i < r.n; i++ {
			switch r.Block(i).State {
			case Reserved:
				s.Reserved++
			case Resident:
				s.Resident++
			}
		}
		return true
	})
	return s
}
