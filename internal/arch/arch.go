// Package arch describes the simulated RISC-V Sv39 machine: page geometry,
// page-table entry bits, trap causes and the fixed user address-space layout.
package arch

// Page geometry.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// Page-table entry bits.
const (
	PTEValid = 1 << 0
	PTERead  = 1 << 1
	PTEWrite = 1 << 2
	PTEExec  = 1 << 3
	PTEUser  = 1 << 4

	// PTEFlagMask covers the ten low flag bits of an entry.
	PTEFlagMask = 0x3FF
)

// Sv39 geometry: three levels of 512 entries indexed by 9 bits each.
const (
	Levels       = 3
	EntriesPerPT = 512
	pxMask       = 0x1FF
)

// MaxVA is one beyond the highest user virtual address. It is a bit less
// than the Sv39 maximum so sign extension never comes into play.
const MaxVA uint64 = 1 << (9 + 9 + 9 + PageShift - 1)

// Fixed top-of-address-space pages.
const (
	Trampoline = MaxVA - PageSize
	Trapframe  = Trampoline - PageSize
)

// Mapping capacity per process.
const (
	MaxRegions = 16
	MaxPages   = 64
)

// Mapping window: MaxRegions*MaxPages pages directly below the trapframe.
const (
	MmapWindowStart = MaxVA - (MaxPages*MaxRegions+2)*PageSize
	MmapWindowEnd   = Trapframe
)

// Physical memory starts here, as on the qemu virt board.
const KernBase uint64 = 0x8000_0000

// Protection bits accepted by mmap.
const (
	ProtNone  = 0x0
	ProtRead  = 0x1
	ProtWrite = 0x2
	ProtExec  = 0x4

	ProtMask = ProtRead | ProtWrite | ProtExec
)

// Mapping modes accepted by mmap.
const (
	MapShared  = 0x01
	MapPrivate = 0x02
)

// Supervisor trap causes (scause).
const (
	InterruptBit uint64 = 1 << 63

	CauseInstructionPageFault uint64 = 12
	CauseUserEcall            uint64 = 8
	CauseLoadPageFault        uint64 = 13
	CauseStorePageFault       uint64 = 15

	CauseSupervisorSoftware = InterruptBit | 1
	CauseSupervisorExternal = InterruptBit | 9
)

// PageRoundUp rounds a up to a page boundary.
func PageRoundUp(a uint64) uint64 {
	return (a + PageSize - 1) &^ (PageSize - 1)
}

// PageRoundDown rounds a down to a page boundary.
func PageRoundDown(a uint64) uint64 {
	return a &^ (PageSize - 1)
}

// PageAligned reports whether a sits on a page boundary.
func PageAligned(a uint64) bool {
	return a&(PageSize-1) == 0
}

// PX extracts the 9-bit page-table index of va for the given level.
func PX(level int, va uint64) uint64 {
	shift := PageShift + 9*uint(level)
	return (va >> shift) & pxMask
}

// PA2PTE converts a physical address into the PPN field of an entry.
func PA2PTE(pa uint64) uint64 {
	return (pa >> PageShift) << 10
}

// PTE2PA extracts the physical address held by an entry.
func PTE2PA(pte uint64) uint64 {
	return (pte >> 10) << PageShift
}

// PTEFlags returns the flag bits of an entry.
func PTEFlags(pte uint64) uint64 {
	return pte & PTEFlagMask
}

// ProtToPTE derives leaf permission bits from mmap protection bits.
// The result always carries PTEValid and PTEUser.
func ProtToPTE(prot int) uint64 {
	perm := uint64(PTEValid | PTEUser)
	if prot&ProtRead != 0 {
		perm |= PTERead
	}
	if prot&ProtWrite != 0 {
		perm |= PTEWrite
	}
	if prot&ProtExec != 0 {
		perm |= PTEExec
	}
	return perm
}
