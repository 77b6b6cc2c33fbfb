package mm

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/arena"
	"github.com/hupe1980/vmmap/internal/file"
)

// MmapArgs are the decoded arguments of mmap(2).
type MmapArgs struct {
	Addr   uint64
	Length int64
	Prot   int
	Flags  int
	File   *file.File
	Offset int64
}

func (a MmapArgs) validate() error {
	switch {
	case a.Addr != 0:
		return fmt.Errorf("%w: addr %#x must be 0", ErrInvalidArgument, a.Addr)
	case a.Length <= 0:
		return fmt.Errorf("%w: length %d", ErrInvalidArgument, a.Length)
	case a.Prot&^arch.ProtMask != 0:
		return fmt.Errorf("%w: prot %#x", ErrInvalidArgument, a.Prot)
	case a.Flags != arch.MapShared && a.Flags != arch.MapPrivate:
		return fmt.Errorf("%w: flags %#x", ErrInvalidArgument, a.Flags)
	case a.File == nil:
		return fmt.Errorf("%w: no file", ErrInvalidArgument)
	case a.File.Type() != file.TypeInode:
		return fmt.Errorf("%w: cannot map a %s", ErrInvalidArgument, a.File.Type())
	case a.Offset != 0:
		return fmt.Errorf("%w: offset %d must be 0", ErrInvalidArgument, a.Offset)
	}

	if a.Prot&arch.ProtWrite != 0 && a.Flags == arch.MapShared && !a.File.Writable() {
		return fmt.Errorf("%w: shared writable mapping of read-only file", ErrPermissionDenied)
	}
	if a.Prot&arch.ProtRead != 0 && !a.File.Readable() {
		return fmt.Errorf("%w: readable mapping of write-only file", ErrPermissionDenied)
	}
	return nil
}

// Mmap reserves a region for the file and returns its first address. No
// frame is allocated; pages are populated by HandleFault on first touch.
func (m *MemoryManager) Mmap(_ context.Context, args MmapArgs) (addr uint64, err error) {
	start := time.Now()
	defer func() {
		m.metrics.OnMmap(time.Since(start), args.Length, err)
	}()

	if err := args.validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.base
	if base == 0 {
		base = arch.MmapWindowStart
	}
	length := arch.PageRoundUp(uint64(args.Length))
	if length > arch.MmapWindowEnd-base {
		return 0, fmt.Errorf("%w: %d bytes do not fit below %#x", ErrResourceExhausted, length, arch.MmapWindowEnd)
	}

	ref, err := m.regions.Reserve(arena.Params{
		File:   args.File,
		Base:   base,
		Length: length,
		Prot:   args.Prot,
		Flags:  args.Flags,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	args.File.Dup()
	m.base = base + length
	m.stats.mmaps.Add(1)

	if m.logger != nil {
		m.logger.Debug("mmap", "addr", base, "length", length, "prot", args.Prot, "flags", args.Flags, "slot", ref.Slot, "file", args.File.Name())
	}
	return base, nil
}
