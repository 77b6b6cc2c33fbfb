package syscall

import (
	"context"

	"github.com/hupe1980/vmmap/internal/mm"
)

// mmap(addr, length, prot, flags, fd, offset)
func sysMmap(ctx context.Context, p Process) (uint64, error) {
	f := p.Frame()
	args := mm.MmapArgs{
		Addr:   ArgAddr(f, 0),
		Length: ArgLong(f, 1),
		Prot:   ArgInt(f, 2),
		Flags:  ArgInt(f, 3),
		Offset: ArgLong(f, 5),
	}
	// A bad descriptor leaves File nil, which Mmap rejects.
	if _, file, err := ArgFd(p, 4); err == nil {
		args.File = file
	}
	return p.MemoryManager().Mmap(ctx, args)
}

// munmap(addr, length)
func sysMunmap(ctx context.Context, p Process) (uint64, error) {
	f := p.Frame()
	if err := p.MemoryManager().Munmap(ctx, ArgAddr(f, 0), ArgLong(f, 1)); err != nil {
		return 0, err
	}
	return 0, nil
}

func sysVmprint(_ context.Context, p Process) (uint64, error) {
	if err := p.MemoryManager().Dump(p.Console()); err != nil {
		return 0, err
	}
	return 0, nil
}
