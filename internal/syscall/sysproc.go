package syscall

import (
	"context"

	"github.com/hupe1980/vmmap/internal/conv"
)

func sysFork(ctx context.Context, p Process) (uint64, error) {
	pid, err := p.Fork(ctx)
	if err != nil {
		return 0, err
	}
	return conv.IntToUint64(pid)
}

func sysExit(ctx context.Context, p Process) (uint64, error) {
	p.Exit(ctx, ArgInt(p.Frame(), 0))
	return 0, nil
}

func sysKill(_ context.Context, p Process) (uint64, error) {
	if err := p.Kill(ArgInt(p.Frame(), 0)); err != nil {
		return 0, err
	}
	return 0, nil
}

func sysGetpid(_ context.Context, p Process) (uint64, error) {
	return conv.IntToUint64(p.PID())
}

func sysUptime(_ context.Context, p Process) (uint64, error) {
	return p.Uptime(), nil
}
