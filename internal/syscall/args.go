package syscall

import (
	"fmt"

	"github.com/hupe1980/vmmap/internal/conv"
	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/trap"
)

// MaxArgs is the number of argument registers.
const MaxArgs = 6

func arg(f *trap.Frame, n int) uint64 {
	if n < 0 || n >= MaxArgs {
		panic(fmt.Sprintf("syscall: argument %d out of range", n))
	}
	return f.A[n]
}

// ArgInt reads argument n as a 32-bit int.
func ArgInt(f *trap.Frame, n int) int {
	return int(conv.Uint64ToInt32(arg(f, n)))
}

// ArgLong reads argument n as a signed 64-bit value.
func ArgLong(f *trap.Frame, n int) int64 {
	return int64(arg(f, n)) //nolint:gosec // register reinterpretation
}

// ArgAddr reads argument n as a user address.
func ArgAddr(f *trap.Frame, n int) uint64 {
	return arg(f, n)
}

// ArgFd reads argument n as a descriptor and resolves it.
func ArgFd(p Process, n int) (int, *file.File, error) {
	fd := ArgInt(p.Frame(), n)
	f, err := p.File(fd)
	if err != nil {
		return fd, nil, err
	}
	return fd, f, nil
}
