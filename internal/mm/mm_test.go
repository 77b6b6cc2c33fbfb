package mm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/fs"
	"github.com/hupe1980/vmmap/internal/pagetable"
	"github.com/hupe1980/vmmap/internal/phys"
	"github.com/hupe1980/vmmap/testutil"
)

const (
	rw     = arch.ProtRead | arch.ProtWrite
	shared = arch.MapShared
)

type env struct {
	t    *testing.T
	dir  string
	fsys *fs.FaultyFS
	mem  *phys.Memory
	rng  *testutil.RNG
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem, err := phys.New(512 * arch.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	dir := t.TempDir()
	return &env{
		t:    t,
		dir:  dir,
		fsys: fs.NewFaultyFS(fs.LocalFS{Root: dir}),
		mem:  mem,
		rng:  testutil.NewRNG(4711),
	}
}

func (e *env) manager(opts ...Option) *MemoryManager {
	e.t.Helper()
	pt, err := pagetable.New(e.mem)
	require.NoError(e.t, err)
	return New(pt, opts...)
}

// file creates name with npages pages of random content and opens it.
func (e *env) file(name string, npages int, mode int) (*file.File, []byte) {
	e.t.Helper()
	data := e.rng.Bytes(npages * arch.PageSize)
	testutil.WriteFile(e.t, e.dir, name, data)
	return e.open(name, mode), data
}

func (e *env) open(name string, mode int) *file.File {
	e.t.Helper()
	f, err := file.Open(e.fsys, name, mode)
	require.NoError(e.t, err)
	e.t.Cleanup(func() {
		if f.Refs() > 0 {
			_ = f.Close()
		}
	})
	return f
}

func (e *env) mmap(m *MemoryManager, f *file.File, length int64, prot, flags int) uint64 {
	e.t.Helper()
	addr, err := m.Mmap(e.t.Context(), MmapArgs{Length: length, Prot: prot, Flags: flags, File: f})
	require.NoError(e.t, err)
	return addr
}

func (e *env) fault(m, parent *MemoryManager, addr uint64, at AccessType) {
	e.t.Helper()
	require.NoError(e.t, m.HandleFault(e.t.Context(), parent, addr, at))
}

func readUser(t *testing.T, m *MemoryManager, va uint64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	require.NoError(t, m.PageTable().CopyIn(buf, va))
	return buf
}

func writeUser(t *testing.T, m *MemoryManager, va uint64, data []byte) {
	t.Helper()
	require.NoError(t, m.PageTable().CopyOut(va, data))
}

func page(data []byte, i int) []byte {
	return data[i*arch.PageSize : (i+1)*arch.PageSize]
}

func equalBytes(t *testing.T, want, got []byte) {
	t.Helper()
	require.True(t, bytes.Equal(want, got), "content mismatch")
}
