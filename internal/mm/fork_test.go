package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/testutil"
)

func TestFork_DuplicatesRegions(t *testing.T) {
	e := newEnv(t)
	parent := e.manager()
	f, _ := e.file("data", 2, file.ORdWr)
	a := e.mmap(parent, f, 2*arch.PageSize, rw, shared)
	e.mmap(parent, f, arch.PageSize, arch.ProtRead, arch.MapPrivate)
	e.fault(parent, nil, a, Store)

	child := e.manager()
	require.NoError(t, parent.Fork(child))

	pr, cr := parent.Regions(), child.Regions()
	require.Len(t, cr, len(pr))
	for i := range pr {
		assert.Equal(t, pr[i].Slot, cr[i].Slot)
		assert.Equal(t, pr[i].Start, cr[i].Start)
		assert.Equal(t, pr[i].Length, cr[i].Length)
		assert.Equal(t, pr[i].Prot, cr[i].Prot)
		assert.Equal(t, pr[i].Flags, cr[i].Flags)
		assert.Equal(t, 0, cr[i].Resident)
	}
	assert.Equal(t, 1, pr[0].Resident)
	assert.Equal(t, parent.Base(), child.Base())
	assert.Equal(t, 5, f.Refs())
	assert.False(t, child.Resident(a))

	require.ErrorIs(t, parent.Fork(child), ErrInvalidArgument)
	require.ErrorIs(t, parent.Fork(parent), ErrInvalidArgument)
}

func TestFork_SharedInheritance(t *testing.T) {
	e := newEnv(t)
	parent := e.manager()
	f, data := e.file("data", 2, file.ORdWr)
	addr := e.mmap(parent, f, 2*arch.PageSize, rw, shared)

	e.fault(parent, nil, addr+arch.PageSize, Store)
	writeUser(t, parent, addr+arch.PageSize, []byte("parent was here"))
	reads := e.fsys.Reads()

	child := e.manager()
	require.NoError(t, parent.Fork(child))
	e.fault(child, parent, addr+arch.PageSize+3, Load)

	got := readUser(t, child, addr+arch.PageSize, arch.PageSize)
	assert.Equal(t, []byte("parent was here"), got[:15])
	equalBytes(t, page(data, 1)[15:], got[15:])
	assert.Equal(t, reads, e.fsys.Reads())
	assert.Equal(t, uint64(1), child.Stats().Inherited)

	// The copy is private to the child.
	childPA, ok := child.PageTable().WalkAddr(addr + arch.PageSize)
	require.True(t, ok)
	parentPA, ok := parent.PageTable().WalkAddr(addr + arch.PageSize)
	require.True(t, ok)
	assert.NotEqual(t, parentPA, childPA)

	// Pages the parent never touched come from the file.
	e.fault(child, parent, addr, Load)
	equalBytes(t, page(data, 0), readUser(t, child, addr, arch.PageSize))
	assert.Equal(t, reads+1, e.fsys.Reads())
}

func TestFork_PrivateReadsFile(t *testing.T) {
	e := newEnv(t)
	parent := e.manager()
	f, data := e.file("data", 1, file.ORdWr)
	addr := e.mmap(parent, f, arch.PageSize, rw, arch.MapPrivate)
	e.fault(parent, nil, addr, Store)
	writeUser(t, parent, addr, []byte("private"))

	child := e.manager()
	require.NoError(t, parent.Fork(child))
	e.fault(child, parent, addr, Load)
	equalBytes(t, data, readUser(t, child, addr, arch.PageSize))
	assert.Equal(t, uint64(0), child.Stats().Inherited)
}

func TestFork_NoParentReadsFile(t *testing.T) {
	e := newEnv(t)
	parent := e.manager()
	f, data := e.file("data", 1, file.ORdWr)
	addr := e.mmap(parent, f, arch.PageSize, rw, shared)
	e.fault(parent, nil, addr, Store)
	writeUser(t, parent, addr, []byte("unsaved"))

	child := e.manager()
	require.NoError(t, parent.Fork(child))
	// Without a parent handle the page comes from the file.
	e.fault(child, nil, addr, Load)
	equalBytes(t, data, readUser(t, child, addr, arch.PageSize))
	assert.Equal(t, uint64(0), child.Stats().Inherited)
}

func TestRelease(t *testing.T) {
	e := newEnv(t)
	m := e.manager()
	f, data := e.file("data", 2, file.ORdWr)
	g, _ := e.file("other", 1, file.ORdOnly)
	a := e.mmap(m, f, 2*arch.PageSize, rw, shared)
	b := e.mmap(m, g, arch.PageSize, arch.ProtRead, arch.MapPrivate)
	e.fault(m, nil, a, Store)
	e.fault(m, nil, b, Load)
	writeUser(t, m, a, []byte("flushed on exit"))
	tables := e.mem.Stats().UsedFrames - 2

	require.NoError(t, m.Release(t.Context()))

	assert.Empty(t, m.Regions())
	assert.Equal(t, uint64(0), m.Base())
	assert.Equal(t, tables, e.mem.Stats().UsedFrames)
	assert.Equal(t, 1, f.Refs())
	assert.Equal(t, 1, g.Refs())

	onDisk := testutil.ReadFile(t, e.dir, "data")
	assert.Equal(t, []byte("flushed on exit"), onDisk[:15])
	equalBytes(t, page(data, 1), page(onDisk, 1))

	m.PageTable().Destroy()
	assert.Equal(t, tables-4, e.mem.Stats().UsedFrames)
}
