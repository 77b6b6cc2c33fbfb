package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/fs"
	"github.com/hupe1980/vmmap/internal/pagetable"
	"github.com/hupe1980/vmmap/internal/phys"
)

const userVA = uint64(0x10000)

func newUserPage(t *testing.T) (*pagetable.PageTable, []byte) {
	t.Helper()
	mem, err := phys.New(16 * arch.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	pt, err := pagetable.New(mem)
	require.NoError(t, err)
	pa, err := pt.MapFresh(userVA, arch.PTEUser|arch.PTERead|arch.PTEWrite)
	require.NoError(t, err)
	return pt, mem.Page(pa)
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestOpen_Modes(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.LocalFS{Root: dir}
	writeFile(t, dir, "a", []byte("hello"))

	tests := []struct {
		mode     int
		readable bool
		writable bool
	}{
		{ORdOnly, true, false},
		{OWrOnly, false, true},
		{ORdWr, true, true},
	}
	for _, tt := range tests {
		f, err := Open(fsys, "a", tt.mode)
		require.NoError(t, err)
		assert.Equal(t, TypeInode, f.Type())
		assert.Equal(t, tt.readable, f.Readable(), "mode %#x", tt.mode)
		assert.Equal(t, tt.writable, f.Writable(), "mode %#x", tt.mode)
		require.NoError(t, f.Close())
	}

	_, err := Open(fsys, "missing", ORdOnly)
	require.Error(t, err)

	f, err := Open(fsys, "created", ORdWr|OCreate)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = os.Stat(filepath.Join(dir, "created"))
	require.NoError(t, err)
}

func TestRead_AdvancesCursor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data", []byte("abcdefgh"))
	pt, page := newUserPage(t)

	f, err := Open(fs.LocalFS{Root: dir}, "data", ORdOnly)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Read(pt, userVA, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), page[:3])
	assert.Equal(t, uint64(3), f.Offset())

	// Past EOF is a short read.
	n, err = f.Read(pt, userVA+100, 16)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("defgh"), page[100:105])

	f.SetOffset(1)
	n, err = f.Read(pt, userVA, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("bc"), page[:2])

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "out", make([]byte, 8))
	pt, page := newUserPage(t)
	copy(page, "XYZ")

	f, err := Open(fs.LocalFS{Root: dir}, "out", ORdWr)
	require.NoError(t, err)
	f.SetOffset(2)
	n, err := f.Write(pt, userVA, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(5), f.Offset())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'X', 'Y', 'Z', 0, 0, 0}, got)
}

func TestReadWrite_Permissions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f", []byte("x"))
	pt, _ := newUserPage(t)

	r, err := Open(fs.LocalFS{Root: dir}, "f", ORdOnly)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Write(pt, userVA, 1)
	assert.ErrorIs(t, err, ErrNotWritable)

	w, err := Open(fs.LocalFS{Root: dir}, "f", OWrOnly)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Read(pt, userVA, 1)
	assert.ErrorIs(t, err, ErrNotReadable)
}

func TestRead_BadUserAddress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f", []byte("x"))
	pt, _ := newUserPage(t)

	f, err := Open(fs.LocalFS{Root: dir}, "f", ORdOnly)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(pt, userVA+16*arch.PageSize, 1)
	assert.ErrorIs(t, err, pagetable.ErrBadAddress)
	assert.Equal(t, uint64(0), f.Offset())
}

func TestDupClose(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f", []byte("x"))

	f, err := Open(fs.LocalFS{Root: dir}, "f", ORdOnly)
	require.NoError(t, err)

	g := f.Dup()
	assert.Same(t, f, g)
	assert.Equal(t, 2, f.Refs())

	require.NoError(t, g.Close())
	assert.Equal(t, TypeInode, f.Type())
	require.NoError(t, f.Close())
	assert.Equal(t, TypeNone, f.Type())
	assert.Equal(t, 0, f.Refs())

	assert.Panics(t, func() { f.Dup() })
	assert.Panics(t, func() { _ = f.Close() })
}

func TestRead_InjectedFault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.img", []byte("data"))
	pt, _ := newUserPage(t)

	faulty := fs.NewFaultyFS(fs.LocalFS{Root: dir})
	faulty.AddRule("bad", fs.Fault{FailOnRead: true, FailAfterBytes: -1})

	f, err := Open(faulty, "bad.img", ORdOnly)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(pt, userVA, 4)
	require.Error(t, err)
	assert.Equal(t, uint64(0), f.Offset())
}

func TestPipe(t *testing.T) {
	pt, page := newUserPage(t)
	r, w := NewPipe()
	assert.Equal(t, TypePipe, r.Type())
	assert.True(t, r.Readable())
	assert.False(t, r.Writable())
	assert.True(t, w.Writable())

	copy(page, "ping")
	n, err := w.Write(pt, userVA, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = r.Read(pt, userVA+64, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("ping"), page[64:68])

	n, err = r.Read(pt, userVA, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, r.Close())
	_, err = w.Write(pt, userVA, 1)
	assert.ErrorIs(t, err, ErrBrokenPipe)
	require.NoError(t, w.Close())
}

func TestPipe_Full(t *testing.T) {
	pt, _ := newUserPage(t)
	_, w := NewPipe()

	n, err := w.Write(pt, userVA, PipeSize+10)
	require.NoError(t, err)
	assert.Equal(t, PipeSize, n)
}

type echoDevice struct{ last []byte }

func (d *echoDevice) Read(dst []byte) (int, error) { return copy(dst, d.last), nil }
func (d *echoDevice) Write(src []byte) (int, error) {
	d.last = append([]byte(nil), src...)
	return len(src), nil
}

func TestDevice(t *testing.T) {
	pt, page := newUserPage(t)
	dev := &echoDevice{}
	f := NewDevice("console", dev)
	assert.Equal(t, "console", f.Name())
	assert.Equal(t, "device", f.Type().String())

	copy(page, "hi")
	_, err := f.Write(pt, userVA, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), dev.last)

	n, err := f.Read(pt, userVA+10, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("hi"), page[10:12])
	assert.Equal(t, uint64(0), f.Offset())
}
