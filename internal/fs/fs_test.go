package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_Rooted(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{Root: tmp}

	f, err := lfs.OpenFile("disk.img", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := f.WriteAt([]byte("hello"), 4096)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, f.Sync())

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(4101), info.Size())
	require.NoError(t, f.Close())

	_, err = os.Stat(filepath.Join(tmp, "disk.img"))
	require.NoError(t, err)

	// Escaping the root is clamped to the root.
	_, err = lfs.Stat("../disk.img")
	require.NoError(t, err)

	require.NoError(t, lfs.Remove("disk.img"))
	_, err = lfs.Stat("disk.img")
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{Root: tmp})
	ffs.AddRule("limited", Fault{FailAfterBytes: 5})

	f, err := ffs.OpenFile("limited.bin", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := f.WriteAt([]byte("hello"), 0)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.WriteAt([]byte("!"), 5)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(5), ffs.Written())

	require.NoError(t, f.Close())
}

func TestFaultyFS_ReadFault(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "bad.bin"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "good.bin"), []byte("data"), 0o644))

	ffs := NewFaultyFS(LocalFS{Root: tmp})
	ffs.AddRule("bad", Fault{FailOnRead: true, FailAfterBytes: -1})

	bad, err := ffs.OpenFile("bad.bin", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.ReadAt(make([]byte, 4), 0)
	assert.Error(t, err)

	good, err := ffs.OpenFile("good.bin", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer good.Close()
	buf := make([]byte, 4)
	_, err = good.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf))
	assert.Equal(t, int64(1), ffs.Reads())
}

func TestFaultyFS_SyncAndClose(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{Root: tmp})
	ffs.AddRule("x", Fault{FailOnSync: true, FailOnClose: true, FailAfterBytes: -1})

	f, err := ffs.OpenFile("x.bin", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.Error(t, f.Sync())
	assert.Error(t, f.Close())

	_, err = ffs.Stat("x.bin")
	assert.NoError(t, err)
	assert.NoError(t, ffs.Remove("x.bin"))
}
