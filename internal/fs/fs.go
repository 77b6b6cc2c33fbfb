package fs

import (
	"io"
	"os"
	"path/filepath"
)

// File is an open inode.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem abstracts the disk for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
}

// LocalFS implements FileSystem on the host. A non-empty Root confines
// relative names to that directory.
type LocalFS struct {
	Root string
}

func (l LocalFS) path(name string) string {
	if l.Root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.Root, filepath.Clean("/"+name))
}

func (l LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(l.path(name), flag, perm)
}

func (l LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(l.path(name)) }
func (l LocalFS) Remove(name string) error              { return os.Remove(l.path(name)) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}
