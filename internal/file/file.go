// Package file implements the kernel's open-file objects.
//
// A File is what a descriptor points at: an inode on disk, one end of a
// pipe, or a device. Inode reads and writes move bytes between the disk and
// a process's user memory through its page table and advance a cursor that
// is shared by every descriptor duplicated from the same open.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/vmmap/internal/fs"
	"github.com/hupe1980/vmmap/internal/pagetable"
)

// Type tells what a File is backed by.
type Type int

const (
	TypeNone Type = iota
	TypePipe
	TypeInode
	TypeDevice
)

func (t Type) String() string {
	switch t {
	case TypePipe:
		return "pipe"
	case TypeInode:
		return "inode"
	case TypeDevice:
		return "device"
	default:
		return "none"
	}
}

// Open modes, xv6 fcntl values.
const (
	ORdOnly = 0x000
	OWrOnly = 0x001
	ORdWr   = 0x002
	OCreate = 0x200
	OTrunc  = 0x400
)

var (
	// ErrNotReadable is returned when reading a file opened write-only.
	ErrNotReadable = errors.New("file: not readable")
	// ErrNotWritable is returned when writing a file opened read-only.
	ErrNotWritable = errors.New("file: not writable")
	// ErrClosed is returned for operations on a file whose last reference
	// has been dropped.
	ErrClosed = errors.New("file: closed")
)

// Device is the driver behind a TypeDevice file.
type Device interface {
	Read(dst []byte) (int, error)
	Write(src []byte) (int, error)
}

// File is an open file.
type File struct {
	mu       sync.Mutex
	typ      Type
	ref      int
	readable bool
	writable bool
	off      uint64
	name     string

	ip   fs.File
	pipe *pipe
	dev  Device
}

// Open opens name on fsys with an xv6 open mode.
func Open(fsys fs.FileSystem, name string, mode int) (*File, error) {
	flag := os.O_RDONLY
	switch {
	case mode&ORdWr != 0:
		flag = os.O_RDWR
	case mode&OWrOnly != 0:
		flag = os.O_WRONLY
	}
	if mode&OCreate != 0 {
		flag |= os.O_CREATE
	}
	if mode&OTrunc != 0 {
		flag |= os.O_TRUNC
	}

	ip, err := fsys.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", name, err)
	}

	return &File{
		typ:      TypeInode,
		ref:      1,
		readable: mode&OWrOnly == 0,
		writable: mode&(OWrOnly|ORdWr) != 0,
		name:     name,
		ip:       ip,
	}, nil
}

// NewDevice wraps a device driver in a readable and writable file.
func NewDevice(name string, dev Device) *File {
	return &File{typ: TypeDevice, ref: 1, readable: true, writable: true, name: name, dev: dev}
}

// Type returns what backs the file.
func (f *File) Type() Type { return f.typ }

// Name returns the path or label the file was opened with.
func (f *File) Name() string { return f.name }

// Readable reports whether the file was opened for reading.
func (f *File) Readable() bool { return f.readable }

// Writable reports whether the file was opened for writing.
func (f *File) Writable() bool { return f.writable }

// Dup adds a reference and returns f.
func (f *File) Dup() *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ref < 1 {
		panic("file: dup of closed file")
	}
	f.ref++
	return f
}

// Refs returns the current reference count.
func (f *File) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ref
}

// Close drops one reference; the last one releases the backing object.
func (f *File) Close() error {
	f.mu.Lock()
	if f.ref < 1 {
		f.mu.Unlock()
		panic("file: close of closed file")
	}
	f.ref--
	if f.ref > 0 {
		f.mu.Unlock()
		return nil
	}
	ip, p, w := f.ip, f.pipe, f.writable
	f.ip, f.pipe, f.dev = nil, nil, nil
	f.typ = TypeNone
	f.mu.Unlock()

	switch {
	case ip != nil:
		return ip.Close()
	case p != nil:
		p.close(w)
	}
	return nil
}

// Offset returns the shared read/write cursor.
func (f *File) Offset() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.off
}

// SetOffset moves the shared read/write cursor.
func (f *File) SetOffset(off uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.off = off
}

// Size returns the inode size, or 0 for other file types.
func (f *File) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ip == nil {
		return 0, nil
	}
	info, err := f.ip.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Read reads up to n bytes at the cursor into user memory at va and
// advances the cursor. Reading past the end of an inode yields a short
// count, not an error.
func (f *File) Read(pt *pagetable.PageTable, va uint64, n int) (int, error) {
	if !f.readable {
		return 0, ErrNotReadable
	}
	buf := make([]byte, n)

	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		got int
		err error
	)
	switch f.typ {
	case TypeInode:
		got, err = f.ip.ReadAt(buf, int64(f.off)) //nolint:gosec // offsets stay far below 2^63
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case TypePipe:
		got, err = f.pipe.read(buf)
	case TypeDevice:
		got, err = f.dev.Read(buf)
	default:
		return 0, ErrClosed
	}
	if err != nil {
		return 0, fmt.Errorf("file: read %s: %w", f.name, err)
	}

	if err := pt.CopyOut(va, buf[:got]); err != nil {
		return 0, err
	}
	if f.typ == TypeInode {
		f.off += uint64(got) //nolint:gosec // got >= 0
	}
	return got, nil
}

// Write writes n bytes of user memory at va at the cursor and advances it.
func (f *File) Write(pt *pagetable.PageTable, va uint64, n int) (int, error) {
	if !f.writable {
		return 0, ErrNotWritable
	}
	buf := make([]byte, n)
	if err := pt.CopyIn(buf, va); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		put int
		err error
	)
	switch f.typ {
	case TypeInode:
		put, err = f.ip.WriteAt(buf, int64(f.off)) //nolint:gosec // offsets stay far below 2^63
		f.off += uint64(put)                        //nolint:gosec // put >= 0
	case TypePipe:
		put, err = f.pipe.write(buf)
	case TypeDevice:
		put, err = f.dev.Write(buf)
	default:
		return 0, ErrClosed
	}
	if err != nil {
		return put, fmt.Errorf("file: write %s: %w", f.name, err)
	}
	return put, nil
}
