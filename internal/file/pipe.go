package file

import (
	"errors"
	"sync"
)

// PipeSize is the pipe buffer capacity.
const PipeSize = 512

// ErrBrokenPipe is returned when writing a pipe whose read end is closed.
var ErrBrokenPipe = errors.New("file: broken pipe")

// pipe is a bounded byte queue shared by a read and a write file. Without
// a scheduler there is nobody to sleep on, so a full pipe accepts a short
// write and an empty one returns zero bytes.
type pipe struct {
	mu        sync.Mutex
	data      [PipeSize]byte
	nread     uint
	nwrite    uint
	readOpen  bool
	writeOpen bool
}

// NewPipe returns the read and write ends of a new pipe.
func NewPipe() (*File, *File) {
	p := &pipe{readOpen: true, writeOpen: true}
	r := &File{typ: TypePipe, ref: 1, readable: true, name: "pipe", pipe: p}
	w := &File{typ: TypePipe, ref: 1, writable: true, name: "pipe", pipe: p}
	return r, w
}

func (p *pipe) write(src []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.readOpen {
		return 0, ErrBrokenPipe
	}
	n := 0
	for ; n < len(src) && p.nwrite-p.nread < PipeSize; n++ {
		p.data[p.nwrite%PipeSize] = src[n]
		p.nwrite++
	}
	return n, nil
}

func (p *pipe) read(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for ; n < len(dst) && p.nread < p.nwrite; n++ {
		dst[n] = p.data[p.nread%PipeSize]
		p.nread++
	}
	return n, nil
}

func (p *pipe) close(writable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if writable {
		p.writeOpen = false
	} else {
		p.readOpen = false
	}
}
