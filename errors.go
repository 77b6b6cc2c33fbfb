package vmmap

import (
	"errors"

	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/mm"
	"github.com/hupe1980/vmmap/internal/phys"
	"github.com/hupe1980/vmmap/internal/proc"
	"github.com/hupe1980/vmmap/internal/resource"
)

// Mapping errors. They are the values returned by the memory manager, so
// errors.Is works on anything a Process method returns.
var (
	ErrInvalidArgument   = mm.ErrInvalidArgument
	ErrPermissionDenied  = mm.ErrPermissionDenied
	ErrResourceExhausted = mm.ErrResourceExhausted
	ErrNotFound          = mm.ErrNotFound
	ErrFatalFault        = mm.ErrFatalFault
	ErrNoMapping         = mm.ErrNoMapping
	ErrAccessViolation   = mm.ErrAccessViolation
)

// Process and kernel errors.
var (
	// ErrKilled is returned by every operation of a process that has been
	// terminated.
	ErrKilled = proc.ErrKilled
	// ErrBadFd is returned for a descriptor that is not open.
	ErrBadFd = proc.ErrBadFd
	// ErrNoProc is returned by Fork when the process table is full.
	ErrNoProc = proc.ErrNoProc
	// ErrNoSuchProcess is returned by Kill and Kernel.Process for unknown pids.
	ErrNoSuchProcess = proc.ErrNoSuchProcess
	// ErrOutOfMemory is the cause when no physical frame is left.
	ErrOutOfMemory = phys.ErrOutOfMemory
	// ErrMemoryLimitExceeded is the cause when the resident budget is spent.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
	// ErrNotReadable is returned when reading a file opened write-only.
	ErrNotReadable = file.ErrNotReadable
	// ErrNotWritable is returned when writing a file opened read-only.
	ErrNotWritable = file.ErrNotWritable

	// ErrClosed is returned by every operation after Kernel.Close.
	ErrClosed = errors.New("kernel is closed")
	// ErrInvalidConfig is returned by New and LoadConfig for bad settings.
	ErrInvalidConfig = errors.New("invalid config")
)

// FaultError describes an unresolvable page fault. It matches ErrFatalFault
// and its cause.
type FaultError = mm.FaultError
