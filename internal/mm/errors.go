package mm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by Mmap and Munmap for malformed
	// requests. Nothing is changed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPermissionDenied is returned when the requested protection exceeds
	// what the file was opened for.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrResourceExhausted is returned when no region slot, block pool or
	// window space is left for a mapping.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrNotFound is returned by Munmap when no live block has the address.
	ErrNotFound = errors.New("mapping not found")

	// ErrFatalFault marks a page fault the process cannot survive.
	ErrFatalFault = errors.New("fatal page fault")

	// ErrNoMapping is the cause of a fault outside every live region.
	ErrNoMapping = errors.New("no mapping at address")

	// ErrAccessViolation is the cause of a fault the region's protection forbids.
	ErrAccessViolation = errors.New("access violation")
)

// FaultError describes an unresolvable page fault. It matches both
// ErrFatalFault and its cause under errors.Is.
type FaultError struct {
	Addr   uint64
	Access AccessType
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s fault at %#x: %v", e.Access, e.Addr, e.Err)
}

func (e *FaultError) Unwrap() []error { return []error{ErrFatalFault, e.Err} }
