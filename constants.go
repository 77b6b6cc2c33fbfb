package vmmap

import (
	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/file"
	"github.com/hupe1980/vmmap/internal/syscall"
)

// PageSize is the size of a page and of a physical frame.
const PageSize = arch.PageSize

// Mapping window. Every mapping is placed between these addresses, just
// below the trapframe page.
const (
	MmapWindowStart = arch.MmapWindowStart
	MmapWindowEnd   = arch.MmapWindowEnd
)

// Protection bits for Mmap.
const (
	ProtNone  = arch.ProtNone
	ProtRead  = arch.ProtRead
	ProtWrite = arch.ProtWrite
	ProtExec  = arch.ProtExec
)

// Mapping flags for Mmap. Exactly one must be given.
const (
	MapShared  = arch.MapShared
	MapPrivate = arch.MapPrivate
)

// Open modes.
const (
	ORdOnly = file.ORdOnly
	OWrOnly = file.OWrOnly
	ORdWr   = file.ORdWr
	OCreate = file.OCreate
	OTrunc  = file.OTrunc
)

// System call numbers accepted by Process.Syscall.
const (
	SysFork    = syscall.SysFork
	SysExit    = syscall.SysExit
	SysKill    = syscall.SysKill
	SysGetpid  = syscall.SysGetpid
	SysUptime  = syscall.SysUptime
	SysMmap    = syscall.SysMmap
	SysMunmap  = syscall.SysMunmap
	SysVmprint = syscall.SysVmprint
)

// SyscallFail is the result of a failed system call (-1).
const SyscallFail = syscall.Fail
