// Package resource governs the two budgets the mapping subsystem consumes.
//
//   - Resident memory: every page a fault makes resident is charged against
//     a global limit and refunded when it is unmapped. Acquisition is
//     non-blocking; a refused charge fails the fault.
//   - File IO: fault-in reads and writeback writes pass through a token
//     bucket so one process streaming a large file cannot monopolize the disk.
//
//	rc := resource.NewController(resource.Config{
//	    ResidentLimitBytes: 64 << 20,
//	    IOLimitBytesPerSec: 16 << 20,
//	})
//
//	if err := rc.AcquireMemory(4096); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(4096)
//
// All methods are safe for concurrent use and treat a nil Controller as
// unlimited.
package resource
