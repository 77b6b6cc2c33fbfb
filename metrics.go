package vmmap

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/vmmap/internal/mm"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordMmap is called after each mmap with the requested length.
	RecordMmap(length int64, duration time.Duration, err error)

	// RecordMunmap is called after each munmap with the number of pages
	// released.
	RecordMunmap(pages int, duration time.Duration, err error)

	// RecordFault is called after each page fault. inherited is true when
	// the page was copied from the parent instead of read from its file.
	RecordFault(inherited bool, duration time.Duration, err error)

	// RecordWriteback is called for each page written back to a file.
	RecordWriteback(bytes int, err error)

	// RecordKill is called when the kernel terminates a process.
	RecordKill(pid int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMmap(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordMunmap(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFault(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordWriteback(int, error)             {}
func (NoopMetricsCollector) RecordKill(int, error)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MmapCount       atomic.Int64
	MmapErrors      atomic.Int64
	MmapBytes       atomic.Int64
	MunmapCount     atomic.Int64
	MunmapErrors    atomic.Int64
	MunmapPages     atomic.Int64
	FaultCount      atomic.Int64
	FaultErrors     atomic.Int64
	FaultInherited  atomic.Int64
	FaultTotalNanos atomic.Int64
	WritebackCount  atomic.Int64
	WritebackErrors atomic.Int64
	WritebackBytes  atomic.Int64
	KillCount       atomic.Int64
}

// RecordMmap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMmap(length int64, _ time.Duration, err error) {
	b.MmapCount.Add(1)
	if err != nil {
		b.MmapErrors.Add(1)
		return
	}
	b.MmapBytes.Add(length)
}

// RecordMunmap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMunmap(pages int, _ time.Duration, err error) {
	b.MunmapCount.Add(1)
	b.MunmapPages.Add(int64(pages))
	if err != nil {
		b.MunmapErrors.Add(1)
	}
}

// RecordFault implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFault(inherited bool, duration time.Duration, err error) {
	b.FaultCount.Add(1)
	b.FaultTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FaultErrors.Add(1)
	}
	if inherited {
		b.FaultInherited.Add(1)
	}
}

// RecordWriteback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWriteback(bytes int, err error) {
	b.WritebackCount.Add(1)
	if err != nil {
		b.WritebackErrors.Add(1)
		return
	}
	b.WritebackBytes.Add(int64(bytes))
}

// RecordKill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordKill(int, error) {
	b.KillCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MmapCount:       b.MmapCount.Load(),
		MmapErrors:      b.MmapErrors.Load(),
		MmapBytes:       b.MmapBytes.Load(),
		MunmapCount:     b.MunmapCount.Load(),
		MunmapErrors:    b.MunmapErrors.Load(),
		MunmapPages:     b.MunmapPages.Load(),
		FaultCount:      b.FaultCount.Load(),
		FaultErrors:     b.FaultErrors.Load(),
		FaultInherited:  b.FaultInherited.Load(),
		FaultAvgNanos:   b.getAvgFaultNanos(),
		WritebackCount:  b.WritebackCount.Load(),
		WritebackErrors: b.WritebackErrors.Load(),
		WritebackBytes:  b.WritebackBytes.Load(),
		KillCount:       b.KillCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFaultNanos() int64 {
	count := b.FaultCount.Load()
	if count == 0 {
		return 0
	}
	return b.FaultTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MmapCount       int64
	MmapErrors      int64
	MmapBytes       int64
	MunmapCount     int64
	MunmapErrors    int64
	MunmapPages     int64
	FaultCount      int64
	FaultErrors     int64
	FaultInherited  int64
	FaultAvgNanos   int64
	WritebackCount  int64
	WritebackErrors int64
	WritebackBytes  int64
	KillCount       int64
}

// kernelObserver feeds memory manager events into the kernel counters and
// the configured collector.
type kernelObserver struct {
	mc MetricsCollector

	faults     atomic.Uint64
	fatal      atomic.Uint64
	inherited  atomic.Uint64
	writebacks atomic.Uint64
}

var _ mm.Observer = (*kernelObserver)(nil)

func (o *kernelObserver) OnMmap(d time.Duration, length int64, err error) {
	o.mc.RecordMmap(length, d, err)
}

func (o *kernelObserver) OnMunmap(d time.Duration, pages int, err error) {
	o.mc.RecordMunmap(pages, d, err)
}

func (o *kernelObserver) OnFault(d time.Duration, _ mm.AccessType, inherited bool, err error) {
	o.faults.Add(1)
	if err != nil {
		o.fatal.Add(1)
	}
	if inherited {
		o.inherited.Add(1)
	}
	o.mc.RecordFault(inherited, d, err)
}

func (o *kernelObserver) OnWriteback(bytes int, err error) {
	o.writebacks.Add(1)
	o.mc.RecordWriteback(bytes, err)
}
