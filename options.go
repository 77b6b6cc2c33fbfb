package vmmap

import (
	"io"
	"log/slog"

	"github.com/hupe1980/vmmap/internal/fs"
)

// FileSystem is the disk the kernel opens files on.
type FileSystem = fs.FileSystem

type options struct {
	cfg              Config
	fsys             FileSystem
	console          io.Writer
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures the kernel built by New.
type Option func(*options)

// WithConfig replaces every setting with cfg. Later options still apply on
// top of it.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithMemory sets the size of simulated physical RAM in bytes.
func WithMemory(bytes int64) Option {
	return func(o *options) {
		o.cfg.MemoryBytes = bytes
	}
}

// WithMaxProcs caps the number of live processes.
func WithMaxProcs(n int) Option {
	return func(o *options) {
		o.cfg.MaxProcs = n
	}
}

// WithResidentLimit caps the bytes of mapped pages resident at once across
// all processes. A fault beyond the limit kills the faulting process.
func WithResidentLimit(bytes int64) Option {
	return func(o *options) {
		o.cfg.ResidentLimitBytes = bytes
	}
}

// WithIORate throttles fault-in reads and writeback to bytesPerSec.
func WithIORate(bytesPerSec int64) Option {
	return func(o *options) {
		o.cfg.IOBytesPerSec = bytesPerSec
	}
}

// WithRootDir resolves relative file names against dir.
func WithRootDir(dir string) Option {
	return func(o *options) {
		o.cfg.RootDir = dir
	}
}

// WithFileSystem replaces the host file system. RootDir is ignored.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithConsole sets where vmprint output goes. Defaults to io.Discard.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vmmap.BasicMetricsCollector{}
//	k, _ := vmmap.New(vmmap.WithMetricsCollector(metrics))
//	// ... run processes ...
//	stats := metrics.GetStats()
//	fmt.Printf("Faults: %d, Avg latency: %dns\n", stats.FaultCount, stats.FaultAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vmmap.NewJSONLogger(slog.LevelInfo)
//	k, _ := vmmap.New(vmmap.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) (options, error) {
	o := options{
		console: io.Discard,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if err := o.cfg.Validate(); err != nil {
		return o, err
	}
	o.cfg = o.cfg.withDefaults()

	if o.logger == nil {
		if lvl, ok, _ := o.cfg.level(); ok {
			o.logger = NewTextLogger(lvl)
		} else {
			o.logger = NoopLogger()
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.fsys == nil {
		o.fsys = fs.LocalFS{Root: o.cfg.RootDir}
	}
	if o.console == nil {
		o.console = io.Discard
	}
	return o, nil
}
