// Package trap routes user traps: system calls, device and timer
// interrupts, and page faults.
package trap

import (
	"context"
	"log/slog"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/mm"
)

// Frame is the saved user state of a trap: the cause registers and the
// argument registers a0..a7.
type Frame struct {
	Scause uint64
	Stval  uint64
	Epc    uint64
	A      [8]uint64
}

// Process is what the dispatcher needs from the trapping process.
type Process interface {
	PID() int
	Frame() *Frame
	Killed() bool
	SetKilled()
	// Fault resolves a page fault at addr.
	Fault(ctx context.Context, addr uint64, at mm.AccessType) error
	// Syscall runs the system call described by the frame.
	Syscall(ctx context.Context)
}

// Outcome tells the caller what to do on the way back to user mode.
type Outcome struct {
	// Exit is set when the process must terminate instead of resuming.
	Exit bool
	// Yield is set after a timer interrupt.
	Yield bool
}

// Kind classifies a trap cause.
type Kind int

const (
	KindUnknown Kind = iota
	KindSyscall
	KindDevice
	KindTimer
	KindLoadFault
	KindStoreFault
)

func (k Kind) String() string {
	switch k {
	case KindSyscall:
		return "syscall"
	case KindDevice:
		return "device"
	case KindTimer:
		return "timer"
	case KindLoadFault:
		return "load fault"
	case KindStoreFault:
		return "store fault"
	default:
		return "unknown"
	}
}

// Classify maps an scause value to its kind.
func Classify(scause uint64) Kind {
	switch scause {
	case arch.CauseUserEcall:
		return KindSyscall
	case arch.CauseSupervisorExternal:
		return KindDevice
	case arch.CauseSupervisorSoftware:
		return KindTimer
	case arch.CauseLoadPageFault:
		return KindLoadFault
	case arch.CauseStorePageFault:
		return KindStoreFault
	default:
		return KindUnknown
	}
}

// DeviceHandler services one interrupt source.
type DeviceHandler func(irq uint32)

// Dispatcher is the user trap handler shared by all processes.
type Dispatcher struct {
	clock   *Clock
	plic    InterruptController
	devices map[uint32]DeviceHandler
	logger  *slog.Logger
	onKill  func(pid int, err error)
}

// Option defines a configuration option for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithInterruptController sets the controller claimed on external interrupts.
func WithInterruptController(ic InterruptController) Option {
	return func(d *Dispatcher) {
		d.plic = ic
	}
}

// WithDevice registers the handler for irq.
func WithDevice(irq uint32, h DeviceHandler) Option {
	return func(d *Dispatcher) {
		d.devices[irq] = h
	}
}

// WithKillHook is called whenever a trap kills a process.
func WithKillHook(fn func(pid int, err error)) Option {
	return func(d *Dispatcher) {
		d.onKill = fn
	}
}

// NewDispatcher creates a dispatcher ticking clock on timer interrupts.
func NewDispatcher(clock *Clock, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:   clock,
		plic:    NewPLIC(),
		devices: make(map[uint32]DeviceHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Clock returns the tick counter.
func (d *Dispatcher) Clock() *Clock { return d.clock }

// UserTrap handles one trap taken from user mode.
//
// A system call advances epc past the ecall before running. A page fault
// the process cannot resolve kills it, as does any unexpected cause. A
// killed process is told to exit; a timer interrupt asks it to yield.
func (d *Dispatcher) UserTrap(ctx context.Context, p Process) Outcome {
	f := p.Frame()
	kind := Classify(f.Scause)

	switch kind {
	case KindSyscall:
		if p.Killed() {
			return Outcome{Exit: true}
		}
		f.Epc += 4
		p.Syscall(ctx)
	case KindDevice:
		d.deviceInterrupt()
	case KindTimer:
		d.clock.Tick()
	case KindLoadFault, KindStoreFault:
		at := mm.Load
		if kind == KindStoreFault {
			at = mm.Store
		}
		if err := p.Fault(ctx, f.Stval, at); err != nil {
			d.kill(p, err)
		}
	default:
		if d.logger != nil {
			d.logger.Warn("unexpected scause", "pid", p.PID(), "scause", f.Scause, "sepc", f.Epc, "stval", f.Stval)
		}
		d.kill(p, nil)
	}

	if p.Killed() {
		return Outcome{Exit: true}
	}
	return Outcome{Yield: kind == KindTimer}
}

func (d *Dispatcher) kill(p Process, err error) {
	p.SetKilled()
	if d.logger != nil && err != nil {
		d.logger.Info("killing process", "pid", p.PID(), "error", err)
	}
	if d.onKill != nil {
		d.onKill(p.PID(), err)
	}
}

func (d *Dispatcher) deviceInterrupt() {
	irq := d.plic.Claim()
	if irq == 0 {
		return
	}
	if h, ok := d.devices[irq]; ok {
		h(irq)
	} else if d.logger != nil {
		d.logger.Warn("unexpected interrupt", "irq", irq)
	}
	d.plic.Complete(irq)
}
