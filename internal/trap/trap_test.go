package trap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vmmap/internal/arch"
	"github.com/hupe1980/vmmap/internal/mm"
)

type fakeProc struct {
	frame    Frame
	killed   bool
	syscalls int
	faults   []mm.AccessType
	faultAt  []uint64
	faultErr error
	onCall   func(*fakeProc)
}

func (p *fakeProc) PID() int      { return 3 }
func (p *fakeProc) Frame() *Frame { return &p.frame }
func (p *fakeProc) Killed() bool  { return p.killed }
func (p *fakeProc) SetKilled()    { p.killed = true }
func (p *fakeProc) Syscall(context.Context) {
	p.syscalls++
	if p.onCall != nil {
		p.onCall(p)
	}
}

func (p *fakeProc) Fault(_ context.Context, addr uint64, at mm.AccessType) error {
	p.faults = append(p.faults, at)
	p.faultAt = append(p.faultAt, addr)
	return p.faultErr
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindSyscall, Classify(arch.CauseUserEcall))
	assert.Equal(t, KindDevice, Classify(arch.CauseSupervisorExternal))
	assert.Equal(t, KindTimer, Classify(arch.CauseSupervisorSoftware))
	assert.Equal(t, KindLoadFault, Classify(arch.CauseLoadPageFault))
	assert.Equal(t, KindStoreFault, Classify(arch.CauseStorePageFault))
	assert.Equal(t, KindUnknown, Classify(arch.CauseInstructionPageFault))
	assert.Equal(t, KindUnknown, Classify(2))
	assert.Equal(t, "store fault", KindStoreFault.String())
}

func TestUserTrap_Syscall(t *testing.T) {
	d := NewDispatcher(&Clock{})
	p := &fakeProc{frame: Frame{Scause: arch.CauseUserEcall, Epc: 0x1000}}

	out := d.UserTrap(t.Context(), p)
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, 1, p.syscalls)
	assert.Equal(t, uint64(0x1004), p.frame.Epc)
}

func TestUserTrap_SyscallWhenKilled(t *testing.T) {
	d := NewDispatcher(&Clock{})
	p := &fakeProc{frame: Frame{Scause: arch.CauseUserEcall, Epc: 0x1000}, killed: true}

	out := d.UserTrap(t.Context(), p)
	assert.True(t, out.Exit)
	assert.Equal(t, 0, p.syscalls)
	assert.Equal(t, uint64(0x1000), p.frame.Epc)
}

func TestUserTrap_SyscallKilledDuringCall(t *testing.T) {
	d := NewDispatcher(&Clock{})
	p := &fakeProc{
		frame:  Frame{Scause: arch.CauseUserEcall},
		onCall: func(p *fakeProc) { p.killed = true },
	}
	assert.True(t, d.UserTrap(t.Context(), p).Exit)
}

func TestUserTrap_PageFault(t *testing.T) {
	d := NewDispatcher(&Clock{})

	p := &fakeProc{frame: Frame{Scause: arch.CauseLoadPageFault, Stval: 0xdead}}
	out := d.UserTrap(t.Context(), p)
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, []mm.AccessType{mm.Load}, p.faults)
	assert.Equal(t, []uint64{0xdead}, p.faultAt)

	p = &fakeProc{frame: Frame{Scause: arch.CauseStorePageFault, Stval: 0xbeef}}
	d.UserTrap(t.Context(), p)
	assert.Equal(t, []mm.AccessType{mm.Store}, p.faults)
	assert.False(t, p.killed)
}

func TestUserTrap_FatalFaultKills(t *testing.T) {
	var killedPID int
	var killErr error
	d := NewDispatcher(&Clock{}, WithKillHook(func(pid int, err error) {
		killedPID, killErr = pid, err
	}))

	cause := errors.New("boom")
	p := &fakeProc{frame: Frame{Scause: arch.CauseStorePageFault}, faultErr: cause}
	out := d.UserTrap(t.Context(), p)
	assert.True(t, out.Exit)
	assert.True(t, p.killed)
	assert.Equal(t, 3, killedPID)
	require.ErrorIs(t, killErr, cause)
}

func TestUserTrap_UnknownCauseKills(t *testing.T) {
	d := NewDispatcher(&Clock{})
	p := &fakeProc{frame: Frame{Scause: arch.CauseInstructionPageFault}}

	out := d.UserTrap(t.Context(), p)
	assert.True(t, out.Exit)
	assert.Empty(t, p.faults)
}

func TestUserTrap_TimerYields(t *testing.T) {
	clock := &Clock{}
	d := NewDispatcher(clock)
	p := &fakeProc{frame: Frame{Scause: arch.CauseSupervisorSoftware}}

	out := d.UserTrap(t.Context(), p)
	assert.Equal(t, Outcome{Yield: true}, out)
	assert.Equal(t, uint64(1), clock.Ticks())
	assert.Same(t, clock, d.Clock())

	// A killed process exits rather than yields.
	p.killed = true
	assert.Equal(t, Outcome{Exit: true}, d.UserTrap(t.Context(), p))
}

func TestUserTrap_Device(t *testing.T) {
	plic := NewPLIC()
	var served []uint32
	d := NewDispatcher(&Clock{},
		WithInterruptController(plic),
		WithDevice(10, func(irq uint32) { served = append(served, irq) }),
	)
	p := &fakeProc{frame: Frame{Scause: arch.CauseSupervisorExternal}}

	require.True(t, plic.Raise(10))
	assert.False(t, plic.Raise(10))
	require.True(t, plic.Raise(1))

	assert.Equal(t, Outcome{}, d.UserTrap(t.Context(), p))
	assert.Equal(t, []uint32{10}, served)

	// Unregistered sources are still completed.
	d.UserTrap(t.Context(), p)
	assert.Equal(t, uint64(2), plic.Completed())

	// Spurious: nothing pending.
	d.UserTrap(t.Context(), p)
	assert.Equal(t, uint64(2), plic.Completed())
	assert.True(t, plic.Raise(10))
}
