package main

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intuitionamiga/nyxbox/logger"
)

// counterDevice counts writes to slot 0; safe across goroutines.
type counterDevice struct {
	n atomic.Uint32
}

func (d *counterDevice) Read(reg uint32) uint32 { return d.n.Load() }

func (d *counterDevice) Write(reg uint32, value uint32) { d.n.Add(1) }

const testCounterBase = 0x08000000

func newTestMachine(t *testing.T, src string) (*Machine, *counterDevice) {
	t.Helper()
	img, err := AssembleIE32(src, 0)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	ram := make([]byte, testStackTop)
	copy(ram, img)

	as := NewAddressSpace()
	m := NewMachine(NewIE32Engine(as, testStackTop), as, NewWakeSignal())
	if err := m.MapMemory(0, ram, PERM_ALL); err != nil {
		t.Fatal(err)
	}
	dev := &counterDevice{}
	if err := m.MapPeripheral(testCounterBase, 0x1000, dev); err != nil {
		t.Fatal(err)
	}
	return m, dev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func stopWithin(t *testing.T, ctx *MachineRunContext) {
	t.Helper()
	stopped := make(chan struct{})
	go func() {
		ctx.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop deadlocked")
	}
}

const wfiLoop = `
loop:   STORE A, @0x08000000
        WFI
        JMP loop
`

func TestWakeSignal_Coalesces(t *testing.T) {
	s := NewWakeSignal()
	s.Raise()
	s.Raise()
	s.Raise()
	s.Wait()
	select {
	case <-s.ch:
		t.Fatal("more than one pending wakeup remembered")
	default:
	}
}

func TestMachine_RaiseSignalResumesOnce(t *testing.T) {
	m, dev := newTestMachine(t, wfiLoop)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer stopWithin(t, ctx)

	waitFor(t, "first WFI", func() bool { return dev.n.Load() == 1 && ctx.IsWaiting() })
	for i := uint32(2); i <= 5; i++ {
		ctx.RaiseSignal()
		waitFor(t, "resume", func() bool { return dev.n.Load() == i && ctx.IsWaiting() })
	}
	if ctx.Wakeups() != 4 {
		t.Fatalf("wakeups = %d, want 4", ctx.Wakeups())
	}
}

func TestMachine_StopWhileParked(t *testing.T) {
	m, dev := newTestMachine(t, wfiLoop)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "park", func() bool { return dev.n.Load() == 1 && ctx.IsWaiting() })
	stopWithin(t, ctx)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if dev.n.Load() != 1 {
		t.Fatal("guest resumed during shutdown")
	}
	stopWithin(t, ctx) // idempotent
}

func TestMachine_StopSpinningGuest(t *testing.T) {
	m, dev := newTestMachine(t, `
loop:   STORE A, @0x08000000
        JMP loop
`)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "guest running", func() bool { return dev.n.Load() > 100 })
	stopWithin(t, ctx)
}

func TestMachine_HaltedGuestIsNotReentered(t *testing.T) {
	m, dev := newTestMachine(t, `
        STORE A, @0x08000000
        HALT
`)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "halt", func() bool { return ctx.Halted() && ctx.IsWaiting() })
	ctx.RaiseSignal()
	ctx.RaiseSignal()
	time.Sleep(10 * time.Millisecond)
	if dev.n.Load() != 1 || ctx.Wakeups() != 0 {
		t.Fatalf("halted guest re-entered: writes=%d wakeups=%d", dev.n.Load(), ctx.Wakeups())
	}
	stopWithin(t, ctx)
}

func TestMachine_EngineFaultIsLogged(t *testing.T) {
	logger.Clear()
	m, _ := newTestMachine(t, `
        LOAD A, #1
        DIV A, #0
`)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "fault", ctx.Halted)
	stopWithin(t, ctx)

	var sb strings.Builder
	logger.Write(&sb)
	if !strings.Contains(sb.String(), "division by zero") {
		t.Fatalf("fault not logged:\n%s", sb.String())
	}
}

func TestMachine_DefaultTrapHookLogs(t *testing.T) {
	logger.Clear()
	m, _ := newTestMachine(t, `
        LOAD A, #0x1234
        SWI #9
        HALT
`)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "halt", ctx.Halted)
	stopWithin(t, ctx)

	var sb strings.Builder
	logger.Write(&sb)
	if !strings.Contains(sb.String(), "SWI 9") || !strings.Contains(sb.String(), "R0=$00001234") {
		t.Fatalf("trap not logged:\n%s", sb.String())
	}
}

func TestMachine_RunOnceAndSealed(t *testing.T) {
	m, _ := newTestMachine(t, wfiLoop)
	ctx, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer stopWithin(t, ctx)

	if _, err := m.Run(); !errors.Is(err, ErrMachineStarted) {
		t.Fatalf("second Run = %v, want ErrMachineStarted", err)
	}
	if err := m.MapMemory(0x100000, make([]byte, 16), PERM_ALL); err == nil {
		t.Fatal("mapping accepted after Run")
	}
}
