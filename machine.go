// machine.go - CPU worker, wakeup signal and run context

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

/*
machine.go - CPU worker, wakeup signal and run context

The machine owns the address space and the CPU engine. Run starts a single
worker goroutine that executes guest code until the engine stops on WFI, then
parks on the wakeup signal until the host raises it:

    RUNNING --(WFI)--> WAITING --(RaiseSignal)--> RUNNING
                          |
                          +--(Stop)--> exit

Wakeups carry no reason. After a wakeup the guest polls its peripherals.

A guest that halts or faults is never re-entered; the worker stays parked
until Stop.
*/

package main

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/intuitionamiga/nyxbox/logger"
)

// WakeSignal is an auto-reset event. Raising it while a wakeup is already
// pending is a no-op, so at most one wakeup is remembered.
type WakeSignal struct {
	ch chan struct{}
}

func NewWakeSignal() *WakeSignal {
	return &WakeSignal{ch: make(chan struct{}, 1)}
}

// Raise releases one Wait, now or in the future.
func (s *WakeSignal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is raised and consumes the wakeup.
func (s *WakeSignal) Wait() {
	<-s.ch
}

var ErrMachineStarted = errors.New("machine: already running")

type Machine struct {
	engine CPUEngine
	bus    *AddressSpace
	signal *WakeSignal

	bootPC  uint32
	started atomic.Bool
}

// NewMachine wires an engine to its address space and wakeup signal. The
// engine's trap hook is replaced by one that logs SWI numbers and R0.
func NewMachine(engine CPUEngine, bus *AddressSpace, signal *WakeSignal) *Machine {
	m := &Machine{
		engine: engine,
		bus:    bus,
		signal: signal,
	}
	engine.SetTrapHook(defaultTrapHook)
	return m
}

func defaultTrapHook(e CPUEngine, number uint32) {
	logger.Logf("machine", "SWI %d at PC=$%08X (R0=$%08X)", number, e.PC(), e.Register(0))
}

// MapMemory maps a raw host buffer. Overlaps are configuration errors.
func (m *Machine) MapMemory(base uint32, mem []byte, perm Permission) error {
	_, err := m.bus.MapRegion(base, mem, perm)
	return err
}

// MapPeripheral maps a device behind a power-of-two register window.
func (m *Machine) MapPeripheral(base, length uint32, dev Peripheral) error {
	return m.bus.MapPeripheral(base, length, dev)
}

func (m *Machine) SetBootPC(pc uint32)       { m.bootPC = pc }
func (m *Machine) SetTrapHook(hook TrapHook) { m.engine.SetTrapHook(hook) }
func (m *Machine) Bus() *AddressSpace        { return m.bus }

// Run seals the address space and starts the CPU worker. It may be called
// once.
func (m *Machine) Run() (*MachineRunContext, error) {
	if !m.started.CompareAndSwap(false, true) {
		return nil, ErrMachineStarted
	}
	m.bus.Seal()

	ctx := &MachineRunContext{
		engine: m.engine,
		signal: m.signal,
		done:   make(chan struct{}),
	}
	go ctx.worker(m.bootPC)
	return ctx, nil
}

// MachineRunContext is the host's handle on a running worker.
type MachineRunContext struct {
	engine CPUEngine
	signal *WakeSignal

	stopping atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	waiting atomic.Bool
	halted  atomic.Bool
	wakeups atomic.Uint64
}

func (c *MachineRunContext) worker(pc uint32) {
	defer close(c.done)

	for {
		reason, err := c.engine.Run(pc, RUN_UNBOUNDED)
		pc = c.engine.PC()

		switch {
		case err != nil:
			logger.Logf("machine", "engine fault: %v", err)
			c.halted.Store(true)
		case reason == StopHalt:
			logger.Logf("machine", "guest halted at PC=$%08X", pc)
			c.halted.Store(true)
		case reason == StopInterrupted && c.stopping.Load():
			return
		}

		for {
			c.waiting.Store(true)
			c.signal.Wait()
			c.waiting.Store(false)
			if c.stopping.Load() {
				return
			}
			if !c.halted.Load() {
				break
			}
		}
		c.wakeups.Add(1)
	}
}

// RaiseSignal wakes a parked worker once. Signals raised while the guest is
// running are coalesced into a single pending wakeup.
func (c *MachineRunContext) RaiseSignal() {
	c.signal.Raise()
}

// Stop requests termination, forces a wakeup in case the worker is parked
// and waits for the worker to exit. It is safe to call more than once.
func (c *MachineRunContext) Stop() {
	c.stopOnce.Do(func() {
		c.stopping.Store(true)
		c.engine.Halt()
		c.signal.Raise()
	})
	<-c.done
}

// Done is closed when the worker has exited.
func (c *MachineRunContext) Done() <-chan struct{} { return c.done }

// IsWaiting reports whether the worker is parked on the wakeup signal.
func (c *MachineRunContext) IsWaiting() bool { return c.waiting.Load() }

// Halted reports whether the guest halted or faulted.
func (c *MachineRunContext) Halted() bool { return c.halted.Load() }

// Wakeups counts resumes of guest execution.
func (c *MachineRunContext) Wakeups() uint64 { return c.wakeups.Load() }
