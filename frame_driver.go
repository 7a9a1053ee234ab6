// frame_driver.go - fixed-timestep host loop

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

package main

import (
	"sync/atomic"
	"time"
)

const (
	FRAME_RATE        = 60
	FRAME_STEP        = time.Second / FRAME_RATE
	FRAME_MAX_CATCHUP = 8
)

// Waker is the run-context side of the wakeup signal.
type Waker interface {
	RaiseSignal()
}

// FrameDriver accumulates host time and, for each whole timestep, ticks the
// devices, runs the per-frame hooks and then wakes the CPU. It is driven from
// a single goroutine; the counters may be read from anywhere.
type FrameDriver struct {
	step    time.Duration
	last    time.Time
	acc     time.Duration
	tickers []FrameTicker
	hooks   []func(frame uint64)
	waker   Waker

	frames  atomic.Uint64
	dropped atomic.Uint64
}

func NewFrameDriver(waker Waker, tickers ...FrameTicker) *FrameDriver {
	return &FrameDriver{
		step:    FRAME_STEP,
		tickers: tickers,
		waker:   waker,
	}
}

// OnFrame registers a hook run after the device ticks of every timestep.
func (d *FrameDriver) OnFrame(hook func(frame uint64)) {
	d.hooks = append(d.hooks, hook)
}

// Step runs exactly one timestep.
func (d *FrameDriver) Step() {
	frame := d.frames.Add(1)
	for _, t := range d.tickers {
		t.Tick()
	}
	for _, h := range d.hooks {
		h(frame)
	}
	d.waker.RaiseSignal()
}

// Advance adds the wall time elapsed since the previous call and runs the
// whole timesteps it covers, at most FRAME_MAX_CATCHUP of them. Time beyond
// the cap is dropped. The first call only sets the reference point.
func (d *FrameDriver) Advance(now time.Time) int {
	if d.last.IsZero() {
		d.last = now
		return 0
	}
	if now.After(d.last) {
		d.acc += now.Sub(d.last)
	}
	d.last = now

	steps := 0
	for d.acc >= d.step && steps < FRAME_MAX_CATCHUP {
		d.acc -= d.step
		d.Step()
		steps++
	}
	if d.acc >= d.step {
		d.dropped.Add(uint64(d.acc / d.step))
		d.acc %= d.step
	}
	return steps
}

func (d *FrameDriver) Frames() uint64  { return d.frames.Load() }
func (d *FrameDriver) Dropped() uint64 { return d.dropped.Load() }
