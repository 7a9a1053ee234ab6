package main

import (
	"testing"
	"time"
)

type manualSource struct {
	now time.Duration
}

func (m *manualSource) Elapsed() time.Duration { return m.now }

func (m *manualSource) advance(d time.Duration) { m.now += d }

func readCounter(c *Clock, lo uint32) uint64 {
	l := c.Read(lo)
	h := c.Read(lo + 1)
	return uint64(h)<<32 | uint64(l)
}

func TestClock_CounterToggleIsLossless(t *testing.T) {
	src := &manualSource{}
	c := NewClockWithSource(src)

	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN)
	src.advance(100 * time.Microsecond)
	if got := readCounter(c, CLOCK_CTR0LO); got != 100 {
		t.Fatalf("counter = %d, want 100", got)
	}

	// disable: frozen
	c.Write(CLOCK_STATUS, 0)
	src.advance(500 * time.Microsecond)
	if got := readCounter(c, CLOCK_CTR0LO); got != 100 {
		t.Fatalf("disabled counter = %d, want frozen at 100", got)
	}
	c.Write(CLOCK_STATUS, 0) // repeated disable is a no-op
	src.advance(time.Millisecond)

	// enable: resumes from the frozen value
	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN)
	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN) // repeated enable is a no-op
	src.advance(50 * time.Microsecond)
	if got := readCounter(c, CLOCK_CTR0LO); got != 150 {
		t.Fatalf("resumed counter = %d, want 150", got)
	}
}

func TestClock_CounterMonotonicAcrossToggles(t *testing.T) {
	src := &manualSource{}
	c := NewClockWithSource(src)

	patterns := []uint32{CLOCK_CTR1_EN, 0, 0, CLOCK_CTR1_EN, CLOCK_CTR1_EN, 0, CLOCK_CTR1_EN}
	var last uint64
	var enabledTime uint64
	for i, p := range patterns {
		c.Write(CLOCK_STATUS, p)
		src.advance(time.Duration(i+1) * 10 * time.Microsecond)
		if p&CLOCK_CTR1_EN != 0 {
			enabledTime += uint64(i+1) * 10
		}
		got := readCounter(c, CLOCK_CTR1LO)
		if got < last {
			t.Fatalf("step %d: counter went backwards %d -> %d", i, last, got)
		}
		if got != enabledTime {
			t.Fatalf("step %d: counter = %d, want %d", i, got, enabledTime)
		}
		last = got
	}
}

func TestClock_CounterReset(t *testing.T) {
	src := &manualSource{}
	c := NewClockWithSource(src)

	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN|CLOCK_CTR1_EN)
	src.advance(time.Second)
	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN|CLOCK_CTR1_EN|CLOCK_CTR0_RESET)
	src.advance(7 * time.Microsecond)

	if got := readCounter(c, CLOCK_CTR0LO); got != 7 {
		t.Fatalf("reset counter 0 = %d, want 7", got)
	}
	if got := readCounter(c, CLOCK_CTR1LO); got != 1_000_007 {
		t.Fatalf("counter 1 = %d, want 1000007", got)
	}
}

func TestClock_HighWordLatched(t *testing.T) {
	src := &manualSource{}
	c := NewClockWithSource(src)

	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN)
	src.advance(time.Duration(1<<32+5) * time.Microsecond)
	lo := c.Read(CLOCK_CTR0LO)
	src.advance(time.Duration(1<<32) * time.Microsecond)
	hi := c.Read(CLOCK_CTR0HI)
	if lo != 5 || hi != 1 {
		t.Fatalf("lo/hi = %d/%d, want 5/1 (high word latched at low read)", lo, hi)
	}
}

func TestClock_DTWriteWhileDisabled(t *testing.T) {
	src := &manualSource{now: 42 * time.Second}
	c := NewClockWithSource(src)

	c.Write(CLOCK_DT, 12345)
	if got := c.Read(CLOCK_DT); got != 12345 {
		t.Fatalf("DT = %d, want 12345", got)
	}
	src.advance(10 * time.Second)
	if got := c.Read(CLOCK_DT); got != 12345 {
		t.Fatalf("disabled DT = %d, want frozen 12345", got)
	}

	c.Write(CLOCK_STATUS, CLOCK_RTC_EN)
	src.advance(3 * time.Second)
	if got := c.Read(CLOCK_DT); got != 12348 {
		t.Fatalf("enabled DT = %d, want 12348", got)
	}

	// writes are ignored while enabled
	c.Write(CLOCK_DT, 1)
	if got := c.Read(CLOCK_DT); got != 12348 {
		t.Fatalf("DT = %d after write while enabled, want 12348", got)
	}

	// disabling freezes
	c.Write(CLOCK_STATUS, 0)
	src.advance(100 * time.Second)
	if got := c.Read(CLOCK_DT); got != 12348 {
		t.Fatalf("DT = %d after disable, want 12348", got)
	}
}

func TestClock_StatusWriteKeepsRTCSnapshot(t *testing.T) {
	src := &manualSource{now: 7 * time.Second}
	c := NewClockWithSource(src)

	c.Write(CLOCK_DT, 500)
	src.advance(20 * time.Second)
	// counter-only STATUS writes leave the disabled RTC alone
	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN)
	src.advance(20 * time.Second)
	c.Write(CLOCK_STATUS, CLOCK_CTR0_EN|CLOCK_CTR1_EN)
	if got := c.Read(CLOCK_DT); got != 500 {
		t.Fatalf("DT = %d, want frozen 500", got)
	}

	c.Write(CLOCK_STATUS, CLOCK_RTC_EN)
	src.advance(2 * time.Second)
	if got := c.Read(CLOCK_DT); got != 502 {
		t.Fatalf("DT = %d, want 502 resumed from snapshot", got)
	}
}

func TestClock_StatusAndPeriods(t *testing.T) {
	c := NewClockWithSource(&manualSource{})

	c.Write(CLOCK_STATUS, CLOCK_RTC_EN|CLOCK_CTR1_EN|CLOCK_CTR0_INTR|CLOCK_CTR1_INTR|CLOCK_CTR0_RESET)
	want := uint32(CLOCK_RTC_EN | CLOCK_CTR1_EN | CLOCK_CTR0_INTR | CLOCK_CTR1_INTR)
	if got := c.Read(CLOCK_STATUS); got != want {
		t.Fatalf("STATUS = $%X, want $%X", got, want)
	}

	c.Write(CLOCK_CTR0P, 1000)
	c.Write(CLOCK_CTR1P, 2000)
	if c.Read(CLOCK_CTR0P) != 1000 || c.Read(CLOCK_CTR1P) != 2000 {
		t.Fatal("interrupt periods not stored")
	}
	if c.Read(0x3FF) != 0 {
		t.Fatal("undefined register must read 0")
	}
	c.Write(0x3FF, 1)
}
