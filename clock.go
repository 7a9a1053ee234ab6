// clock.go - Real-time clock and free-running counters

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
clock.go - Real-time clock and free-running counters

Register map (word slots from the clock window base):

    0x00 STATUS  read:  RTC_EN(1) | CTR0_EN(2) | CTR1_EN(4) | CTR0_INTR(32) | CTR1_INTR(64)
                 write: same flags; bit 8 resets counter 0, bit 16 resets counter 1
    0x01 DT      seconds timestamp; writes only take effect while the RTC is disabled
    0x02 CTR0LO  low word of counter 0 (latches the high word)
    0x03 CTR0HI  high word latched by the last CTR0LO read
    0x04 CTR1LO  low word of counter 1
    0x05 CTR1HI  high word latched by the last CTR1LO read
    0x06 CTR0P   counter 0 interrupt period (stored, never delivered)
    0x07 CTR1P   counter 1 interrupt period (stored, never delivered)

Counters tick in microseconds of host monotonic time. While enabled a
counter reads now-base; disabling freezes the value and enabling resumes
from it, so toggling never loses or invents time.

When the RTC is enabled the timestamp is always derived from elapsed
monotonic seconds plus an adjustment. While disabled, a DT write becomes a
frozen snapshot that reads back exactly, and enabling the RTC resumes
counting from it.
*/

package main

import (
	"sync"
	"time"
)

const (
	CLOCK_STATUS = 0x00
	CLOCK_DT     = 0x01
	CLOCK_CTR0LO = 0x02
	CLOCK_CTR0HI = 0x03
	CLOCK_CTR1LO = 0x04
	CLOCK_CTR1HI = 0x05
	CLOCK_CTR0P  = 0x06
	CLOCK_CTR1P  = 0x07
)

const (
	CLOCK_RTC_EN     = 1
	CLOCK_CTR0_EN    = 2
	CLOCK_CTR1_EN    = 4
	CLOCK_CTR0_RESET = 8
	CLOCK_CTR1_RESET = 16
	CLOCK_CTR0_INTR  = 32
	CLOCK_CTR1_INTR  = 64
)

// ClockSource supplies host monotonic time. Tests substitute a manual source.
type ClockSource interface {
	Elapsed() time.Duration
}

type monotonicSource struct {
	start time.Time
}

func (m monotonicSource) Elapsed() time.Duration {
	return time.Since(m.start)
}

type clockCounter struct {
	enabled bool
	intr    bool
	period  uint32
	value   uint64
	base    uint64
	latched uint32
}

func (c *clockCounter) setEnabled(enabled bool, now uint64) {
	switch {
	case c.enabled && !enabled:
		c.value = now - c.base
	case !c.enabled && enabled:
		c.base = now - c.value
	}
	c.enabled = enabled
}

func (c *clockCounter) reset(now uint64) {
	c.base = now
	c.value = 0
}

func (c *clockCounter) readLo(now uint64) uint32 {
	if c.enabled {
		c.value = now - c.base
	} else {
		c.base = now - c.value
	}
	c.latched = uint32(c.value >> 32)
	return uint32(c.value)
}

type Clock struct {
	mu  sync.Mutex
	src ClockSource

	rtcEnabled bool
	adjust     int64
	timestamp  uint32

	ctr [2]clockCounter
}

func NewClock() *Clock {
	return NewClockWithSource(monotonicSource{start: time.Now()})
}

func NewClockWithSource(src ClockSource) *Clock {
	c := &Clock{src: src}
	now := c.ticks()
	c.ctr[0].base = now
	c.ctr[1].base = now
	return c
}

func (c *Clock) ticks() uint64 {
	return uint64(c.src.Elapsed() / time.Microsecond)
}

func (c *Clock) seconds() int64 {
	return int64(c.src.Elapsed() / time.Second)
}

func (c *Clock) Read(reg uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch reg {
	case CLOCK_STATUS:
		return boolBit(c.rtcEnabled, CLOCK_RTC_EN) |
			boolBit(c.ctr[0].enabled, CLOCK_CTR0_EN) |
			boolBit(c.ctr[1].enabled, CLOCK_CTR1_EN) |
			boolBit(c.ctr[0].intr, CLOCK_CTR0_INTR) |
			boolBit(c.ctr[1].intr, CLOCK_CTR1_INTR)
	case CLOCK_DT:
		secs := c.seconds()
		if c.rtcEnabled {
			c.timestamp = uint32(secs + c.adjust)
		} else {
			c.adjust = int64(c.timestamp) - secs
		}
		return c.timestamp
	case CLOCK_CTR0LO:
		return c.ctr[0].readLo(c.ticks())
	case CLOCK_CTR0HI:
		return c.ctr[0].latched
	case CLOCK_CTR1LO:
		return c.ctr[1].readLo(c.ticks())
	case CLOCK_CTR1HI:
		return c.ctr[1].latched
	case CLOCK_CTR0P:
		return c.ctr[0].period
	case CLOCK_CTR1P:
		return c.ctr[1].period
	}
	return 0
}

func (c *Clock) Write(reg uint32, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch reg {
	case CLOCK_STATUS:
		now := c.ticks()
		secs := c.seconds()

		rtc := value&CLOCK_RTC_EN != 0
		switch {
		case rtc && !c.rtcEnabled:
			// resume from the frozen snapshot
			c.adjust = int64(c.timestamp) - secs
		case !rtc && c.rtcEnabled:
			c.timestamp = uint32(secs + c.adjust)
		}
		c.rtcEnabled = rtc
		// a disabled RTC keeps its snapshot across unrelated STATUS writes
		if rtc {
			c.timestamp = uint32(secs + c.adjust)
		}

		c.ctr[0].setEnabled(value&CLOCK_CTR0_EN != 0, now)
		c.ctr[1].setEnabled(value&CLOCK_CTR1_EN != 0, now)
		c.ctr[0].intr = value&CLOCK_CTR0_INTR != 0
		c.ctr[1].intr = value&CLOCK_CTR1_INTR != 0
		if value&CLOCK_CTR0_RESET != 0 {
			c.ctr[0].reset(now)
		}
		if value&CLOCK_CTR1_RESET != 0 {
			c.ctr[1].reset(now)
		}
	case CLOCK_DT:
		if !c.rtcEnabled {
			c.adjust = int64(value) - c.seconds()
			c.timestamp = value
		}
	case CLOCK_CTR0P:
		c.ctr[0].period = value
	case CLOCK_CTR1P:
		c.ctr[1].period = value
	}
}
