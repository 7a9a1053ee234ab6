// frontend.go - shared frontend plumbing

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
	"fmt"
)

const (
	DISPLAY_WIDTH  = 640
	DISPLAY_HEIGHT = 480

	PASTE_LIMIT = 4096
)

// frontendConfig is everything a frontend needs to drive the machine.
type frontendConfig struct {
	driver    *FrameDriver
	vdp       *VDP
	uart      *UART
	run       *MachineRunContext
	maxFrames uint64 // 0 runs until cancelled
	title     string
}

func (c *frontendConfig) framesDone() bool {
	return c.maxFrames > 0 && c.driver.Frames() >= c.maxFrames
}

func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, limit int) []byte {
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit]
}

func cpuState(run *MachineRunContext) string {
	switch {
	case run == nil:
		return "stopped"
	case run.Halted():
		return "halted"
	case run.IsWaiting():
		return "wfi"
	}
	return "run"
}

// statusLine summarises the machine for the status bar and headless exit.
func statusLine(cfg *frontendConfig) string {
	s := cfg.vdp.Stats()
	display := "off"
	if s.Display {
		display = "on"
	}
	return fmt.Sprintf("frame %d (drop %d)  cpu %s wake %d  vdp %s disp %d pend %d tok %d err %v  uart rx %d",
		cfg.driver.Frames(), cfg.driver.Dropped(),
		cpuState(cfg.run), wakeups(cfg.run),
		display, s.Dispatches, s.Pending, s.Tokens, s.Err,
		cfg.uart.Pending())
}

func wakeups(run *MachineRunContext) uint64 {
	if run == nil {
		return 0
	}
	return run.Wakeups()
}
