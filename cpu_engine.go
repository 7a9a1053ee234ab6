// cpu_engine.go - CPU engine contract shared by the machine and the cores

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

import "math"

// StopReason says why CPUEngine.Run returned.
type StopReason int

const (
	StopWait        StopReason = iota // wait-for-interrupt executed, PC is past it
	StopHalt                          // guest executed HALT
	StopUntil                         // PC reached the requested end address
	StopInterrupted                   // Halt was requested from another goroutine
)

func (r StopReason) String() string {
	switch r {
	case StopWait:
		return "wait"
	case StopHalt:
		return "halt"
	case StopUntil:
		return "until"
	case StopInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// RUN_UNBOUNDED as untilPC never matches a 32-bit PC.
const RUN_UNBOUNDED uint64 = math.MaxUint64

// TrapHook receives software interrupts (SWI n) with the engine stopped at
// the trapping instruction's successor.
type TrapHook func(e CPUEngine, number uint32)

// CPUEngine is the instruction-set engine the machine drives. An engine is
// owned by the machine worker goroutine; only Halt may be called from
// elsewhere. Memory and MMIO are reached through the address space the engine
// was constructed with.
type CPUEngine interface {
	Run(startPC uint32, untilPC uint64) (StopReason, error)
	PC() uint32
	SetPC(pc uint32)
	Register(i int) uint32
	SetRegister(i int, v uint32)
	SetTrapHook(hook TrapHook)
	Halt()
}
