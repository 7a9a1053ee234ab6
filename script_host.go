// script_host.go - Lua boot/host scripting

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
script_host.go - Lua boot/host scripting

A script runs once before the CPU starts and may register an on_frame hook
that the frame driver calls after the device ticks of every timestep.

Lua API:

    peek32(addr)              -> value      bus read
    poke32(addr, value)                     bus write
    vram_write(offset, {w..})               host upload into VRAM
    vdp_submit(offset)                      queue a command buffer
    vdp_stats()               -> table      dispatches, pending, tokens, err
    uart_push(str)                          feed the UART receive queue
    log(msg)                                central log, tag "script"
    on_frame(fn(frame))                     per-frame hook (nil clears)
    stop()                                  request shutdown

The Lua state is not goroutine safe: load the script before the frame driver
starts and only call OnFrame from the frame driver's goroutine.
*/

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/intuitionamiga/nyxbox/logger"
)

type ScriptHost struct {
	state *lua.LState
	bus   Bus32
	vdp   *VDP
	uart  *UART
	stop  func()

	onFrame *lua.LFunction
}

func NewScriptHost(bus Bus32, vdp *VDP, uart *UART, stop func()) *ScriptHost {
	h := &ScriptHost{
		state: lua.NewState(),
		bus:   bus,
		vdp:   vdp,
		uart:  uart,
		stop:  stop,
	}
	for name, fn := range map[string]lua.LGFunction{
		"peek32":     h.luaPeek32,
		"poke32":     h.luaPoke32,
		"vram_write": h.luaVRAMWrite,
		"vdp_submit": h.luaVDPSubmit,
		"vdp_stats":  h.luaVDPStats,
		"uart_push":  h.luaUARTPush,
		"log":        h.luaLog,
		"on_frame":   h.luaOnFrame,
		"stop":       h.luaStop,
	} {
		h.state.SetGlobal(name, h.state.NewFunction(fn))
	}
	return h
}

// Run executes a chunk of Lua source.
func (h *ScriptHost) Run(src string) error {
	if err := h.state.DoString(src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// RunFile executes a Lua file.
func (h *ScriptHost) RunFile(path string) error {
	if err := h.state.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// OnFrame calls the registered hook. A hook that raises an error is logged
// and removed.
func (h *ScriptHost) OnFrame(frame uint64) {
	if h.onFrame == nil {
		return
	}
	err := h.state.CallByParam(lua.P{
		Fn:      h.onFrame,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(frame))
	if err != nil {
		logger.Logf("script", "on_frame: %v (hook removed)", err)
		h.onFrame = nil
	}
}

func (h *ScriptHost) Close() {
	h.state.Close()
}

func checkU32(L *lua.LState, n int) uint32 {
	return uint32(int64(L.CheckNumber(n)))
}

func (h *ScriptHost) luaPeek32(L *lua.LState) int {
	L.Push(lua.LNumber(h.bus.Read32(checkU32(L, 1))))
	return 1
}

func (h *ScriptHost) luaPoke32(L *lua.LState) int {
	h.bus.Write32(checkU32(L, 1), checkU32(L, 2))
	return 0
}

func (h *ScriptHost) luaVRAMWrite(L *lua.LState) int {
	offset := checkU32(L, 1)
	tbl := L.CheckTable(2)
	words := make([]uint32, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		n, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok {
			L.ArgError(2, fmt.Sprintf("element %d is not a number", i))
			return 0
		}
		words = append(words, uint32(int64(n)))
	}
	if err := h.vdp.Upload(words, offset); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (h *ScriptHost) luaVDPSubmit(L *lua.LState) int {
	h.vdp.Write(VDP_REG_CMDPORT, checkU32(L, 1))
	return 0
}

func (h *ScriptHost) luaVDPStats(L *lua.LState) int {
	s := h.vdp.Stats()
	t := L.NewTable()
	t.RawSetString("ticks", lua.LNumber(s.Ticks))
	t.RawSetString("dispatches", lua.LNumber(s.Dispatches))
	t.RawSetString("pending", lua.LNumber(s.Pending))
	t.RawSetString("tokens", lua.LNumber(s.Tokens))
	t.RawSetString("err", lua.LString(s.Err.String()))
	t.RawSetString("display", lua.LBool(s.Display))
	L.Push(t)
	return 1
}

func (h *ScriptHost) luaUARTPush(L *lua.LState) int {
	h.uart.PushInput([]byte(L.CheckString(1)))
	return 0
}

func (h *ScriptHost) luaLog(L *lua.LState) int {
	logger.Log("script", L.CheckString(1))
	return 0
}

func (h *ScriptHost) luaOnFrame(L *lua.LState) int {
	if L.Get(1) == lua.LNil {
		h.onFrame = nil
		return 0
	}
	h.onFrame = L.CheckFunction(1)
	return 0
}

func (h *ScriptHost) luaStop(L *lua.LState) int {
	if h.stop != nil {
		h.stop()
	}
	return 0
}
