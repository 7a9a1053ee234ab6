package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/intuitionamiga/nyxbox/logger"
)

func newTestScriptHost(t *testing.T) (*ScriptHost, *AddressSpace, *VDP, *UART, *int) {
	t.Helper()
	as := NewAddressSpace()
	if _, err := as.MapRegion(MAIN_RAM_BEGIN, make([]byte, 0x1000), PERM_ALL); err != nil {
		t.Fatal(err)
	}
	v, _ := newTestVDP(t)
	u := NewUART(nil)
	stops := new(int)
	h := NewScriptHost(as, v, u, func() { *stops++ })
	t.Cleanup(h.Close)
	return h, as, v, u, stops
}

func TestScriptHost_PeekPoke(t *testing.T) {
	h, as, _, _, _ := newTestScriptHost(t)
	as.Write32(MAIN_RAM_BEGIN+0x10, 41)

	err := h.Run(`
		local v = peek32(0x01000010)
		poke32(0x01000014, v + 1)
		poke32(0x01000018, 0xFFFFFFFF)
	`)
	if err != nil {
		t.Fatal(err)
	}
	if got := as.Read32(MAIN_RAM_BEGIN + 0x14); got != 42 {
		t.Fatalf("poke32 wrote %d, want 42", got)
	}
	if got := as.Read32(MAIN_RAM_BEGIN + 0x18); got != 0xFFFFFFFF {
		t.Fatalf("poke32 of full word = $%X", got)
	}
}

func TestScriptHost_SubmitsCommandBuffer(t *testing.T) {
	h, _, v, _, _ := newTestScriptHost(t)
	err := h.Run(`
		vram_write(0x200, {0x00000500, 7, 0x00002AFF})
		vdp_submit(0x200)
		local s = vdp_stats()
		if s.pending ~= 1 then error("pending " .. s.pending) end
	`)
	if err != nil {
		t.Fatal(err)
	}
	v.Tick()
	if v.InternalRegister(5) != 7 {
		t.Fatal("register write from script buffer not applied")
	}
	if tok := v.Read(VDP_REG_CMDPORT); tok != 0x2A {
		t.Fatalf("token = $%X, want $2A", tok)
	}
}

func TestScriptHost_UARTAndLog(t *testing.T) {
	logger.Clear()
	h, _, _, u, _ := newTestScriptHost(t)
	if err := h.Run(`uart_push("dir\n") log("booted")`); err != nil {
		t.Fatal(err)
	}
	if u.Pending() != 4 {
		t.Fatalf("uart pending = %d, want 4", u.Pending())
	}
	var sb strings.Builder
	logger.Write(&sb)
	if !strings.Contains(sb.String(), "script: booted") {
		t.Fatalf("log missing entry:\n%s", sb.String())
	}
}

func TestScriptHost_OnFrameAndStop(t *testing.T) {
	h, as, _, _, stops := newTestScriptHost(t)
	err := h.Run(`
		on_frame(function(frame)
			poke32(0x01000000, frame)
			if frame == 3 then stop() end
		end)
	`)
	if err != nil {
		t.Fatal(err)
	}
	for f := uint64(1); f <= 3; f++ {
		h.OnFrame(f)
	}
	if got := as.Read32(MAIN_RAM_BEGIN); got != 3 {
		t.Fatalf("hook saw frame %d, want 3", got)
	}
	if *stops != 1 {
		t.Fatalf("stop called %d times, want 1", *stops)
	}

	if err := h.Run(`on_frame(nil)`); err != nil {
		t.Fatal(err)
	}
	h.OnFrame(9)
	if as.Read32(MAIN_RAM_BEGIN) != 3 {
		t.Fatal("cleared hook still called")
	}
}

func TestScriptHost_FailingHookIsRemoved(t *testing.T) {
	logger.Clear()
	h, _, _, _, _ := newTestScriptHost(t)
	if err := h.Run(`
		calls = 0
		on_frame(function() calls = calls + 1; error("boom") end)
	`); err != nil {
		t.Fatal(err)
	}
	h.OnFrame(1)
	h.OnFrame(2)
	if err := h.Run(`if calls ~= 1 then error("calls " .. calls) end`); err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	logger.Write(&sb)
	if !strings.Contains(sb.String(), "boom") {
		t.Fatalf("hook error not logged:\n%s", sb.String())
	}
}

func TestScriptHost_Errors(t *testing.T) {
	h, _, _, _, _ := newTestScriptHost(t)
	for _, src := range []string{
		`peek32("x")`,
		`vram_write(0, {1, "two"})`,
		`vram_write(0x7FFFFC, {1, 2})`,
		`this is not lua`,
	} {
		if err := h.Run(src); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestScriptHost_RunFile(t *testing.T) {
	h, as, _, _, _ := newTestScriptHost(t)
	path := filepath.Join(t.TempDir(), "boot.lua")
	if err := os.WriteFile(path, []byte(`poke32(0x01000020, 0x55)`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.RunFile(path); err != nil {
		t.Fatal(err)
	}
	if as.Read32(MAIN_RAM_BEGIN+0x20) != 0x55 {
		t.Fatal("file script did not run")
	}
	if err := h.RunFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatal("missing file accepted")
	}
}
