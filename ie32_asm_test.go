package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestAssembleIE32_Encoding(t *testing.T) {
	src := `
        .equ COUNT 3
start:  LOAD A, #COUNT      ; immediate equate
        ADD A, X
        STORE A, @0x2000
        LOAD B, [Y+8]
        LOAD C, [ptr]
        JNZ A, start
        SWI #7
        LDW $10
        HALT
ptr:    .word start, 'A', $FF
`
	img, err := AssembleIE32(src, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		ie32Op(LOAD, 0, ADDR_IMMEDIATE, 3),
		ie32Op(ADD, 0, ADDR_REGISTER, 1),
		ie32Op(STORE, 0, ADDR_DIRECT, 0x2000),
		ie32Op(LOAD, 4, ADDR_REG_IND, 2|8),
		ie32Op(LOAD, 5, ADDR_MEM_IND, 0x1048),
		ie32Op(JNZ, 0, 0, 0x1000),
		ie32Op(SWI, 0, 0, 7),
		ie32Op(LOAD, 15, ADDR_IMMEDIATE, 0x10),
		ie32Op(HALT, 0, 0, 0),
	}
	for i, w := range want {
		if got := img[i*8 : i*8+8]; !bytes.Equal(got, w) {
			t.Errorf("instruction %d = % X, want % X", i, got, w)
		}
	}
	data := img[len(want)*8:]
	if len(data) != 12 {
		t.Fatalf("data length %d, want 12", len(data))
	}
	for i, w := range []uint32{0x1000, 'A', 0xFF} {
		if got := binary.LittleEndian.Uint32(data[i*4:]); got != w {
			t.Errorf("word %d = $%X, want $%X", i, got, w)
		}
	}
}

func TestAssembleIE32_DirectivesAndLayout(t *testing.T) {
	src := `
        NOP
        .ascii "ab;c"
        .align 8
aligned:
        .byte 1, 2
        .space 2
        .org 0x40
tail:   .word aligned, tail-aligned
`
	img, err := AssembleIE32(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 0x48 {
		t.Fatalf("image length $%X, want $48", len(img))
	}
	if string(img[8:12]) != "ab;c" {
		t.Fatalf("ascii = %q", img[8:12])
	}
	if img[16] != 1 || img[17] != 2 {
		t.Fatal(".byte misplaced after .align")
	}
	if binary.LittleEndian.Uint32(img[0x40:]) != 16 || binary.LittleEndian.Uint32(img[0x44:]) != 0x30 {
		t.Fatalf("label words = % X", img[0x40:])
	}
}

func TestAssembleIE32_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unknown instruction", "NOP\nFROB A, #1", 2},
		{"undefined label", "JMP nowhere", 1},
		{"bad register", "LOAD Q, #1", 1},
		{"indirect through high register", "LOAD A, [B+4]", 1},
		{"unaligned offset", "LOAD A, [X+2]", 1},
		{"duplicate label", "a: NOP\na: NOP", 2},
		{"org below base", ".org 0x10", 1},
		{"byte out of range", ".byte 256", 1},
		{"unknown directive", ".frob 1", 1},
		{"implied with operand", "HALT #1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssembleIE32(tt.src, 0x100)
			var ae *AsmError
			if !errors.As(err, &ae) {
				t.Fatalf("got %v, want *AsmError", err)
			}
			if ae.Line != tt.line {
				t.Fatalf("error line %d, want %d (%v)", ae.Line, tt.line, err)
			}
		})
	}
}

func TestAssembleIE32_ProgramRuns(t *testing.T) {
	src := `
        LOAD X, #4
        LOAD A, #0
loop:   JSR addthree
        DEC X
        JNZ X, loop
        HALT
addthree:
        ADD A, #3
        RTS
`
	img, err := AssembleIE32(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	cpu, _, _ := newTestIE32(t, img)
	runIE32(t, cpu, 0, StopHalt)
	if cpu.Register(0) != 12 {
		t.Fatalf("A = %d, want 12", cpu.Register(0))
	}
}

func TestDemoROM_DrawsFrame(t *testing.T) {
	rom, err := demoROM()
	if err != nil {
		t.Fatalf("demo ROM: %v", err)
	}

	as := NewAddressSpace()
	if _, err := as.MapRegion(BOOT_ROM_BEGIN, append(rom, make([]byte, BOOT_ROM_SIZE-len(rom))...), PERM_READ|PERM_EXEC); err != nil {
		t.Fatal(err)
	}
	if _, err := as.MapRegion(MAIN_RAM_BEGIN, make([]byte, 0x20000), PERM_ALL); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	uart := NewUART(&out)
	vdp, err := NewVDP(NewVDPSoftwareBackend())
	if err != nil {
		t.Fatal(err)
	}
	defer vdp.Destroy()
	for _, m := range []struct {
		base, size uint32
		dev        Peripheral
	}{
		{CLOCK_BEGIN, CLOCK_SIZE, NewClock()},
		{UART_BEGIN, UART_SIZE, uart},
		{VDP_REG_BEGIN, VDP_REG_SIZE, vdp},
		{VDP_VRAM_BEGIN, VDP_VRAM_SIZE, vdp.VRAMAperture()},
	} {
		if err := as.MapPeripheral(m.base, m.size, m.dev); err != nil {
			t.Fatal(err)
		}
	}

	cpu := NewIE32Engine(as, MAIN_RAM_BEGIN+0x20000)
	runIE32(t, cpu, BOOT_ROM_BEGIN, StopWait)
	if out.String() != "IE32 VDP demo\n" {
		t.Fatalf("banner %q", out.String())
	}
	if vdp.PendingCommands() != 1 {
		t.Fatalf("pending command buffers = %d, want 1", vdp.PendingCommands())
	}

	vdp.Tick()
	frame, w, h := vdp.Frame()
	if w != 640 || h != 480 {
		t.Fatalf("frame %dx%d, want 640x480", w, h)
	}
	if got := binary.LittleEndian.Uint32(frame[0:]); got != 0xFF000000 {
		t.Fatalf("corner pixel $%08X, want clear colour", got)
	}
	center := (240*640 + 320) * 4
	if got := binary.LittleEndian.Uint32(frame[center:]); got == 0xFF000000 {
		t.Fatal("triangle not drawn at screen centre")
	}

	// resume: token observed, clear colour bumped, buffer resubmitted
	runIE32(t, cpu, cpu.PC(), StopWait)
	if cpu.Register(6) != 1 {
		t.Fatalf("frame counter = %d, want 1", cpu.Register(6))
	}
	vdp.Tick()
	frame, _, _ = vdp.Frame()
	if got := binary.LittleEndian.Uint32(frame[0:]); got != 0xFF010000 {
		t.Fatalf("second frame clear $%08X, want $FF010000", got)
	}
}
