// demo_rom.go - built-in boot ROM used when no -rom is given

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

// The demo prints a banner on the UART, copies a command buffer and a
// triangle into VRAM, enables the display and then resubmits the buffer once
// per frame, waiting on WFI and polling CMDPORT for the completion token. The
// clear colour's blue channel ramps with the frame count.
const demoROMSource = `
        .equ VRAM         0x0A000000
        .equ CLOCK_STATUS 0x08000000
        .equ UART_TX      0x08001004
        .equ VDP_CMDPORT  0x08002004
        .equ VDP_DISPLAY  0x08002008
        .equ CMDBUF       0x00010000
        .equ VERTS        0x00011000
        .equ FB           0x00100000

start:
        LOAD X, #banner
print:  LOAD B, [X]
        AND B, #0xFF
        JZ B, setup
        STORE B, @UART_TX
        ADD X, #1
        JMP print

setup:
        LOAD A, #1                      ; RTC on
        STORE A, @CLOCK_STATUS

        LOAD X, #cmdlist
        LOAD Y, #VRAM+CMDBUF
        LOAD C, #cmdlist_end-cmdlist
        JSR copy
        LOAD X, #verts
        LOAD Y, #VRAM+VERTS
        LOAD C, #verts_end-verts
        JSR copy

        LOAD A, #4                      ; display enable, VGA
        STORE A, @VDP_DISPLAY
        LOAD D, #0

frame:
        LOAD A, #CMDBUF
        STORE A, @VDP_CMDPORT
wait:   WFI
        LOAD A, @VDP_CMDPORT
        JZ A, wait

        ADD D, #1
        LOAD B, D
        AND B, #0xFF
        SHL B, #16
        OR B, #0xFF000000
        STORE B, @VRAM+CMDBUF+clearcolor-cmdlist
        JMP frame

; copy C bytes (multiple of 4) from X to Y
copy:   LOAD B, [X]
        STORE B, [Y]
        ADD X, #4
        ADD Y, #4
        SUB C, #4
        JNZ C, copy
        RTS

banner: .ascii "IE32 VDP demo\n"
        .byte 0

        .align 4
cmdlist:
        .word 0x00000000, 0x01E00280    ; FBDIM 640x480
        .word 0x00000100, FB            ; FBADDR
        .word 0x00000006                ; CLEAR_COLOR
clearcolor:
        .word 0xFF000000
        .word 0x00000102, VERTS         ; DRAW_TRIANGLE_LIST, 1 triangle
        .word 0x00000008, 0             ; SWAP_BUFFERS
        .word 0x000001FF                ; END_OF_QUEUE token 1
cmdlist_end:

verts:
        .word 0x00000000, 0x3F000000, 0, 0x3F800000, 0, 0, 0, 0, 0xFF0000FF, 0
        .word 0xBF000000, 0xBF000000, 0, 0x3F800000, 0, 0, 0, 0, 0xFF00FF00, 0
        .word 0x3F000000, 0xBF000000, 0, 0x3F800000, 0, 0, 0, 0, 0xFFFF0000, 0
verts_end:
`

// demoROM assembles the built-in boot ROM for the boot ROM base.
func demoROM() ([]byte, error) {
	return AssembleIE32(demoROMSource, BOOT_ROM_BEGIN)
}
