// vdp_constants.go - Video Display Processor register and command definitions

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
vdp_constants.go - Video Display Processor register and command definitions

The VDP is programmed through a three-register window and a command stream.
Guest code builds command buffers in VRAM (through the VRAM aperture), then
submits their VRAM byte offsets to CMDPORT. Once per frame the VDP interprets
every submitted buffer and pushes a completion token for each one that ends
with END_OF_QUEUE.

Command header word: opcode in bits 0-7, operand count or sub-mode in 8-31.
*/

package main

// Memory map
const (
	BOOT_ROM_BEGIN = 0x00000000
	BOOT_ROM_SIZE  = 1024 * 1024

	MAIN_RAM_BEGIN = 0x01000000
	MAIN_RAM_SIZE  = 32 * 1024 * 1024

	CLOCK_BEGIN = 0x08000000
	CLOCK_SIZE  = 0x1000

	UART_BEGIN = 0x08001000
	UART_SIZE  = 0x1000

	VDP_REG_BEGIN = 0x08002000
	VDP_REG_SIZE  = 0x1000

	VDP_VRAM_BEGIN = 0x0A000000
)

const (
	VDP_VRAM_SIZE         = 8 * 1024 * 1024
	VDP_INTERNALREG_COUNT = 256
	VDP_CMD_FIFO_DEPTH    = 256
	VDP_TOKEN_FIFO_DEPTH  = 256

	// dirty VRAM tracking page, in words (4 KiB)
	VDP_DIRTY_PAGE_WORDS = 1024
)

// Register window (word slots)
const (
	VDP_REG_STATUS      = 0
	VDP_REG_CMDPORT     = 1
	VDP_REG_DISPLAYMODE = 2
)

// STATUS bits
const (
	VDP_STATUS_RESET        = 1
	VDP_STATUS_CMDFIFOEMPTY = 2
	VDP_STATUS_CMDFIFOFULL  = 4
	VDP_STATUS_ERR_ADDR     = 8
	VDP_STATUS_ERR_CMD      = 16
	VDP_STATUS_ERR_MASK     = VDP_STATUS_ERR_ADDR | VDP_STATUS_ERR_CMD

	// sticky until reset: END_OF_QUEUE found the token FIFO full and the
	// oldest token was discarded
	VDP_STATUS_TOKEN_OVERFLOW = 32
)

// DISPLAYMODE bits
const (
	VDP_DISPLAY_CABLE_MASK      = 0x3
	VDP_DISPLAY_CABLE_VGA       = 0
	VDP_DISPLAY_CABLE_COMPOSITE = 1
	VDP_DISPLAY_CABLE_SVIDEO    = 2
	VDP_DISPLAY_CABLE_COMPONENT = 3
	VDP_DISPLAY_ENABLE          = 4
	VDP_DISPLAY_INTERLACE       = 8
)

// Command opcodes
const (
	VDP_OP_WRITE_INTERNAL_REGISTER = 0x00
	VDP_OP_PROCESS_VERTEX_LIST     = 0x01
	VDP_OP_DRAW_TRIANGLE_LIST      = 0x02
	VDP_OP_DRAW_TRIANGLE_STRIP     = 0x03
	VDP_OP_DRAW_LINE_LIST          = 0x04
	VDP_OP_DRAW_LINE_STRIP         = 0x05
	VDP_OP_CLEAR_COLOR             = 0x06
	VDP_OP_CLEAR_DEPTH             = 0x07
	VDP_OP_SWAP_BUFFERS            = 0x08
	VDP_OP_END_OF_QUEUE            = 0xFF

	VDP_SWAP_COPY = 1 << 8
)

// Internal register file
const (
	VDP_IREG_FBDIM      = 0 // width low 16, height high 16
	VDP_IREG_FBADDR     = 1
	VDP_IREG_DBADDR     = 2
	VDP_IREG_VUSTRIDE   = 3
	VDP_IREG_VULAYOUT0  = 4  // 8 slots
	VDP_IREG_VUCDATA0   = 12 // 64 slots, first 16 are the transform matrix
	VDP_IREG_VUPROGADDR = 76
	VDP_IREG_FOGENCOL   = 77
	VDP_IREG_FOGTBL0    = 78 // 64 slots
	VDP_IREG_CLIPXY     = 142
	VDP_IREG_CLIPWH     = 143
	VDP_IREG_VPXY       = 144
	VDP_IREG_VPWH       = 145
	VDP_IREG_DEPTH      = 146
	VDP_IREG_BLEND      = 147
	VDP_IREG_CULL       = 148
	VDP_IREG_TUCONF     = 149
	VDP_IREG_TU0ADDR    = 150
	VDP_IREG_TU1ADDR    = 151
	VDP_IREG_TCOMBINE   = 152
)

const VDP_DEPTH_TEST_ENABLE = 1

// Vertex layout: position xyzw, texcoord0 st, texcoord1 st, color0, color1
const (
	VDP_VERTEX_SIZE          = 40
	VDP_VERTEX_OFFSET_POS    = 0
	VDP_VERTEX_OFFSET_TEX0   = 16
	VDP_VERTEX_OFFSET_TEX1   = 24
	VDP_VERTEX_OFFSET_COLOR0 = 32
	VDP_VERTEX_OFFSET_COLOR1 = 36
)

type VDPErrorMode int

const (
	VDP_ERR_NONE VDPErrorMode = iota
	VDP_ERR_ADDRESS
	VDP_ERR_CMD
)

func (e VDPErrorMode) String() string {
	switch e {
	case VDP_ERR_ADDRESS:
		return "AddressError"
	case VDP_ERR_CMD:
		return "CmdError"
	}
	return "None"
}

func (e VDPErrorMode) statusBits() uint32 {
	switch e {
	case VDP_ERR_ADDRESS:
		return VDP_STATUS_ERR_ADDR
	case VDP_ERR_CMD:
		return VDP_STATUS_ERR_CMD
	}
	return 0
}

// vertexStride is the byte distance between vertices. A stride smaller than
// the fixed vertex layout is treated as the default.
func vertexStride(regs []uint32) uint32 {
	return max(regs[VDP_IREG_VUSTRIDE], VDP_VERTEX_SIZE)
}
