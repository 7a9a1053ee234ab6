// vdp.go - Video Display Processor

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
vdp.go - Video Display Processor

The VDP owns 8 MiB of VRAM, a 256-entry internal register file and a
rendering backend. The guest talks to it through two windows:

    VDP registers   STATUS, CMDPORT, DISPLAYMODE
    VRAM aperture   one register slot per VRAM word

Command processing model:

1. Guest writes a command buffer into VRAM through the aperture.
2. Guest writes the buffer's VRAM byte offset to CMDPORT (bounded FIFO).
3. Once per frame Tick takes the FIFO snapshot and interprets each buffer in
   submission order, to completion or fault, before starting the next.
4. A buffer ending with END_OF_QUEUE pushes its token; the guest pops tokens
   by reading CMDPORT (0 when empty).

Guest faults (misaligned buffer, running off the end of VRAM, undefined
opcode) set the sticky error mode visible in STATUS and abandon only the
faulting buffer; no token is pushed for it.

Backend synchronisation is two-phase. Register writes and guest VRAM writes
only mark state dirty; the dirty register file and the dirty VRAM words are
uploaded immediately before the next backend operation that reads them, so
N register writes followed by one dispatch cost exactly one upload. VRAM is
tracked per word, so an upload never covers bytes the backend itself wrote
(framebuffers, transformed vertices).

Thread Safety:
Read/Write (CPU worker) and Tick (frame driver) are serialised by one mutex.
Reads are not pure: a CMDPORT read pops a token.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/intuitionamiga/nyxbox/logger"
)

type VDP struct {
	mutex   sync.Mutex
	backend VDPBackend

	vuPipeline  VDPPipeline
	triPipeline VDPPipeline

	vram []byte

	// host-side VRAM writes not yet uploaded
	dirty vramDirtyMap

	regs      [VDP_INTERNALREG_COUNT]uint32
	regsDirty bool

	cmdFifo       []uint32
	tokens        []uint32
	tokenOverflow bool

	resetState       bool
	errMode          VDPErrorMode
	cable            uint32
	displayEnable    bool
	displayInterlace bool

	ticks      uint64
	dispatches uint64
}

// NewVDP allocates VRAM and creates the backend pipelines. Backend failures
// are configuration errors.
func NewVDP(backend VDPBackend) (*VDP, error) {
	if backend == nil {
		return nil, fmt.Errorf("vdp: no rendering backend")
	}
	if err := backend.Init(VDP_VRAM_SIZE); err != nil {
		return nil, fmt.Errorf("vdp: backend init: %w", err)
	}

	v := &VDP{
		backend:   backend,
		vram:      make([]byte, VDP_VRAM_SIZE),
		dirty:     newVRAMDirtyMap(VDP_VRAM_SIZE),
		regsDirty: true,
	}

	var err error
	if v.vuPipeline, err = backend.CreatePipeline(VDP_PIPELINE_VERTEX_UNIT); err != nil {
		return nil, fmt.Errorf("vdp: create %v pipeline: %w", VDP_PIPELINE_VERTEX_UNIT, err)
	}
	if v.triPipeline, err = backend.CreatePipeline(VDP_PIPELINE_DRAW_TRI_LIST); err != nil {
		return nil, fmt.Errorf("vdp: create %v pipeline: %w", VDP_PIPELINE_DRAW_TRI_LIST, err)
	}
	return v, nil
}

func (v *VDP) Read(reg uint32) uint32 {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	switch reg {
	case VDP_REG_STATUS:
		return boolBit(v.resetState, VDP_STATUS_RESET) |
			boolBit(len(v.cmdFifo) == 0, VDP_STATUS_CMDFIFOEMPTY) |
			boolBit(len(v.cmdFifo) >= VDP_CMD_FIFO_DEPTH, VDP_STATUS_CMDFIFOFULL) |
			boolBit(v.tokenOverflow, VDP_STATUS_TOKEN_OVERFLOW) |
			v.errMode.statusBits()
	case VDP_REG_CMDPORT:
		if len(v.tokens) == 0 {
			return 0
		}
		tok := v.tokens[0]
		v.tokens = v.tokens[1:]
		return tok
	case VDP_REG_DISPLAYMODE:
		return v.cable |
			boolBit(v.displayEnable, VDP_DISPLAY_ENABLE) |
			boolBit(v.displayInterlace, VDP_DISPLAY_INTERLACE)
	}
	return 0
}

func (v *VDP) Write(reg uint32, value uint32) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	switch reg {
	case VDP_REG_STATUS:
		if value&VDP_STATUS_RESET == 0 {
			v.resetState = true
		}
	case VDP_REG_CMDPORT:
		if len(v.cmdFifo) >= VDP_CMD_FIFO_DEPTH {
			logger.Logf("vdp", "command fifo full, dropped buffer $%06X", value)
			return
		}
		v.cmdFifo = append(v.cmdFifo, value)
	case VDP_REG_DISPLAYMODE:
		v.displayEnable = value&VDP_DISPLAY_ENABLE != 0
		v.displayInterlace = value&VDP_DISPLAY_INTERLACE != 0
	}
}

// SetCable sets the connected display cable. The guest sees it in
// DISPLAYMODE but cannot change it.
func (v *VDP) SetCable(cable uint32) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.cable = cable & VDP_DISPLAY_CABLE_MASK
}

// Upload copies words into VRAM at a byte offset from the host side.
func (v *VDP) Upload(words []uint32, dst uint32) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	end := uint64(dst) + uint64(len(words))*4
	if dst&3 != 0 || end > uint64(len(v.vram)) {
		return fmt.Errorf("vdp: upload of %d words at $%06X outside VRAM", len(words), dst)
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(v.vram[dst+uint32(i)*4:], w)
	}
	v.dirty.mark(dst, uint32(end))
	return nil
}

// vramDirtyMap records host-written VRAM words. A second bitmap with one bit
// per page lets flush skip clean pages without scanning every word.
type vramDirtyMap struct {
	words []uint64
	pages []uint64
}

func newVRAMDirtyMap(size int) vramDirtyMap {
	nwords := size / 4
	npages := (nwords + VDP_DIRTY_PAGE_WORDS - 1) / VDP_DIRTY_PAGE_WORDS
	return vramDirtyMap{
		words: make([]uint64, (nwords+63)/64),
		pages: make([]uint64, (npages+63)/64),
	}
}

// mark flags the words overlapping byte range [lo, hi).
func (d *vramDirtyMap) mark(lo, hi uint32) {
	for w := lo / 4; w < (hi+3)/4; w++ {
		d.words[w/64] |= 1 << (w % 64)
		p := w / VDP_DIRTY_PAGE_WORDS
		d.pages[p/64] |= 1 << (p % 64)
	}
}

// flush calls upload once per run of contiguous dirty words, as byte range
// [lo, hi), in increasing address order, and clears the map.
func (d *vramDirtyMap) flush(upload func(lo, hi uint32)) {
	var runLo, runHi uint32
	open := false
	for pi, pw := range d.pages {
		for pw != 0 {
			b := bits.TrailingZeros64(pw)
			pw &^= 1 << b
			first := (pi*64 + b) * VDP_DIRTY_PAGE_WORDS / 64
			for i := first; i < first+VDP_DIRTY_PAGE_WORDS/64 && i < len(d.words); i++ {
				ww := d.words[i]
				d.words[i] = 0
				for ww != 0 {
					wb := bits.TrailingZeros64(ww)
					ww &^= 1 << wb
					word := uint32(i*64 + wb)
					if open && word == runHi {
						runHi++
						continue
					}
					if open {
						upload(runLo*4, runHi*4)
					}
					runLo, runHi, open = word, word+1, true
				}
			}
		}
		d.pages[pi] = 0
	}
	if open {
		upload(runLo*4, runHi*4)
	}
}

// Tick performs a pending reset, then interprets every command buffer
// submitted before this call.
func (v *VDP) Tick() {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.ticks++
	if v.resetState {
		v.reset()
	}

	cmds := v.cmdFifo
	v.cmdFifo = nil
	for _, addr := range cmds {
		v.execCommandBuffer(addr)
	}
}

func (v *VDP) reset() {
	v.regs = [VDP_INTERNALREG_COUNT]uint32{}
	v.regsDirty = true
	v.cmdFifo = nil
	v.tokens = nil
	v.tokenOverflow = false
	v.displayEnable = false
	v.displayInterlace = false
	v.resetState = false
	v.errMode = VDP_ERR_NONE
	logger.Log("vdp", "reset")
}

func (v *VDP) fault(mode VDPErrorMode, format string, args ...any) {
	v.errMode = mode
	logger.Logf("vdp", "%v: "+format, append([]any{mode}, args...)...)
}

// flush uploads dirty VRAM and registers before a backend operation.
func (v *VDP) flush() {
	v.dirty.flush(func(lo, hi uint32) {
		if err := v.backend.Upload(v.vram[lo:hi], lo); err != nil {
			logger.Logf("vdp", "vram upload: %v", err)
		}
	})
	if v.regsDirty {
		if err := v.backend.UploadRegisters(v.regs[:]); err != nil {
			logger.Logf("vdp", "register upload: %v", err)
		}
		v.regsDirty = false
	}
}

// clampCount limits count so that count items of size bytes starting at
// addr stay inside VRAM. size is 64-bit so a guest stride times the
// triangle vertex count cannot wrap.
func (v *VDP) clampCount(addr, count uint32, size uint64) uint32 {
	if size == 0 || uint64(addr) >= uint64(len(v.vram)) {
		return 0
	}
	fit := (uint64(len(v.vram)) - uint64(addr)) / size
	return uint32(min(uint64(count), fit))
}

type cmdReader struct {
	vram []byte
	pc   uint32
}

func (r *cmdReader) next() (uint32, bool) {
	if uint64(r.pc)+4 > uint64(len(r.vram)) {
		return 0, false
	}
	w := binary.LittleEndian.Uint32(r.vram[r.pc:])
	r.pc += 4
	return w, true
}

// operands reads n words following a header.
func (r *cmdReader) operands(n int) ([]uint32, bool) {
	ops := make([]uint32, n)
	for i := range ops {
		w, ok := r.next()
		if !ok {
			return nil, false
		}
		ops[i] = w
	}
	return ops, true
}

func (v *VDP) execCommandBuffer(addr uint32) {
	if addr&3 != 0 {
		v.fault(VDP_ERR_ADDRESS, "misaligned command buffer $%08X", addr)
		return
	}

	r := &cmdReader{vram: v.vram, pc: addr}
	for {
		hdr, ok := r.next()
		if !ok {
			v.fault(VDP_ERR_ADDRESS, "command buffer $%06X runs past end of VRAM", addr)
			return
		}
		op := hdr & 0xFF
		arg := hdr >> 8

		switch op {
		case VDP_OP_WRITE_INTERNAL_REGISTER:
			ops, ok := r.operands(1)
			if !ok {
				break
			}
			v.regs[arg&0xFF] = ops[0]
			v.regsDirty = true
			continue

		case VDP_OP_PROCESS_VERTEX_LIST:
			ops, ok := r.operands(2)
			if !ok {
				break
			}
			stride := uint64(vertexStride(v.regs[:]))
			count := min(v.clampCount(ops[0], arg, stride), v.clampCount(ops[1], arg, stride))
			if count > 0 {
				v.flush()
				ubo := vertexUnitUBO{SrcAddr: ops[0], DstAddr: ops[1]}
				if err := v.backend.DispatchTransform(v.vuPipeline, ubo.encode(), count); err != nil {
					logger.Logf("vdp", "vertex dispatch: %v", err)
				}
				v.dispatches++
			}
			continue

		case VDP_OP_DRAW_TRIANGLE_LIST:
			ops, ok := r.operands(1)
			if !ok {
				break
			}
			count := v.clampCount(ops[0], arg, 3*uint64(vertexStride(v.regs[:])))
			if count > 0 {
				v.flush()
				ubo := drawTriListUBO{Addr: ops[0]}
				if err := v.backend.DispatchRaster(v.triPipeline, ubo.encode(), count); err != nil {
					logger.Logf("vdp", "raster dispatch: %v", err)
				}
				v.dispatches++
			}
			continue

		case VDP_OP_DRAW_TRIANGLE_STRIP, VDP_OP_DRAW_LINE_LIST, VDP_OP_DRAW_LINE_STRIP:
			// parsed, not rendered
			if _, ok := r.operands(1); !ok {
				break
			}
			continue

		case VDP_OP_CLEAR_COLOR:
			ops, ok := r.operands(1)
			if !ok {
				break
			}
			v.flush()
			v.backend.ClearColor(ops[0])
			continue

		case VDP_OP_CLEAR_DEPTH:
			ops, ok := r.operands(1)
			if !ok {
				break
			}
			v.flush()
			v.backend.ClearDepth(math.Float32frombits(ops[0]))
			continue

		case VDP_OP_SWAP_BUFFERS:
			ops, ok := r.operands(1)
			if !ok {
				break
			}
			v.flush()
			v.backend.SwapBuffers(ops[0], hdr&VDP_SWAP_COPY != 0)
			continue

		case VDP_OP_END_OF_QUEUE:
			if len(v.tokens) >= VDP_TOKEN_FIFO_DEPTH {
				logger.Logf("vdp", "token fifo full, dropped token $%06X", v.tokens[0])
				v.tokens = v.tokens[1:]
				v.tokenOverflow = true
			}
			v.tokens = append(v.tokens, arg)
			return

		default:
			v.fault(VDP_ERR_CMD, "undefined opcode $%02X at $%06X", op, r.pc-4)
			return
		}

		// an operand ran past the end of VRAM
		v.fault(VDP_ERR_ADDRESS, "command buffer $%06X runs past end of VRAM", addr)
		return
	}
}

// Frame returns the last presented frame.
func (v *VDP) Frame() ([]byte, int, int) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.backend.GetFrame()
}

// ErrMode returns the sticky guest fault state.
func (v *VDP) ErrMode() VDPErrorMode {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.errMode
}

func (v *VDP) InternalRegister(index int) uint32 {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.regs[index&(VDP_INTERNALREG_COUNT-1)]
}

// PendingCommands returns the number of submitted buffers awaiting a tick.
func (v *VDP) PendingCommands() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.cmdFifo)
}

type VDPStats struct {
	Ticks      uint64
	Dispatches uint64
	Pending    int
	Tokens     int
	Err        VDPErrorMode
	Display    bool
}

func (v *VDP) Stats() VDPStats {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return VDPStats{
		Ticks:      v.ticks,
		Dispatches: v.dispatches,
		Pending:    len(v.cmdFifo),
		Tokens:     len(v.tokens),
		Err:        v.errMode,
		Display:    v.displayEnable,
	}
}

func (v *VDP) Destroy() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.backend.Destroy()
}

// VRAMAperture exposes VRAM to the address space, one register slot per
// 32-bit word. Sub-word guest accesses arrive as whole-word accesses.
func (v *VDP) VRAMAperture() Peripheral {
	return vdpVRAM{v}
}

type vdpVRAM struct {
	v *VDP
}

func (a vdpVRAM) Read(reg uint32) uint32 {
	a.v.mutex.Lock()
	defer a.v.mutex.Unlock()
	off := uint64(reg) * 4
	if off+4 > uint64(len(a.v.vram)) {
		return 0
	}
	return binary.LittleEndian.Uint32(a.v.vram[off:])
}

func (a vdpVRAM) Write(reg uint32, value uint32) {
	a.v.mutex.Lock()
	defer a.v.mutex.Unlock()
	off := uint64(reg) * 4
	if off+4 > uint64(len(a.v.vram)) {
		return
	}
	binary.LittleEndian.PutUint32(a.v.vram[off:], value)
	a.v.dirty.mark(uint32(off), uint32(off+4))
}
