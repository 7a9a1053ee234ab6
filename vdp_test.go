package main

import (
	"encoding/binary"
	"math"
	"testing"
)

// recordingBackend counts backend calls without rendering.
type recordingBackend struct {
	uploads         int
	uploadedBytes   int
	registerUploads int
	transforms      []uint32
	rasters         []uint32
	rasterUniforms  [][]byte
	clears          []uint32
	depthClears     []float32
	swaps           int
	lastRegs        []uint32
}

func (r *recordingBackend) Init(int) error { return nil }
func (r *recordingBackend) CreatePipeline(kind VDPPipelineKind) (VDPPipeline, error) {
	return VDPPipeline{Kind: kind}, nil
}
func (r *recordingBackend) Upload(data []byte, dst uint32) error {
	r.uploads++
	r.uploadedBytes += len(data)
	return nil
}
func (r *recordingBackend) UploadRegisters(regs []uint32) error {
	r.registerUploads++
	r.lastRegs = append([]uint32(nil), regs...)
	return nil
}
func (r *recordingBackend) DispatchTransform(p VDPPipeline, uniform []byte, count uint32) error {
	r.transforms = append(r.transforms, count)
	return nil
}
func (r *recordingBackend) DispatchRaster(p VDPPipeline, uniform []byte, count uint32) error {
	r.rasters = append(r.rasters, count)
	r.rasterUniforms = append(r.rasterUniforms, uniform)
	return nil
}
func (r *recordingBackend) ClearColor(c uint32)          { r.clears = append(r.clears, c) }
func (r *recordingBackend) ClearDepth(d float32)         { r.depthClears = append(r.depthClears, d) }
func (r *recordingBackend) SwapBuffers(uint32, bool)     { r.swaps++ }
func (r *recordingBackend) GetFrame() ([]byte, int, int) { return nil, 0, 0 }
func (r *recordingBackend) Destroy()                     {}

func newTestVDP(t *testing.T) (*VDP, *recordingBackend) {
	t.Helper()
	rb := &recordingBackend{}
	v, err := NewVDP(rb)
	if err != nil {
		t.Fatalf("NewVDP failed: %v", err)
	}
	return v, rb
}

func cmdWriteReg(reg, val uint32) []uint32 {
	return []uint32{VDP_OP_WRITE_INTERNAL_REGISTER | reg<<8, val}
}

func cmdEnd(token uint32) []uint32 {
	return []uint32{VDP_OP_END_OF_QUEUE | token<<8}
}

func cmdBuffer(parts ...[]uint32) []uint32 {
	var out []uint32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func submit(t *testing.T, v *VDP, addr uint32, words []uint32) {
	t.Helper()
	if err := v.Upload(words, addr); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	v.Write(VDP_REG_CMDPORT, addr)
}

func TestVDP_WriteRegisterAndToken(t *testing.T) {
	v, _ := newTestVDP(t)

	submit(t, v, 0x100, cmdBuffer(cmdWriteReg(5, 7), cmdEnd(42)))
	v.Tick()

	if got := v.InternalRegister(5); got != 7 {
		t.Fatalf("internal_reg[5] = %d, want 7", got)
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 42 {
		t.Fatalf("first CMDPORT read = %d, want 42", got)
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 0 {
		t.Fatalf("second CMDPORT read = %d, want 0", got)
	}
	if v.ErrMode() != VDP_ERR_NONE {
		t.Fatalf("unexpected error mode %v", v.ErrMode())
	}
}

func TestVDP_MisalignedBuffer(t *testing.T) {
	v, _ := newTestVDP(t)

	if err := v.Upload(cmdBuffer(cmdWriteReg(5, 7), cmdEnd(1)), 0x100); err != nil {
		t.Fatal(err)
	}
	v.Write(VDP_REG_CMDPORT, 0x102)
	v.Tick()

	if v.ErrMode() != VDP_ERR_ADDRESS {
		t.Fatalf("error mode %v, want AddressError", v.ErrMode())
	}
	if v.Read(VDP_REG_STATUS)&VDP_STATUS_ERR_ADDR == 0 {
		t.Fatal("STATUS does not report ERR_ADDR")
	}
	if v.Read(VDP_REG_CMDPORT) != 0 {
		t.Fatal("misaligned buffer pushed a token")
	}
	for i := range VDP_INTERNALREG_COUNT {
		if v.InternalRegister(i) != 0 {
			t.Fatalf("internal_reg[%d] modified by misaligned buffer", i)
		}
	}
}

func TestVDP_UndefinedOpcodeDoesNotStopQueue(t *testing.T) {
	v, _ := newTestVDP(t)

	submit(t, v, 0x000, cmdBuffer([]uint32{0x7F}, cmdEnd(1)))
	submit(t, v, 0x100, cmdBuffer(cmdWriteReg(9, 0xAB), cmdEnd(2)))
	v.Tick()

	if v.ErrMode() != VDP_ERR_CMD {
		t.Fatalf("error mode %v, want CmdError", v.ErrMode())
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 2 {
		t.Fatalf("token = %d, want only the second buffer's token 2", got)
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 0 {
		t.Fatalf("unexpected extra token %d", got)
	}
	if v.InternalRegister(9) != 0xAB {
		t.Fatal("buffer after the faulting one was not processed")
	}
}

func TestVDP_SingleFlushPerDispatch(t *testing.T) {
	v, rb := newTestVDP(t)

	// first dispatch flushes the initial register state
	submit(t, v, 0x1000, cmdBuffer(
		cmdWriteReg(VDP_IREG_FBDIM, 0x00100010),
		cmdWriteReg(VDP_IREG_FBADDR, 0x10000),
		cmdWriteReg(VDP_IREG_VPXY, 0),
		cmdWriteReg(VDP_IREG_VPWH, 0x00100010),
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 1<<8, 0},
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 1<<8, 0},
		cmdEnd(3),
	))
	v.Tick()

	if rb.registerUploads != 1 {
		t.Fatalf("register uploads = %d, want 1 for two dispatches after four writes", rb.registerUploads)
	}
	if len(rb.rasters) != 2 {
		t.Fatalf("raster dispatches = %d, want 2", len(rb.rasters))
	}
	if rb.lastRegs[VDP_IREG_FBADDR] != 0x10000 {
		t.Fatal("flushed registers do not carry the written value")
	}

	// no register writes since the last flush: no upload
	submit(t, v, 0x2000, cmdBuffer([]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 1<<8, 0}, cmdEnd(4)))
	v.Tick()
	if rb.registerUploads != 1 {
		t.Fatalf("register uploads = %d after clean dispatch, want 1", rb.registerUploads)
	}
}

func TestVDP_VRAMUploadIsLazy(t *testing.T) {
	v, rb := newTestVDP(t)

	aperture := v.VRAMAperture()
	aperture.Write(0, 0x11111111)
	aperture.Write(1, 0x22222222)
	if rb.uploads != 0 {
		t.Fatal("VRAM uploaded before any dispatch")
	}
	if got := aperture.Read(1); got != 0x22222222 {
		t.Fatalf("aperture read = $%08X", got)
	}

	submit(t, v, 0x100, cmdBuffer([]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 1<<8, 0}, cmdEnd(1)))
	v.Tick()

	// one run for words 0-1, one for the command buffer; the gap between
	// them is never uploaded
	if rb.uploads != 2 {
		t.Fatalf("VRAM uploads = %d, want 2", rb.uploads)
	}
	if rb.uploadedBytes != 8+12 {
		t.Fatalf("uploaded %d bytes, want %d", rb.uploadedBytes, 8+12)
	}
}

func TestVDP_VRAMDirtyRunsMergeAcrossPages(t *testing.T) {
	v, rb := newTestVDP(t)

	// straddles the first page boundary
	words := make([]uint32, 8)
	if err := v.Upload(words, VDP_DIRTY_PAGE_WORDS*4-16); err != nil {
		t.Fatal(err)
	}
	v.VRAMAperture().Write(VDP_VRAM_SIZE/4-1, 1)
	submit(t, v, 0x40000, cmdBuffer([]uint32{VDP_OP_CLEAR_COLOR, 0}, cmdEnd(1)))
	v.Tick()

	if rb.uploads != 3 {
		t.Fatalf("VRAM uploads = %d, want 3", rb.uploads)
	}
	if rb.uploadedBytes != 32+4+12 {
		t.Fatalf("uploaded %d bytes, want %d", rb.uploadedBytes, 32+4+12)
	}

	// nothing left dirty
	submit(t, v, 0x40000, cmdBuffer([]uint32{VDP_OP_CLEAR_COLOR, 0}, cmdEnd(2)))
	rb.uploads = 0
	v.Tick()
	if rb.uploads != 1 {
		t.Fatalf("VRAM uploads = %d after resubmit, want 1", rb.uploads)
	}
}

func TestVDP_HostWritesAroundFramebufferKeepFrame(t *testing.T) {
	sw := NewVDPSoftwareBackend()
	v, err := NewVDP(sw)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Destroy()

	submit(t, v, 0x400, cmdBuffer(
		cmdWriteReg(VDP_IREG_FBDIM, 4<<16|8),
		cmdWriteReg(VDP_IREG_FBADDR, 0x1000),
		[]uint32{VDP_OP_CLEAR_COLOR, 0xFF00FF00},
		[]uint32{VDP_OP_SWAP_BUFFERS, 0},
		cmdEnd(1),
	))
	v.Tick()

	// host writes below and above the backend-rendered framebuffer
	aperture := v.VRAMAperture()
	aperture.Write(0x10/4, 0xDEADBEEF)
	aperture.Write(0x4000/4, 0xCAFEF00D)

	submit(t, v, 0x800, cmdBuffer([]uint32{VDP_OP_SWAP_BUFFERS, 0}, cmdEnd(2)))
	v.Tick()

	frame, _, _ := v.Frame()
	for _, px := range []int{0, 31} {
		if got := binary.LittleEndian.Uint32(frame[px*4:]); got != 0xFF00FF00 {
			t.Fatalf("pixel %d = $%08X after host writes, want $FF00FF00", px, got)
		}
	}
}

func TestVDP_PayloadClamped(t *testing.T) {
	v, rb := newTestVDP(t)

	// 100 triangles starting 2 triangles before the end of VRAM
	src := uint32(VDP_VRAM_SIZE - 2*3*VDP_VERTEX_SIZE)
	submit(t, v, 0x100, cmdBuffer(
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 100<<8, src},
		[]uint32{VDP_OP_PROCESS_VERTEX_LIST | 50<<8, 0, VDP_VRAM_SIZE - 10*VDP_VERTEX_SIZE},
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 5<<8, VDP_VRAM_SIZE},
		cmdEnd(9),
	))
	v.Tick()

	if len(rb.rasters) != 1 || rb.rasters[0] != 2 {
		t.Fatalf("raster counts %v, want [2] (clamped, zero-count dispatch skipped)", rb.rasters)
	}
	if len(rb.transforms) != 1 || rb.transforms[0] != 10 {
		t.Fatalf("transform counts %v, want [10]", rb.transforms)
	}
	if v.ErrMode() != VDP_ERR_NONE {
		t.Fatalf("clamping must not fault, got %v", v.ErrMode())
	}
	if v.Read(VDP_REG_CMDPORT) != 9 {
		t.Fatal("clamped buffer did not complete")
	}
}

func TestVDP_HugeStrideDoesNotWrap(t *testing.T) {
	v, rb := newTestVDP(t)

	// 3*stride wraps to 2 in 32 bits
	submit(t, v, 0x100, cmdBuffer(
		cmdWriteReg(VDP_IREG_VUSTRIDE, 0x55555556),
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 100<<8, 0},
		[]uint32{VDP_OP_PROCESS_VERTEX_LIST | 100<<8, 0, 0x1000},
		cmdEnd(3),
	))
	v.Tick()

	if len(rb.rasters) != 0 || len(rb.transforms) != 0 {
		t.Fatalf("rasters %v transforms %v, want none", rb.rasters, rb.transforms)
	}
	if v.ErrMode() != VDP_ERR_NONE {
		t.Fatalf("unexpected error mode %v", v.ErrMode())
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 3 {
		t.Fatalf("token = %d, want 3", got)
	}
}

func TestVDP_TokenOverflowStatus(t *testing.T) {
	v, _ := newTestVDP(t)

	// the command FIFO holds one frame's worth, so overflow over two ticks
	for i := range VDP_TOKEN_FIFO_DEPTH {
		submit(t, v, uint32(0x100+i*4), cmdEnd(uint32(i+1)))
	}
	v.Tick()
	if v.Read(VDP_REG_STATUS)&VDP_STATUS_TOKEN_OVERFLOW != 0 {
		t.Fatal("token overflow set with the FIFO exactly full")
	}
	submit(t, v, 0x100, cmdEnd(VDP_TOKEN_FIFO_DEPTH+1))
	v.Tick()

	if v.Read(VDP_REG_STATUS)&VDP_STATUS_TOKEN_OVERFLOW == 0 {
		t.Fatal("STATUS does not report token overflow")
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 2 {
		t.Fatalf("oldest surviving token = %d, want 2", got)
	}
	// sticky after draining
	for v.Read(VDP_REG_CMDPORT) != 0 {
	}
	if v.Read(VDP_REG_STATUS)&VDP_STATUS_TOKEN_OVERFLOW == 0 {
		t.Fatal("token overflow cleared by draining")
	}

	v.Write(VDP_REG_STATUS, 0)
	v.Tick()
	if v.Read(VDP_REG_STATUS)&VDP_STATUS_TOKEN_OVERFLOW != 0 {
		t.Fatal("token overflow survives reset")
	}
}

func TestVDP_ReservedTopologiesKeepStreamInSync(t *testing.T) {
	v, rb := newTestVDP(t)

	submit(t, v, 0x100, cmdBuffer(
		[]uint32{VDP_OP_DRAW_TRIANGLE_STRIP | 3<<8, 0xDEAD},
		[]uint32{VDP_OP_DRAW_LINE_LIST | 3<<8, 0xBEEF},
		[]uint32{VDP_OP_DRAW_LINE_STRIP | 3<<8, 0xF00D},
		[]uint32{VDP_OP_CLEAR_COLOR, 0xFF00FF00},
		[]uint32{VDP_OP_CLEAR_DEPTH, math.Float32bits(1.0)},
		[]uint32{VDP_OP_SWAP_BUFFERS | VDP_SWAP_COPY, 0x4000},
		cmdEnd(7),
	))
	v.Tick()

	if len(rb.rasters) != 0 || len(rb.transforms) != 0 {
		t.Fatal("reserved topologies must not dispatch")
	}
	if len(rb.clears) != 1 || rb.clears[0] != 0xFF00FF00 {
		t.Fatalf("clear colors %v", rb.clears)
	}
	if len(rb.depthClears) != 1 || rb.depthClears[0] != 1.0 {
		t.Fatalf("depth clears %v", rb.depthClears)
	}
	if rb.swaps != 1 {
		t.Fatalf("swaps = %d", rb.swaps)
	}
	if got := v.Read(VDP_REG_CMDPORT); got != 7 {
		t.Fatalf("token = %d, want 7", got)
	}
}

func TestVDP_BufferRunsOffVRAM(t *testing.T) {
	v, _ := newTestVDP(t)

	// a write-register header in the last word has no room for its operand
	submit(t, v, VDP_VRAM_SIZE-4, []uint32{VDP_OP_WRITE_INTERNAL_REGISTER | 1<<8})
	v.Tick()

	if v.ErrMode() != VDP_ERR_ADDRESS {
		t.Fatalf("error mode %v, want AddressError", v.ErrMode())
	}
	if v.InternalRegister(1) != 0 {
		t.Fatal("register written from outside VRAM")
	}
}

func TestVDP_ResetOnNextTick(t *testing.T) {
	v, _ := newTestVDP(t)

	submit(t, v, 0x100, cmdBuffer(cmdWriteReg(3, 99), []uint32{0x7F}))
	v.Write(VDP_REG_DISPLAYMODE, VDP_DISPLAY_ENABLE|VDP_DISPLAY_INTERLACE)
	v.Tick()
	if v.ErrMode() != VDP_ERR_CMD {
		t.Fatal("setup did not fault")
	}

	v.Write(VDP_REG_STATUS, 0)
	if v.Read(VDP_REG_STATUS)&VDP_STATUS_RESET == 0 {
		t.Fatal("reset not armed")
	}
	v.Write(VDP_REG_CMDPORT, 0x100)
	v.Tick()

	status := v.Read(VDP_REG_STATUS)
	if status&(VDP_STATUS_RESET|VDP_STATUS_ERR_MASK) != 0 {
		t.Fatalf("status after reset = $%X", status)
	}
	if status&VDP_STATUS_CMDFIFOEMPTY == 0 {
		t.Fatal("reset did not clear the command fifo")
	}
	if v.InternalRegister(3) != 0 {
		t.Fatal("reset did not clear the register file")
	}
	if v.Read(VDP_REG_DISPLAYMODE)&(VDP_DISPLAY_ENABLE|VDP_DISPLAY_INTERLACE) != 0 {
		t.Fatal("reset did not clear display flags")
	}
}

func TestVDP_CommandFifoFull(t *testing.T) {
	v, _ := newTestVDP(t)

	for range VDP_CMD_FIFO_DEPTH + 3 {
		v.Write(VDP_REG_CMDPORT, 0)
	}
	if v.PendingCommands() != VDP_CMD_FIFO_DEPTH {
		t.Fatalf("pending = %d, want %d", v.PendingCommands(), VDP_CMD_FIFO_DEPTH)
	}
	status := v.Read(VDP_REG_STATUS)
	if status&VDP_STATUS_CMDFIFOFULL == 0 || status&VDP_STATUS_CMDFIFOEMPTY != 0 {
		t.Fatalf("status = $%X, want FULL set and EMPTY clear", status)
	}
}

func TestVDP_DisplayMode(t *testing.T) {
	v, _ := newTestVDP(t)

	v.SetCable(VDP_DISPLAY_CABLE_SVIDEO)
	v.Write(VDP_REG_DISPLAYMODE, VDP_DISPLAY_ENABLE|VDP_DISPLAY_CABLE_COMPONENT)
	got := v.Read(VDP_REG_DISPLAYMODE)
	if got != VDP_DISPLAY_CABLE_SVIDEO|VDP_DISPLAY_ENABLE {
		t.Fatalf("DISPLAYMODE = $%X, guest must not change the cable", got)
	}
	if v.Read(0x40) != 0 {
		t.Fatal("undefined register must read 0")
	}
}

func putVertex(words []uint32, x, y float32, color uint32) []uint32 {
	return append(words,
		math.Float32bits(x), math.Float32bits(y), 0, math.Float32bits(1),
		0, 0, 0, 0,
		color, 0)
}

func TestVDP_SoftwareBackendDrawsAndSwaps(t *testing.T) {
	sw := NewVDPSoftwareBackend()
	v, err := NewVDP(sw)
	if err != nil {
		t.Fatal(err)
	}
	defer v.Destroy()

	// one triangle larger than the screen
	var verts []uint32
	verts = putVertex(verts, -1, -1, 0xFF0000FF)
	verts = putVertex(verts, 3, -1, 0xFF0000FF)
	verts = putVertex(verts, -1, 3, 0xFF0000FF)
	if err := v.Upload(verts, 0); err != nil {
		t.Fatal(err)
	}

	submit(t, v, 0x400, cmdBuffer(
		cmdWriteReg(VDP_IREG_FBDIM, 4<<16|8),
		cmdWriteReg(VDP_IREG_FBADDR, 0x1000),
		[]uint32{VDP_OP_CLEAR_COLOR, 0xFF00FF00},
		[]uint32{VDP_OP_SWAP_BUFFERS, 0},
		cmdEnd(1),
	))
	v.Tick()

	frame, w, h := v.Frame()
	if w != 8 || h != 4 {
		t.Fatalf("frame %dx%d, want 8x4", w, h)
	}
	if got := binary.LittleEndian.Uint32(frame[0:]); got != 0xFF00FF00 {
		t.Fatalf("cleared pixel = $%08X", got)
	}

	submit(t, v, 0x800, cmdBuffer(
		[]uint32{VDP_OP_DRAW_TRIANGLE_LIST | 1<<8, 0},
		[]uint32{VDP_OP_SWAP_BUFFERS | VDP_SWAP_COPY, 0x8000},
		cmdEnd(2),
	))
	v.Tick()

	frame, _, _ = v.Frame()
	for _, px := range []int{0, 7, 12, 31} {
		if got := binary.LittleEndian.Uint32(frame[px*4:]); got != 0xFF0000FF {
			t.Fatalf("pixel %d = $%08X, want triangle color $FF0000FF", px, got)
		}
	}
	if v.Read(VDP_REG_CMDPORT) != 1 || v.Read(VDP_REG_CMDPORT) != 2 {
		t.Fatal("tokens not delivered in order")
	}
}

func TestVDP_SoftwareVertexUnitTransforms(t *testing.T) {
	sw := NewVDPSoftwareBackend()
	if err := sw.Init(4096); err != nil {
		t.Fatal(err)
	}
	p, err := sw.CreatePipeline(VDP_PIPELINE_VERTEX_UNIT)
	if err != nil {
		t.Fatal(err)
	}

	var regs [VDP_INTERNALREG_COUNT]uint32
	// scale x by 2, translate y by 0.5
	m := []float32{
		2, 0, 0, 0,
		0, 1, 0, 0.5,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	for i, f := range m {
		regs[VDP_IREG_VUCDATA0+i] = math.Float32bits(f)
	}
	if err := sw.UploadRegisters(regs[:]); err != nil {
		t.Fatal(err)
	}

	var words []uint32
	words = putVertex(words, 1, 1, 0xAABBCCDD)
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	if err := sw.Upload(data, 0); err != nil {
		t.Fatal(err)
	}

	if err := sw.DispatchTransform(p, vertexUnitUBO{SrcAddr: 0, DstAddr: 100}.encode(), 1); err != nil {
		t.Fatal(err)
	}

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(sw.vram[100+off:])) }
	if f(0) != 2 || f(4) != 1.5 {
		t.Fatalf("transformed position (%v, %v), want (2, 1.5)", f(0), f(4))
	}
	if got := binary.LittleEndian.Uint32(sw.vram[100+VDP_VERTEX_OFFSET_COLOR0:]); got != 0xAABBCCDD {
		t.Fatalf("color not copied through: $%08X", got)
	}

	if err := sw.DispatchRaster(p, nil, 1); err == nil {
		t.Fatal("raster dispatch on the vertex pipeline must fail")
	}
}
