// vdp_backend_software.go - Software rendering backend for the VDP

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
vdp_backend_software.go - Software rendering backend for the VDP

The software backend keeps its own device-local copy of VRAM and of the
internal register file, exactly as a GPU backend would, and executes the two
compute pipelines on the CPU:

Vertex unit:
- Reads count vertices from src, multiplies the position by the 4x4 row-major
  matrix in VUCDATA0..15 (an all-zero matrix is the identity) and writes the
  vertex to dst. The remaining attributes are copied through.

Triangle list raster:
- Reads 3*count vertices from src, divides by w and maps through the viewport
  (VPXY/VPWH, defaulting to the framebuffer) with +y pointing up.
- Fills RGBA8 pixels into the framebuffer at FBADDR (FBDIM sized) using the
  barycentric edge-function rasterizer with Gouraud-interpolated color0.
- Optional depth test (DEPTH bit 0) against a float32 depth buffer at DBADDR.
- CLIPXY/CLIPWH act as a scissor rectangle when CLIPWH is non-zero.

SwapBuffers latches the framebuffer as the presented frame.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

type VDPSoftwareBackend struct {
	mutex sync.Mutex

	vram      []byte
	regs      [VDP_INTERNALREG_COUNT]uint32
	pipelines int

	front         []byte
	width, height int
}

func NewVDPSoftwareBackend() *VDPSoftwareBackend {
	return &VDPSoftwareBackend{}
}

func (b *VDPSoftwareBackend) Init(vramSize int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if vramSize <= 0 {
		return fmt.Errorf("software backend: invalid VRAM size %d", vramSize)
	}
	b.vram = make([]byte, vramSize)
	return nil
}

func (b *VDPSoftwareBackend) CreatePipeline(kind VDPPipelineKind) (VDPPipeline, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	switch kind {
	case VDP_PIPELINE_VERTEX_UNIT, VDP_PIPELINE_DRAW_TRI_LIST:
	default:
		return VDPPipeline{}, fmt.Errorf("software backend: unknown pipeline kind %d", kind)
	}
	b.pipelines++
	return VDPPipeline{Kind: kind, id: b.pipelines}, nil
}

func (b *VDPSoftwareBackend) Upload(data []byte, dst uint32) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if uint64(dst)+uint64(len(data)) > uint64(len(b.vram)) {
		return fmt.Errorf("software backend: upload of %d bytes at $%06X outside VRAM", len(data), dst)
	}
	copy(b.vram[dst:], data)
	return nil
}

func (b *VDPSoftwareBackend) UploadRegisters(regs []uint32) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	copy(b.regs[:], regs)
	return nil
}

func (b *VDPSoftwareBackend) DispatchTransform(p VDPPipeline, uniform []byte, count uint32) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ubo, ok := decodeVertexUnitUBO(uniform)
	if p.Kind != VDP_PIPELINE_VERTEX_UNIT || !ok {
		return fmt.Errorf("software backend: bad vertex unit dispatch (%v)", p.Kind)
	}

	stride := vertexStride(b.regs[:])
	m := b.matrix()
	vtx := make([]byte, stride)
	for i := uint32(0); i < count; i++ {
		src := uint64(ubo.SrcAddr) + uint64(i)*uint64(stride)
		dst := uint64(ubo.DstAddr) + uint64(i)*uint64(stride)
		if src+uint64(stride) > uint64(len(b.vram)) || dst+uint64(stride) > uint64(len(b.vram)) {
			break
		}
		copy(vtx, b.vram[src:src+uint64(stride)])

		var in, out [4]float32
		for c := range 4 {
			in[c] = math.Float32frombits(binary.LittleEndian.Uint32(vtx[VDP_VERTEX_OFFSET_POS+4*c:]))
		}
		for r := range 4 {
			for c := range 4 {
				out[r] += m[r*4+c] * in[c]
			}
		}
		for c := range 4 {
			binary.LittleEndian.PutUint32(vtx[VDP_VERTEX_OFFSET_POS+4*c:], math.Float32bits(out[c]))
		}
		copy(b.vram[dst:], vtx)
	}
	return nil
}

// matrix returns the vertex transform; all zero registers mean identity.
func (b *VDPSoftwareBackend) matrix() [16]float32 {
	var m [16]float32
	zero := true
	for i := range m {
		w := b.regs[VDP_IREG_VUCDATA0+i]
		if w != 0 {
			zero = false
		}
		m[i] = math.Float32frombits(w)
	}
	if zero {
		m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	}
	return m
}

type swVertex struct {
	x, y, z float32
	color   [4]float32
}

type swRect struct {
	x0, y0, x1, y1 int
}

func (b *VDPSoftwareBackend) framebuffer() (addr uint32, w, h int, ok bool) {
	dim := b.regs[VDP_IREG_FBDIM]
	w, h = int(dim&0xFFFF), int(dim>>16)
	addr = b.regs[VDP_IREG_FBADDR]
	if w == 0 || h == 0 || uint64(addr)+uint64(w*h*4) > uint64(len(b.vram)) {
		return 0, 0, 0, false
	}
	return addr, w, h, true
}

func (b *VDPSoftwareBackend) depthbuffer(w, h int) (uint32, bool) {
	addr := b.regs[VDP_IREG_DBADDR]
	if uint64(addr)+uint64(w*h*4) > uint64(len(b.vram)) {
		return 0, false
	}
	return addr, true
}

func unpackXY(v uint32) (int, int) {
	return int(v & 0xFFFF), int(v >> 16)
}

func (b *VDPSoftwareBackend) readVertex(addr uint32, vpx, vpy, vpw, vph float32) swVertex {
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b.vram[int(addr)+off:]))
	}
	x, y, z, w := f(VDP_VERTEX_OFFSET_POS), f(VDP_VERTEX_OFFSET_POS+4), f(VDP_VERTEX_OFFSET_POS+8), f(VDP_VERTEX_OFFSET_POS+12)
	if w == 0 {
		w = 1
	}
	x, y, z = x/w, y/w, z/w

	c := binary.LittleEndian.Uint32(b.vram[int(addr)+VDP_VERTEX_OFFSET_COLOR0:])
	return swVertex{
		x: vpx + (x+1)*0.5*vpw,
		y: vpy + (1-y)*0.5*vph,
		z: z,
		color: [4]float32{
			float32(c&0xFF) / 255.0,
			float32((c>>8)&0xFF) / 255.0,
			float32((c>>16)&0xFF) / 255.0,
			float32(c>>24) / 255.0,
		},
	}
}

func (b *VDPSoftwareBackend) DispatchRaster(p VDPPipeline, uniform []byte, count uint32) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ubo, ok := decodeDrawTriListUBO(uniform)
	if p.Kind != VDP_PIPELINE_DRAW_TRI_LIST || !ok {
		return fmt.Errorf("software backend: bad raster dispatch (%v)", p.Kind)
	}

	fb, w, h, ok := b.framebuffer()
	if !ok {
		return fmt.Errorf("software backend: framebuffer not configured")
	}

	vpx, vpy := unpackXY(b.regs[VDP_IREG_VPXY])
	vpw, vph := unpackXY(b.regs[VDP_IREG_VPWH])
	if vpw == 0 || vph == 0 {
		vpx, vpy, vpw, vph = 0, 0, w, h
	}

	clip := swRect{0, 0, w, h}
	if cw, ch := unpackXY(b.regs[VDP_IREG_CLIPWH]); cw != 0 && ch != 0 {
		cx, cy := unpackXY(b.regs[VDP_IREG_CLIPXY])
		clip = swRect{max(cx, 0), max(cy, 0), min(cx+cw, w), min(cy+ch, h)}
	}

	depthAddr, depthOK := uint32(0), false
	if b.regs[VDP_IREG_DEPTH]&VDP_DEPTH_TEST_ENABLE != 0 {
		depthAddr, depthOK = b.depthbuffer(w, h)
	}

	stride := vertexStride(b.regs[:])
	for i := uint32(0); i < count; i++ {
		base := uint64(ubo.Addr) + uint64(i)*3*uint64(stride)
		if base+3*uint64(stride) > uint64(len(b.vram)) {
			break
		}
		var tri [3]swVertex
		for k := range tri {
			tri[k] = b.readVertex(uint32(base)+uint32(k)*stride, float32(vpx), float32(vpy), float32(vpw), float32(vph))
		}
		b.rasterizeTriangle(&tri, fb, w, clip, depthAddr, depthOK)
	}
	return nil
}

func (b *VDPSoftwareBackend) rasterizeTriangle(tri *[3]swVertex, fb uint32, width int, clip swRect, depthAddr uint32, depthTest bool) {
	v0, v1, v2 := &tri[0], &tri[1], &tri[2]

	minX := max(int(math.Floor(float64(min(v0.x, v1.x, v2.x)))), clip.x0)
	maxX := min(int(math.Ceil(float64(max(v0.x, v1.x, v2.x)))), clip.x1)
	minY := max(int(math.Floor(float64(min(v0.y, v1.y, v2.y)))), clip.y0)
	maxY := min(int(math.Ceil(float64(max(v0.y, v1.y, v2.y)))), clip.y1)

	area := edgeFunction(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area == 0 {
		return
	}
	if area < 0 {
		v0, v2 = v2, v0
		area = -area
	}
	invArea := 1.0 / area

	for y := minY; y < maxY; y++ {
		rowBase := y * width
		py := float32(y) + 0.5

		for x := minX; x < maxX; x++ {
			px := float32(x) + 0.5

			w0 := edgeFunction(v1.x, v1.y, v2.x, v2.y, px, py)
			w1 := edgeFunction(v2.x, v2.y, v0.x, v0.y, px, py)
			w2 := edgeFunction(v0.x, v0.y, v1.x, v1.y, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			w0 *= invArea
			w1 *= invArea
			w2 *= invArea

			idx := rowBase + x
			if depthTest {
				z := w0*v0.z + w1*v1.z + w2*v2.z
				off := int(depthAddr) + idx*4
				old := math.Float32frombits(binary.LittleEndian.Uint32(b.vram[off:]))
				if z >= old {
					continue
				}
				binary.LittleEndian.PutUint32(b.vram[off:], math.Float32bits(z))
			}

			off := int(fb) + idx*4
			for c := range 4 {
				val := w0*v0.color[c] + w1*v1.color[c] + w2*v2.color[c]
				b.vram[off+c] = uint8(clampf(val, 0, 1)*255 + 0.5)
			}
		}
	}
}

func edgeFunction(ax, ay, bx, by, cx, cy float32) float32 {
	return (cx-ax)*(by-ay) - (cy-ay)*(bx-ax)
}

func clampf(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func (b *VDPSoftwareBackend) ClearColor(color uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	fb, w, h, ok := b.framebuffer()
	if !ok {
		return
	}
	for i := range w * h {
		binary.LittleEndian.PutUint32(b.vram[int(fb)+i*4:], color)
	}
}

func (b *VDPSoftwareBackend) ClearDepth(depth float32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	_, w, h, ok := b.framebuffer()
	if !ok {
		return
	}
	db, ok := b.depthbuffer(w, h)
	if !ok {
		return
	}
	bits := math.Float32bits(depth)
	for i := range w * h {
		binary.LittleEndian.PutUint32(b.vram[int(db)+i*4:], bits)
	}
}

func (b *VDPSoftwareBackend) SwapBuffers(copyTarget uint32, copyFrame bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	fb, w, h, ok := b.framebuffer()
	if !ok {
		return
	}
	size := w * h * 4
	if len(b.front) != size {
		b.front = make([]byte, size)
	}
	copy(b.front, b.vram[fb:int(fb)+size])
	b.width, b.height = w, h

	if copyFrame && uint64(copyTarget)+uint64(size) <= uint64(len(b.vram)) {
		copy(b.vram[copyTarget:], b.front)
	}
}

func (b *VDPSoftwareBackend) GetFrame() ([]byte, int, int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.front == nil {
		return nil, 0, 0
	}
	frame := make([]byte, len(b.front))
	copy(frame, b.front)
	return frame, b.width, b.height
}

func (b *VDPSoftwareBackend) Destroy() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.vram = nil
	b.front = nil
}
