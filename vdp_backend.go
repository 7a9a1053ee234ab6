// vdp_backend.go - VDP rendering backend contract

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

import "encoding/binary"

type VDPPipelineKind int

const (
	VDP_PIPELINE_VERTEX_UNIT VDPPipelineKind = iota
	VDP_PIPELINE_DRAW_TRI_LIST
)

func (k VDPPipelineKind) String() string {
	switch k {
	case VDP_PIPELINE_VERTEX_UNIT:
		return "vertex-unit"
	case VDP_PIPELINE_DRAW_TRI_LIST:
		return "draw-tri-list"
	}
	return "unknown"
}

// VDPPipeline is a backend compute pipeline handle, created once when the
// VDP is constructed.
type VDPPipeline struct {
	Kind VDPPipelineKind
	id   int
}

// VDPBackend is the rendering device the command interpreter drives. The
// backend owns a device-local copy of VRAM and of the internal register
// file; the VDP keeps both in sync through Upload and UploadRegisters.
//
// Dispatch calls may complete asynchronously; the interpreter never waits
// on them.
type VDPBackend interface {
	Init(vramSize int) error
	CreatePipeline(kind VDPPipelineKind) (VDPPipeline, error)
	Upload(data []byte, dst uint32) error
	UploadRegisters(regs []uint32) error
	DispatchTransform(p VDPPipeline, uniform []byte, count uint32) error
	DispatchRaster(p VDPPipeline, uniform []byte, count uint32) error
	ClearColor(color uint32)
	ClearDepth(depth float32)
	SwapBuffers(copyTarget uint32, copy bool)
	GetFrame() (pixels []byte, width, height int)
	Destroy()
}

// Uniform blocks are packed little-endian.
type vertexUnitUBO struct {
	SrcAddr uint32
	DstAddr uint32
}

func (u vertexUnitUBO) encode() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], u.SrcAddr)
	binary.LittleEndian.PutUint32(b[4:], u.DstAddr)
	return b
}

func decodeVertexUnitUBO(b []byte) (vertexUnitUBO, bool) {
	if len(b) < 8 {
		return vertexUnitUBO{}, false
	}
	return vertexUnitUBO{
		SrcAddr: binary.LittleEndian.Uint32(b[0:]),
		DstAddr: binary.LittleEndian.Uint32(b[4:]),
	}, true
}

type drawTriListUBO struct {
	Addr uint32
}

func (u drawTriListUBO) encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, u.Addr)
	return b
}

func decodeDrawTriListUBO(b []byte) (drawTriListUBO, bool) {
	if len(b) < 4 {
		return drawTriListUBO{}, false
	}
	return drawTriListUBO{Addr: binary.LittleEndian.Uint32(b)}, true
}
