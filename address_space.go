// address_space.go - Physical address space for the NyxBox machine

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
address_space.go - Physical address space for the NyxBox machine

The address space is an ordered table of disjoint mappings. Each mapping is
either a raw memory region (boot ROM, main RAM) backed by a host byte slice,
or a peripheral window backed by a Peripheral.

Core Features:

    Mappings are registered before execution starts and sealed when the
    machine begins running; mapping after sealing is a configuration error.
    Overlapping mappings are rejected.
    Peripheral windows are a power of two long and aligned to their length,
    so the register slot is (addr & (length-1)) >> 2.
    Raw regions are little-endian. An access that runs off the end of a
    region wraps modulo the region size instead of faulting.
    Writes to regions without PERM_WRITE are dropped.
    Accesses that hit no mapping read 0 and drop writes; they are logged but
    never crash the host.

Concurrency:

    The mapping table is immutable once sealed, so lookups take no lock.
    Raw region bytes are owned by the CPU worker; peripherals serialise their
    own state.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"sync/atomic"

	"github.com/intuitionamiga/nyxbox/logger"
)

type Permission uint8

const (
	PERM_READ Permission = 1 << iota
	PERM_WRITE
	PERM_EXEC

	PERM_ALL = PERM_READ | PERM_WRITE | PERM_EXEC
)

// Bus32 is the view of the address space a CPU engine needs.
type Bus32 interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, value uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, value uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
}

// MappingError describes a rejected mapping. Mapping errors are
// configuration errors and are fatal at startup.
type MappingError struct {
	Base   uint32
	Length uint64
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping $%08X+$%X rejected: %s", e.Base, e.Length, e.Reason)
}

// MemoryRegion is a raw byte region. Offsets are wrapped modulo the region
// size, so any offset aliases back into the region.
type MemoryRegion struct {
	base uint32
	mem  []byte
	perm Permission
}

func (r *MemoryRegion) Base() uint32           { return r.base }
func (r *MemoryRegion) Size() uint32           { return uint32(len(r.mem)) }
func (r *MemoryRegion) Permission() Permission { return r.perm }

func (r *MemoryRegion) wrap(offset uint32) uint32 {
	return offset % uint32(len(r.mem))
}

func (r *MemoryRegion) Load8(offset uint32) uint8 {
	return r.mem[r.wrap(offset)]
}

func (r *MemoryRegion) Store8(offset uint32, value uint8) {
	r.mem[r.wrap(offset)] = value
}

func (r *MemoryRegion) Load16(offset uint32) uint16 {
	o := r.wrap(offset)
	if o+2 <= uint32(len(r.mem)) {
		return binary.LittleEndian.Uint16(r.mem[o : o+2])
	}
	return uint16(r.Load8(o)) | uint16(r.Load8(o+1))<<8
}

func (r *MemoryRegion) Store16(offset uint32, value uint16) {
	o := r.wrap(offset)
	if o+2 <= uint32(len(r.mem)) {
		binary.LittleEndian.PutUint16(r.mem[o:o+2], value)
		return
	}
	r.Store8(o, uint8(value))
	r.Store8(o+1, uint8(value>>8))
}

func (r *MemoryRegion) Load32(offset uint32) uint32 {
	o := r.wrap(offset)
	if o+4 <= uint32(len(r.mem)) {
		return binary.LittleEndian.Uint32(r.mem[o : o+4])
	}
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(r.Load8(o+i)) << (8 * i)
	}
	return v
}

func (r *MemoryRegion) Store32(offset uint32, value uint32) {
	o := r.wrap(offset)
	if o+4 <= uint32(len(r.mem)) {
		binary.LittleEndian.PutUint32(r.mem[o:o+4], value)
		return
	}
	for i := uint32(0); i < 4; i++ {
		r.Store8(o+i, uint8(value>>(8*i)))
	}
}

type busMapping struct {
	start  uint32
	end    uint64 // exclusive
	region *MemoryRegion
	device Peripheral
	mask   uint32
}

type AddressSpace struct {
	// sorted by start, never overlapping
	mappings []busMapping

	sealed atomic.Bool

	unmappedAccesses atomic.Uint64
}

func NewAddressSpace() *AddressSpace {
	return &AddressSpace{}
}

// MapRegion maps a raw byte region at base. The slice is used directly, not
// copied, so the caller may keep filling it (e.g. loading a ROM image)
// before execution starts.
func (as *AddressSpace) MapRegion(base uint32, mem []byte, perm Permission) (*MemoryRegion, error) {
	if len(mem) == 0 {
		return nil, &MappingError{Base: base, Reason: "empty region"}
	}
	region := &MemoryRegion{base: base, mem: mem, perm: perm}
	if err := as.insert(busMapping{start: base, end: uint64(base) + uint64(len(mem)), region: region}); err != nil {
		return nil, err
	}
	return region, nil
}

// MapPeripheral maps a device register window of length bytes at base.
func (as *AddressSpace) MapPeripheral(base, length uint32, device Peripheral) error {
	if device == nil {
		return &MappingError{Base: base, Length: uint64(length), Reason: "nil peripheral"}
	}
	if length < 4 || bits.OnesCount32(length) != 1 {
		return &MappingError{Base: base, Length: uint64(length), Reason: "window length must be a power of two >= 4"}
	}
	if base&(length-1) != 0 {
		return &MappingError{Base: base, Length: uint64(length), Reason: "window base must be aligned to its length"}
	}
	return as.insert(busMapping{start: base, end: uint64(base) + uint64(length), device: device, mask: length - 1})
}

func (as *AddressSpace) insert(m busMapping) error {
	if as.sealed.Load() {
		return &MappingError{Base: m.start, Length: m.end - uint64(m.start), Reason: "address space sealed after execution started"}
	}
	if m.end > 1<<32 {
		return &MappingError{Base: m.start, Length: m.end - uint64(m.start), Reason: "mapping exceeds 32-bit address space"}
	}

	i := sort.Search(len(as.mappings), func(i int) bool { return as.mappings[i].start >= m.start })
	if i > 0 && as.mappings[i-1].end > uint64(m.start) {
		return &MappingError{Base: m.start, Length: m.end - uint64(m.start),
			Reason: fmt.Sprintf("overlaps mapping at $%08X", as.mappings[i-1].start)}
	}
	if i < len(as.mappings) && uint64(as.mappings[i].start) < m.end {
		return &MappingError{Base: m.start, Length: m.end - uint64(m.start),
			Reason: fmt.Sprintf("overlaps mapping at $%08X", as.mappings[i].start)}
	}

	as.mappings = append(as.mappings, busMapping{})
	copy(as.mappings[i+1:], as.mappings[i:])
	as.mappings[i] = m
	return nil
}

// Seal prevents further mapping. Called when the machine starts running.
func (as *AddressSpace) Seal() {
	as.sealed.Store(true)
}

// UnmappedAccesses returns how many accesses have hit no mapping.
func (as *AddressSpace) UnmappedAccesses() uint64 {
	return as.unmappedAccesses.Load()
}

func (as *AddressSpace) find(addr uint32) *busMapping {
	i := sort.Search(len(as.mappings), func(i int) bool { return as.mappings[i].end > uint64(addr) })
	if i < len(as.mappings) && as.mappings[i].start <= addr {
		return &as.mappings[i]
	}
	return nil
}

func (as *AddressSpace) unmapped(kind string, addr uint32) {
	as.unmappedAccesses.Add(1)
	logger.Logf("bus", "unmapped %s at $%08X", kind, addr)
}

func (m *busMapping) slot(addr uint32) uint32 {
	return (addr & m.mask) >> 2
}

func (m *busMapping) writable() bool {
	return m.region.perm&PERM_WRITE != 0
}

func (as *AddressSpace) Read32(addr uint32) uint32 {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("read", addr)
		return 0
	case m.device != nil:
		return m.device.Read(m.slot(addr))
	}
	return m.region.Load32(addr - m.start)
}

func (as *AddressSpace) Write32(addr uint32, value uint32) {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("write", addr)
	case m.device != nil:
		m.device.Write(m.slot(addr), value)
	case m.writable():
		m.region.Store32(addr-m.start, value)
	}
}

// Sub-word peripheral accesses are dispatched as whole-register accesses.
func (as *AddressSpace) Read16(addr uint32) uint16 {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("read", addr)
		return 0
	case m.device != nil:
		return uint16(m.device.Read(m.slot(addr)))
	}
	return m.region.Load16(addr - m.start)
}

func (as *AddressSpace) Write16(addr uint32, value uint16) {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("write", addr)
	case m.device != nil:
		m.device.Write(m.slot(addr), uint32(value))
	case m.writable():
		m.region.Store16(addr-m.start, value)
	}
}

func (as *AddressSpace) Read8(addr uint32) uint8 {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("read", addr)
		return 0
	case m.device != nil:
		return uint8(m.device.Read(m.slot(addr)))
	}
	return m.region.Load8(addr - m.start)
}

func (as *AddressSpace) Write8(addr uint32, value uint8) {
	m := as.find(addr)
	switch {
	case m == nil:
		as.unmapped("write", addr)
	case m.device != nil:
		m.device.Write(m.slot(addr), uint32(value))
	case m.writable():
		m.region.Store8(addr-m.start, value)
	}
}
