// cpu_ie32.go - IE32 32-bit register machine engine

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
cpu_ie32.go - IE32 32-bit register machine engine

Fixed 8-byte instructions, little-endian:

    byte 0    opcode
    byte 1    destination / source register (0-15)
    byte 2    addressing mode
    byte 3    unused
    byte 4-7  operand

Addressing modes:

    0 immediate          operand
    1 register           R[operand & 0xF]
    2 register indirect  mem[R[operand & 3] + (operand & ^3)]
    3 memory indirect    mem[mem[operand]] for stores, mem[operand] for loads
    4 direct             mem[operand]

Every fetch and data access goes through the address space, so MMIO hooks
see the guest's loads and stores exactly.

Run returns on WFI (PC advanced past it), HALT (PC left on it), reaching
untilPC, or a Halt request from another goroutine. Guest faults (invalid
opcode, division by zero, stack overflow) stop execution with an error.
*/

package main

import (
	"fmt"
	"sync/atomic"
)

const (
	IE32_INSTRUCTION_SIZE = 8
	IE32_WORD_SIZE        = 4
	IE32_REGISTER_COUNT   = 16
	IE32_STACK_SIZE       = 64 * 1024

	REG_INDEX_MASK    = 0x0F
	REG_INDIRECT_MASK = 0x03
	OFFSET_MASK       = 0xFFFFFFFC
)

const (
	ADDR_IMMEDIATE = 0x00
	ADDR_REGISTER  = 0x01
	ADDR_REG_IND   = 0x02
	ADDR_MEM_IND   = 0x03
	ADDR_DIRECT    = 0x04
)

const (
	LOAD  = 0x01
	STORE = 0x02
	ADD   = 0x03
	SUB   = 0x04
	AND   = 0x05
	JMP   = 0x06
	JNZ   = 0x07
	JZ    = 0x08
	OR    = 0x09
	XOR   = 0x0A
	SHL   = 0x0B
	SHR   = 0x0C
	NOT   = 0x0D
	JGT   = 0x0E
	JGE   = 0x0F
	JLT   = 0x10
	JLE   = 0x11
	PUSH  = 0x12
	POP   = 0x13
	MUL   = 0x14
	DIV   = 0x15
	MOD   = 0x16
	JSR   = 0x18
	RTS   = 0x19
	WFI   = 0x1D
	SWI   = 0x1E
	INC   = 0x28
	DEC   = 0x29

	NOP  = 0xEE
	HALT = 0xFF
)

type IE32Engine struct {
	bus Bus32

	regs [IE32_REGISTER_COUNT]uint32
	pc   uint32
	sp   uint32

	stackTop    uint32
	stackBottom uint32

	trapHook TrapHook
	halt     atomic.Bool
}

// NewIE32Engine creates an engine whose stack grows down from stackTop.
func NewIE32Engine(bus Bus32, stackTop uint32) *IE32Engine {
	return &IE32Engine{
		bus:         bus,
		sp:          stackTop,
		stackTop:    stackTop,
		stackBottom: stackTop - IE32_STACK_SIZE,
	}
}

func (cpu *IE32Engine) PC() uint32             { return cpu.pc }
func (cpu *IE32Engine) SetPC(pc uint32)        { cpu.pc = pc }
func (cpu *IE32Engine) SP() uint32             { return cpu.sp }
func (cpu *IE32Engine) SetTrapHook(h TrapHook) { cpu.trapHook = h }

func (cpu *IE32Engine) Register(i int) uint32 {
	return cpu.regs[i&REG_INDEX_MASK]
}

func (cpu *IE32Engine) SetRegister(i int, v uint32) {
	cpu.regs[i&REG_INDEX_MASK] = v
}

// Halt asks a running Run call to return StopInterrupted. A request made
// while the engine is not running is delivered to the next Run.
func (cpu *IE32Engine) Halt() {
	cpu.halt.Store(true)
}

func (cpu *IE32Engine) getRegister(reg byte) *uint32 {
	return &cpu.regs[reg&REG_INDEX_MASK]
}

func (cpu *IE32Engine) push(value uint32) error {
	if cpu.sp <= cpu.stackBottom {
		return fmt.Errorf("ie32: stack overflow at PC=$%08X (SP=$%08X)", cpu.pc, cpu.sp)
	}
	cpu.sp -= IE32_WORD_SIZE
	cpu.bus.Write32(cpu.sp, value)
	return nil
}

func (cpu *IE32Engine) pop() (uint32, error) {
	if cpu.sp >= cpu.stackTop {
		return 0, fmt.Errorf("ie32: stack underflow at PC=$%08X (SP=$%08X)", cpu.pc, cpu.sp)
	}
	value := cpu.bus.Read32(cpu.sp)
	cpu.sp += IE32_WORD_SIZE
	return value, nil
}

func (cpu *IE32Engine) resolveOperand(addrMode byte, operand uint32) uint32 {
	switch addrMode {
	case ADDR_IMMEDIATE:
		return operand
	case ADDR_REGISTER:
		return *cpu.getRegister(byte(operand))
	case ADDR_REG_IND:
		return cpu.bus.Read32(cpu.effectiveAddress(operand))
	case ADDR_MEM_IND, ADDR_DIRECT:
		return cpu.bus.Read32(operand)
	}
	return 0
}

func (cpu *IE32Engine) effectiveAddress(operand uint32) uint32 {
	return *cpu.getRegister(byte(operand & REG_INDIRECT_MASK)) + (operand & OFFSET_MASK)
}

func (cpu *IE32Engine) storeTarget(addrMode byte, operand uint32) uint32 {
	switch addrMode {
	case ADDR_REG_IND:
		return cpu.effectiveAddress(operand)
	case ADDR_MEM_IND:
		return cpu.bus.Read32(operand)
	}
	return operand
}

func (cpu *IE32Engine) Run(startPC uint32, untilPC uint64) (StopReason, error) {
	cpu.pc = startPC

	for {
		if cpu.halt.Swap(false) {
			return StopInterrupted, nil
		}
		if uint64(cpu.pc) == untilPC {
			return StopUntil, nil
		}

		currentPC := cpu.pc
		word := cpu.bus.Read32(currentPC)
		opcode := byte(word)
		reg := byte(word >> 8)
		addrMode := byte(word >> 16)
		operand := cpu.bus.Read32(currentPC + IE32_WORD_SIZE)
		next := currentPC + IE32_INSTRUCTION_SIZE

		switch opcode {
		case LOAD:
			*cpu.getRegister(reg) = cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case STORE:
			cpu.bus.Write32(cpu.storeTarget(addrMode, operand), *cpu.getRegister(reg))
			cpu.pc = next

		case ADD:
			*cpu.getRegister(reg) += cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case SUB:
			*cpu.getRegister(reg) -= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case AND:
			*cpu.getRegister(reg) &= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case OR:
			*cpu.getRegister(reg) |= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case XOR:
			*cpu.getRegister(reg) ^= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case SHL:
			*cpu.getRegister(reg) <<= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case SHR:
			*cpu.getRegister(reg) >>= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case NOT:
			targetReg := cpu.getRegister(reg)
			*targetReg = ^(*targetReg)
			cpu.pc = next

		case MUL:
			*cpu.getRegister(reg) *= cpu.resolveOperand(addrMode, operand)
			cpu.pc = next

		case DIV, MOD:
			divisor := cpu.resolveOperand(addrMode, operand)
			if divisor == 0 {
				return StopHalt, fmt.Errorf("ie32: division by zero at PC=$%08X", currentPC)
			}
			targetReg := cpu.getRegister(reg)
			if opcode == DIV {
				*targetReg /= divisor
			} else {
				*targetReg %= divisor
			}
			cpu.pc = next

		case INC:
			cpu.modify(addrMode, operand, 1)
			cpu.pc = next

		case DEC:
			cpu.modify(addrMode, operand, ^uint32(0))
			cpu.pc = next

		case JMP:
			cpu.pc = operand

		case JNZ, JZ, JGT, JGE, JLT, JLE:
			if cpu.branchTaken(opcode, *cpu.getRegister(reg)) {
				cpu.pc = operand
			} else {
				cpu.pc = next
			}

		case PUSH:
			if err := cpu.push(*cpu.getRegister(reg)); err != nil {
				return StopHalt, err
			}
			cpu.pc = next

		case POP:
			value, err := cpu.pop()
			if err != nil {
				return StopHalt, err
			}
			*cpu.getRegister(reg) = value
			cpu.pc = next

		case JSR:
			if err := cpu.push(next); err != nil {
				return StopHalt, err
			}
			cpu.pc = operand

		case RTS:
			retAddr, err := cpu.pop()
			if err != nil {
				return StopHalt, err
			}
			cpu.pc = retAddr

		case WFI:
			cpu.pc = next
			return StopWait, nil

		case SWI:
			cpu.pc = next
			if cpu.trapHook != nil {
				cpu.trapHook(cpu, operand)
			}

		case NOP:
			cpu.pc = next

		case HALT:
			return StopHalt, nil

		default:
			return StopHalt, fmt.Errorf("ie32: invalid opcode $%02X at PC=$%08X", opcode, currentPC)
		}
	}
}

func (cpu *IE32Engine) branchTaken(opcode byte, value uint32) bool {
	switch opcode {
	case JNZ:
		return value != 0
	case JZ:
		return value == 0
	case JGT:
		return int32(value) > 0
	case JGE:
		return int32(value) >= 0
	case JLT:
		return int32(value) < 0
	case JLE:
		return int32(value) <= 0
	}
	return false
}

// modify adds delta to a register or memory word.
func (cpu *IE32Engine) modify(addrMode byte, operand uint32, delta uint32) {
	if addrMode == ADDR_REGISTER {
		*cpu.getRegister(byte(operand)) += delta
		return
	}
	addr := operand
	switch addrMode {
	case ADDR_REG_IND:
		addr = cpu.effectiveAddress(operand)
	case ADDR_MEM_IND:
		addr = cpu.bus.Read32(operand)
	}
	cpu.bus.Write32(addr, cpu.bus.Read32(addr)+delta)
}
