// ie32_asm.go - two-pass assembler for IE32 boot ROMs

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
ie32_asm.go - two-pass assembler for IE32 boot ROMs

Syntax, one statement per line, ';' starts a comment:

    label:                      define label at the current address
    label: OP ...               label and instruction on one line
    .equ NAME value             symbolic constant
    .org address                move the assembly address (absolute)
    .word v[, v...]             32-bit little-endian words
    .byte v[, v...]             bytes
    .space n                    n zero bytes
    .ascii "text"               raw string bytes
    .align n                    pad to a multiple of n

Operands:

    #value     immediate
    A..W, R0-R15  register
    [R+off]    register indirect (A, X, Y, Z only, off multiple of 4)
    [value]    memory indirect
    @value     direct
    value      immediate (bare number, label or equate)

Values are numbers (0x.., $.., decimal, 'c'), labels or equates, optionally
joined with '+' or '-'.
*/

package main

import (
	"fmt"
	"strconv"
	"strings"
)

var ie32Registers = map[string]byte{
	"A": 0, "X": 1, "Y": 2, "Z": 3,
	"B": 4, "C": 5, "D": 6, "E": 7,
	"F": 8, "G": 9, "H": 10, "S": 11,
	"T": 12, "U": 13, "V": 14, "W": 15,
}

var ie32ALUOps = map[string]byte{
	"LOAD": LOAD, "STORE": STORE, "ADD": ADD, "SUB": SUB,
	"AND": AND, "OR": OR, "XOR": XOR, "SHL": SHL, "SHR": SHR,
	"MUL": MUL, "DIV": DIV, "MOD": MOD,
}

var ie32BranchOps = map[string]byte{
	"JNZ": JNZ, "JZ": JZ, "JGT": JGT, "JGE": JGE, "JLT": JLT, "JLE": JLE,
}

var ie32ImpliedOps = map[string]byte{
	"RTS": RTS, "WFI": WFI, "NOP": NOP, "HALT": HALT,
}

// AsmError locates an assembly failure.
type AsmError struct {
	Line int
	Msg  string
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type ie32Assembler struct {
	base    uint32
	labels  map[string]uint32
	equates map[string]uint32
	offset  uint32
	image   []byte
	final   bool
}

// AssembleIE32 assembles src for loading at base and returns the image.
// The image starts at base and ends at the highest address written.
func AssembleIE32(src string, base uint32) ([]byte, error) {
	a := &ie32Assembler{
		base:    base,
		labels:  make(map[string]uint32),
		equates: make(map[string]uint32),
	}
	lines := strings.Split(src, "\n")

	// first pass sizes everything and collects labels
	size, err := a.pass(lines)
	if err != nil {
		return nil, err
	}

	a.final = true
	a.offset = 0
	a.image = make([]byte, size)
	if _, err := a.pass(lines); err != nil {
		return nil, err
	}
	return a.image, nil
}

func (a *ie32Assembler) pass(lines []string) (uint32, error) {
	var end uint32
	for i, raw := range lines {
		line := stripComment(raw)
		if line == "" {
			continue
		}

		if label, rest, ok := splitLabel(line); ok {
			if !a.final {
				if _, dup := a.labels[label]; dup {
					return 0, &AsmError{i + 1, fmt.Sprintf("duplicate label %q", label)}
				}
				a.labels[label] = a.base + a.offset
			}
			line = rest
			if line == "" {
				continue
			}
		}

		var err error
		if strings.HasPrefix(line, ".") {
			err = a.directive(line)
		} else {
			err = a.instruction(line)
		}
		if err != nil {
			return 0, &AsmError{i + 1, err.Error()}
		}
		end = max(end, a.offset)
	}
	return end, nil
}

func stripComment(line string) string {
	inQuote := false
	for i, r := range line {
		switch r {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return strings.TrimSpace(line)
}

func splitLabel(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || strings.ContainsAny(line[:idx], " \t\"[#@") {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

func (a *ie32Assembler) emit(b ...byte) {
	if a.final && int(a.offset) < len(a.image) {
		copy(a.image[a.offset:], b)
	}
	a.offset += uint32(len(b))
}

func (a *ie32Assembler) emitInstruction(op, reg, mode byte, operand uint32) {
	a.emit(op, reg, mode, 0, byte(operand), byte(operand>>8), byte(operand>>16), byte(operand>>24))
}

func (a *ie32Assembler) directive(line string) error {
	name, rest := cutField(line)

	switch strings.ToLower(name) {
	case ".equ":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return fmt.Errorf("invalid .equ format")
		}
		v, err := a.value(strings.Join(fields[1:], ""))
		if err != nil {
			return err
		}
		a.equates[fields[0]] = v

	case ".org":
		addr, err := a.value(rest)
		if err != nil {
			return err
		}
		if addr < a.base {
			return fmt.Errorf(".org $%X below base $%X", addr, a.base)
		}
		a.offset = addr - a.base

	case ".word":
		for _, tok := range splitList(rest) {
			v, err := a.value(tok)
			if err != nil {
				return err
			}
			a.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		}

	case ".byte":
		for _, tok := range splitList(rest) {
			v, err := a.value(tok)
			if err != nil {
				return err
			}
			if v > 0xFF {
				return fmt.Errorf("byte value $%X out of range", v)
			}
			a.emit(byte(v))
		}

	case ".space":
		n, err := a.value(rest)
		if err != nil {
			return err
		}
		a.emit(make([]byte, n)...)

	case ".align":
		n, err := a.value(rest)
		if err != nil {
			return err
		}
		if n == 0 || n&(n-1) != 0 {
			return fmt.Errorf(".align %d is not a power of two", n)
		}
		pad := (n - (a.base+a.offset)%n) % n
		a.emit(make([]byte, pad)...)

	case ".ascii":
		s, err := strconv.Unquote(rest)
		if err != nil {
			return fmt.Errorf("invalid string %s", rest)
		}
		a.emit([]byte(s)...)

	default:
		return fmt.Errorf("unknown directive: %s", name)
	}
	return nil
}

// cutField splits off the first whitespace-delimited field.
func cutField(line string) (string, string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (a *ie32Assembler) instruction(line string) error {
	mnemonic, rest := cutField(line)
	mnemonic = strings.ToUpper(mnemonic)
	var args []string
	if rest != "" {
		args = splitList(rest)
	}

	// LDA..LDW / STA..STW shorthands name the register in the mnemonic
	if len(mnemonic) == 3 && (strings.HasPrefix(mnemonic, "LD") || strings.HasPrefix(mnemonic, "ST")) {
		if reg, ok := ie32Registers[mnemonic[2:]]; ok {
			if len(args) != 1 {
				return fmt.Errorf("%s takes one operand", mnemonic)
			}
			op := byte(LOAD)
			if mnemonic[0] == 'S' {
				op = STORE
			}
			return a.encodeOperand(op, reg, args[0])
		}
	}

	if op, ok := ie32ALUOps[mnemonic]; ok {
		if len(args) != 2 {
			return fmt.Errorf("invalid instruction format: %s", line)
		}
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		return a.encodeOperand(op, reg, args[1])
	}

	if op, ok := ie32BranchOps[mnemonic]; ok {
		if len(args) != 2 {
			return fmt.Errorf("invalid branch format: %s", line)
		}
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		target, err := a.value(args[1])
		if err != nil {
			return err
		}
		a.emitInstruction(op, reg, 0, target)
		return nil
	}

	if op, ok := ie32ImpliedOps[mnemonic]; ok {
		if len(args) != 0 {
			return fmt.Errorf("%s takes no operands", mnemonic)
		}
		a.emitInstruction(op, 0, 0, 0)
		return nil
	}

	switch mnemonic {
	case "JMP", "JSR", "SWI":
		if len(args) != 1 {
			return fmt.Errorf("%s takes one operand", mnemonic)
		}
		target, err := a.value(strings.TrimPrefix(args[0], "#"))
		if err != nil {
			return err
		}
		op := map[string]byte{"JMP": JMP, "JSR": JSR, "SWI": SWI}[mnemonic]
		a.emitInstruction(op, 0, 0, target)
		return nil

	case "INC", "DEC":
		if len(args) != 1 {
			return fmt.Errorf("%s takes one operand", mnemonic)
		}
		op := byte(INC)
		if mnemonic == "DEC" {
			op = DEC
		}
		return a.encodeOperand(op, 0, args[0])

	case "NOT", "PUSH", "POP":
		if len(args) != 1 {
			return fmt.Errorf("%s takes one register", mnemonic)
		}
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		op := map[string]byte{"NOT": NOT, "PUSH": PUSH, "POP": POP}[mnemonic]
		a.emitInstruction(op, reg, 0, 0)
		return nil
	}

	return fmt.Errorf("unknown instruction: %s", mnemonic)
}

func (a *ie32Assembler) encodeOperand(op, reg byte, operand string) error {
	mode, value, err := a.parseOperand(operand)
	if err != nil {
		return err
	}
	a.emitInstruction(op, reg, mode, value)
	return nil
}

func parseRegister(s string) (byte, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if reg, ok := ie32Registers[s]; ok {
		return reg, nil
	}
	if n, ok := strings.CutPrefix(s, "R"); ok {
		if v, err := strconv.ParseUint(n, 10, 8); err == nil && v < IE32_REGISTER_COUNT {
			return byte(v), nil
		}
	}
	return 0, fmt.Errorf("invalid register: %s", s)
}

func (a *ie32Assembler) parseOperand(operand string) (byte, uint32, error) {
	switch {
	case strings.HasPrefix(operand, "[") && strings.HasSuffix(operand, "]"):
		inner := strings.TrimSpace(operand[1 : len(operand)-1])
		head, tail, hasOffset := strings.Cut(inner, "+")
		if reg, err := parseRegister(head); err == nil {
			if reg > REG_INDIRECT_MASK {
				return 0, 0, fmt.Errorf("register %s cannot be used indirectly", strings.TrimSpace(head))
			}
			var offset uint32
			if hasOffset {
				if offset, err = a.value(tail); err != nil {
					return 0, 0, err
				}
				if offset&3 != 0 {
					return 0, 0, fmt.Errorf("offset must be multiple of 4")
				}
			}
			return ADDR_REG_IND, uint32(reg) | offset, nil
		}
		v, err := a.value(inner)
		return ADDR_MEM_IND, v, err

	case strings.HasPrefix(operand, "@"):
		v, err := a.value(operand[1:])
		return ADDR_DIRECT, v, err

	case strings.HasPrefix(operand, "#"):
		v, err := a.value(operand[1:])
		return ADDR_IMMEDIATE, v, err
	}

	if reg, err := parseRegister(operand); err == nil {
		return ADDR_REGISTER, uint32(reg), nil
	}
	v, err := a.value(operand)
	return ADDR_IMMEDIATE, v, err
}

// value evaluates terms joined by '+' and '-'. Labels not yet defined
// evaluate to 0 in the first pass.
func (a *ie32Assembler) value(expr string) (uint32, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("missing value")
	}
	var total uint32
	sign := uint32(1)
	start := 0
	for i := 0; i <= len(expr); i++ {
		if i < len(expr) && (expr[i] != '+' && expr[i] != '-' || i == start) {
			continue
		}
		v, err := a.term(strings.TrimSpace(expr[start:i]))
		if err != nil {
			return 0, err
		}
		total += sign * v
		if i < len(expr) && expr[i] == '-' {
			sign = ^uint32(0)
		} else {
			sign = 1
		}
		start = i + 1
	}
	return total, nil
}

func (a *ie32Assembler) term(tok string) (uint32, error) {
	if tok == "" {
		return 0, fmt.Errorf("malformed expression")
	}
	if len(tok) == 3 && tok[0] == '\'' && tok[2] == '\'' {
		return uint32(tok[1]), nil
	}
	if hex, ok := strings.CutPrefix(tok, "$"); ok {
		tok = "0x" + hex
	}
	if tok[0] >= '0' && tok[0] <= '9' {
		v, err := strconv.ParseUint(tok, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", tok)
		}
		return uint32(v), nil
	}
	if v, ok := a.equates[tok]; ok {
		return v, nil
	}
	if v, ok := a.labels[tok]; ok {
		return v, nil
	}
	if !a.final {
		return 0, nil
	}
	return 0, fmt.Errorf("undefined label or equate: %s", tok)
}
