// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a disassembler for the restricted 65C816
// instruction set emitted by the snazzy code generator.
//
// Immediate operand widths on the 65C816 follow the M and X status flags,
// so the disassembler tracks REP/SEP/XCE instructions as it walks the
// code. Bytes that do not decode render as .DB directives.
package disasm

import "fmt"

// Addressing modes of the emitted instruction set.
type mode byte

const (
	imp  mode = iota // implied
	immM             // immediate, sized by the M flag
	immX             // immediate, sized by the X flag
	imm8             // immediate, always one byte
	abs              // absolute, two byte address
	rel              // relative, one signed byte
)

type instruction struct {
	name string
	mode mode
}

var instructions = map[byte]instruction{
	0x09: {"ORA", immM},
	0x18: {"CLC", imp},
	0x1B: {"TCS", imp},
	0x20: {"JSR", abs},
	0x29: {"AND", immM},
	0x38: {"SEC", imp},
	0x40: {"RTI", imp},
	0x48: {"PHA", imp},
	0x4C: {"JMP", abs},
	0x58: {"CLI", imp},
	0x5A: {"PHY", imp},
	0x5B: {"TCD", imp},
	0x60: {"RTS", imp},
	0x68: {"PLA", imp},
	0x6B: {"RTL", imp},
	0x78: {"SEI", imp},
	0x7A: {"PLY", imp},
	0x80: {"BRA", rel},
	0x89: {"BIT", immM},
	0x8D: {"STA", abs},
	0x8E: {"STX", abs},
	0x9C: {"STZ", abs},
	0xA2: {"LDX", immX},
	0xA9: {"LDA", immM},
	0xAD: {"LDA", abs},
	0xAE: {"LDX", abs},
	0xC2: {"REP", imm8},
	0xC9: {"CMP", immM},
	0xD0: {"BNE", rel},
	0xDA: {"PHX", imp},
	0xE2: {"SEP", imm8},
	0xF0: {"BEQ", rel},
	0xFA: {"PLX", imp},
	0xFB: {"XCE", imp},
}

// State carries the flag widths the disassembler has inferred so far.
type State struct {
	WideMath  bool
	WideIndex bool
}

// Disassemble decodes one instruction at offset within code, which is
// assumed to be mapped at base. It returns the text of the instruction
// and the number of bytes it occupies, updating the width state for
// REP/SEP/XCE sequences along the way.
func Disassemble(code []byte, offset int, base uint32, st *State) (text string, length int) {
	opcode := code[offset]
	inst, ok := instructions[opcode]
	if !ok {
		return fmt.Sprintf(".DB $%02X", opcode), 1
	}

	size := operandSize(inst.mode, st)
	if offset+1+size > len(code) {
		return fmt.Sprintf(".DB $%02X", opcode), 1
	}
	operand := code[offset+1 : offset+1+size]

	switch inst.mode {
	case imp:
		text = inst.name
		// An XCE following SEC drops the chip into emulation mode,
		// narrowing both widths.
		if opcode == 0x38 && offset+1 < len(code) && code[offset+1] == 0xFB {
			st.WideMath, st.WideIndex = false, false
		}

	case imm8:
		v := operand[0]
		text = fmt.Sprintf("%s #$%02X", inst.name, v)
		if v&0x20 != 0 {
			st.WideMath = opcode == 0xC2
		}
		if v&0x10 != 0 {
			st.WideIndex = opcode == 0xC2
		}

	case immM, immX:
		if size == 2 {
			text = fmt.Sprintf("%s #$%02X%02X", inst.name, operand[1], operand[0])
		} else {
			text = fmt.Sprintf("%s #$%02X", inst.name, operand[0])
		}

	case abs:
		text = fmt.Sprintf("%s $%02X%02X", inst.name, operand[1], operand[0])

	case rel:
		target := base + uint32(offset) + 2 + uint32(int32(int8(operand[0])))
		text = fmt.Sprintf("%s $%04X", inst.name, target&0xFFFF)
	}

	return text, 1 + size
}

func operandSize(m mode, st *State) int {
	switch m {
	case imp:
		return 0
	case immM:
		if st.WideMath {
			return 2
		}
		return 1
	case immX:
		if st.WideIndex {
			return 2
		}
		return 1
	case abs:
		return 2
	default:
		return 1
	}
}
