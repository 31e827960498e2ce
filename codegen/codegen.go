// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codegen translates a snazzy syntax tree into a 32 KiB 65C816
// LoROM cartridge image.
//
// The generator is a single pass over the program's functions. It tracks a
// virtual CPU mode (emulation, wide math, wide index) with lexical scoping
// across nested attributed blocks, emitting REP/SEP/XCE shims at each
// block boundary so the physical CPU state follows the virtual one.
// Forward calls are patched through a relocation list once the callee's
// address is known.
package codegen

import (
	"fmt"
	"io"
	"sort"

	"github.com/snazzylang/snazzy/ast"
)

// Option is a bitmask controlling assembly behavior.
type Option uint32

// Assembly options.
const (
	// Verbose routes a listing of every emitted instruction to the
	// output writer.
	Verbose Option = 1 << iota
)

// SymbolKind distinguishes variables from functions in a Result's symbol
// table.
type SymbolKind byte

// Symbol kinds.
const (
	SymVar SymbolKind = iota
	SymFunc
)

// A Symbol describes one named entity of an assembled program.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Addr       uint32 // variable address, or function entry address
	Attributes []ast.Attribute
}

// Result of the Assemble function.
type Result struct {
	Code    []byte   // the complete 32 KiB image
	Symbols []Symbol // every named entity, sorted by address then name
}

// A name table entry. A function's code address is -1 until emission of
// its body begins.
type entry struct {
	isFunc bool
	addr   uint32 // variable address
	code   int    // function entry address (bank start + offset)
	attrs  []ast.Attribute
}

type relocKind byte

const (
	relocFunction relocKind = iota
	relocBreak
)

// A relocation is a deferred address patch, applied once the referenced
// symbol's location is known.
type relocation struct {
	kind   relocKind
	target string
	fixup  int // offset of the low address byte within the bank
}

// A modeState snapshots the virtual CPU mode across a block boundary.
type modeState struct {
	emulation bool
	wideMath  bool
	wideIndex bool
}

// The context is the state object used during translation of a program
// into machine code.
type context struct {
	bank        bank
	emulation   bool
	wideMath    bool
	wideIndex   bool
	names       map[string]entry
	relocations []relocation
	prog        *ast.Program
	out         io.Writer
	options     Option
}

// Assemble translates a program into a LoROM image. When the Verbose
// option is set, an assembly listing is written to out.
//
// The mode state starts as a cold-reset 65C816: emulation set, math and
// index narrow. Function attributes update the virtual mode without
// emitting shims, so a function must declare the mode it requires and the
// call sites pay for any transition.
func Assemble(prog *ast.Program, out io.Writer, options Option) (*Result, error) {
	if out == nil {
		out = io.Discard
	}
	c := &context{
		bank:      bank{code: make([]byte, 0, 512)},
		emulation: true,
		names:     make(map[string]entry),
		prog:      prog,
		out:       out,
		options:   options,
	}

	steps := []func() error{
		c.buildNames,
		c.assembleFunctions,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	code, err := c.finalize()
	if err != nil {
		return nil, err
	}
	return &Result{Code: code, Symbols: c.symbols()}, nil
}

// Register every top-level definition in the name table. Functions are
// registered before any body is generated so mutually recursive calls
// resolve. Duplicate names are last-wins.
func (c *context) buildNames() error {
	c.logSection("Building name table")
	for _, def := range c.prog.Definitions {
		switch def := def.(type) {
		case ast.Var:
			c.names[def.Name] = entry{addr: def.Address}
			c.log("%-15s Var  $%04X", def.Name, def.Address)
		case ast.Function:
			c.names[def.Name] = entry{isFunc: true, code: -1, attrs: def.Body.Attributes}
			c.log("%-15s Fun  %v", def.Name, def.Body.Attributes)
		}
	}
	return nil
}

func (c *context) assembleFunctions() error {
	c.logSection("Generating code")
	for _, def := range c.prog.Definitions {
		if fn, ok := def.(ast.Function); ok {
			if err := c.assembleFunction(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *context) assembleFunction(function ast.Function) error {
	saved := modeState{c.emulation, c.wideMath, c.wideIndex}

	addr := len(c.bank.code) + bankStart
	c.names[function.Name] = entry{isFunc: true, code: addr, attrs: function.Body.Attributes}
	c.log("--- %s at $%04X", function.Name, addr)

	// Patch every call site that referenced this function before its
	// address was known.
	remaining := c.relocations[:0]
	for _, r := range c.relocations {
		if r.kind == relocFunction && r.target == function.Name {
			c.bank.code[r.fixup] = byte(addr)
			c.bank.code[r.fixup+1] = byte(addr >> 8)
			c.log("patched call at $%04X", r.fixup-1+bankStart)
		} else {
			remaining = append(remaining, r)
		}
	}
	c.relocations = remaining

	// The function's own attributes change the virtual mode without
	// emitting shims; transitions are the callers' responsibility.
	if err := c.updateCodegen(function.Body.Attributes, function.Name); err != nil {
		return err
	}

	for _, inst := range function.Body.Instructions {
		if err := c.assembleInstruction(inst, function.Name); err != nil {
			return err
		}
	}

	var opcode byte
	switch {
	case containsAttr(function.Body.Attributes, ast.Interrupt):
		opcode = 0x40 // RTI
	case containsAttr(function.Body.Attributes, ast.Extern):
		opcode = 0x6B // RTL
	default:
		opcode = 0x60 // RTS
	}
	if err := c.push("Return", function.Name, opcode); err != nil {
		return err
	}

	c.emulation, c.wideMath, c.wideIndex = saved.emulation, saved.wideMath, saved.wideIndex
	return nil
}

// Emit the mode shims entering an attributed scope, returning the mode
// that exitScope must restore.
func (c *context) enterScope(attrs []ast.Attribute, fn string) (modeState, error) {
	saved := modeState{c.emulation, c.wideMath, c.wideIndex}
	if err := c.updateCodegen(attrs, fn); err != nil {
		return saved, err
	}
	if err := c.updateEmulation(saved.emulation, fn); err != nil {
		return saved, err
	}
	return saved, c.updateMX(saved.wideMath, saved.wideIndex, fn)
}

// Emit the mode shims leaving an attributed scope, restoring the mode
// captured by enterScope.
func (c *context) exitScope(saved modeState, fn string) error {
	inner := modeState{c.emulation, c.wideMath, c.wideIndex}
	c.emulation, c.wideMath, c.wideIndex = saved.emulation, saved.wideMath, saved.wideIndex
	if err := c.updateEmulation(inner.emulation, fn); err != nil {
		return err
	}
	return c.updateMX(inner.wideMath, inner.wideIndex, fn)
}

func (c *context) assembleInstruction(instruction ast.Instruction, fn string) error {
	switch inst := instruction.(type) {
	case ast.Assign:
		return c.assign(inst.Dst, inst.Src, fn)

	case ast.AndAssign:
		switch dst := inst.Dst.(type) {
		case ast.Register:
			if src, ok := inst.Src.(ast.Immediate); ok && dst == ast.A {
				if c.wideMath {
					return errInvalidRegister(ast.A, ast.WideMath, fn)
				}
				if src > 0xFF {
					return errInvalidValue(uint32(src), fn)
				}
				return c.push("And A imm", fn, 0x29, byte(src)) // AND imm
			}
		}
		return errBadAndAssignment(inst.Dst, inst.Src, fn)

	case ast.OrAssign:
		switch dst := inst.Dst.(type) {
		case ast.Register:
			if src, ok := inst.Src.(ast.Immediate); ok && dst == ast.A {
				if c.wideMath {
					return errInvalidRegister(ast.A, ast.WideMath, fn)
				}
				if src > 0xFF {
					return errInvalidValue(uint32(src), fn)
				}
				return c.push("Or A imm", fn, 0x09, byte(src)) // ORA imm
			}
		}
		return errBadOrAssignment(inst.Dst, inst.Src, fn)

	case ast.Nested:
		saved, err := c.enterScope(inst.Block.Attributes, fn)
		if err != nil {
			return err
		}
		for _, i := range inst.Block.Instructions {
			if err := c.assembleInstruction(i, fn); err != nil {
				return err
			}
		}
		return c.exitScope(saved, fn)

	case ast.Call:
		return c.call(inst.Target, fn)

	case ast.If:
		return c.ifBlock(inst, fn)

	case ast.Loop:
		return c.loop(inst, fn)

	case ast.Push:
		switch reg, ok := inst.Op.(ast.Register); {
		case ok && reg == ast.A:
			if c.wideMath {
				return errInvalidRegister(ast.A, ast.WideMath, fn)
			}
			return c.push("PHA", fn, 0x48)
		case ok && reg == ast.C:
			if !c.wideMath {
				return errInvalidRegister(ast.C, ast.NarrowMath, fn)
			}
			return c.push("PHA", fn, 0x48)
		case ok && reg == ast.X:
			return c.push("PHX", fn, 0xDA)
		case ok && reg == ast.Y:
			return c.push("PHY", fn, 0x5A)
		}
		return errBadPush(inst.Op, fn)

	case ast.Pop:
		switch reg, ok := inst.Op.(ast.Register); {
		case ok && reg == ast.A:
			if c.wideMath {
				return errInvalidRegister(ast.A, ast.WideMath, fn)
			}
			return c.push("PLA", fn, 0x68)
		case ok && reg == ast.C:
			if !c.wideMath {
				return errInvalidRegister(ast.C, ast.NarrowMath, fn)
			}
			return c.push("PLA", fn, 0x68)
		case ok && reg == ast.X:
			return c.push("PLX", fn, 0xFA)
		case ok && reg == ast.Y:
			return c.push("PLY", fn, 0x7A)
		}
		return errBadPop(inst.Op, fn)

	case ast.Cli:
		return c.push("Cli", fn, 0x58)

	case ast.Sei:
		return c.push("Sei", fn, 0x78)
	}

	panic(fmt.Sprintf("unhandled instruction %T", instruction))
}

// Emit an Assign instruction. Each legal destination/source pairing has a
// fixed encoding; anything else is a BadAssignment.
func (c *context) assign(dst, src ast.Operand, fn string) error {
	switch d := dst.(type) {
	case ast.Register:
		switch s := src.(type) {
		case ast.Immediate:
			switch d {
			case ast.A:
				if c.wideMath {
					return errInvalidRegister(ast.A, ast.WideMath, fn)
				}
				if s > 0xFF {
					return errInvalidValue(uint32(s), fn)
				}
				return c.push("Load A", fn, 0xA9, byte(s)) // LDA imm

			case ast.C:
				if !c.wideMath {
					return errInvalidRegister(ast.C, ast.NarrowMath, fn)
				}
				if s > 0xFFFF {
					return errInvalidValue(uint32(s), fn)
				}
				return c.push("Load C", fn, 0xA9, byte(s), byte(s>>8)) // LDA imm

			case ast.X:
				if c.wideIndex {
					if s > 0xFFFF {
						return errInvalidValue(uint32(s), fn)
					}
					return c.push("Load X imm", fn, 0xA2, byte(s), byte(s>>8)) // LDX imm
				}
				if s > 0xFF {
					return errInvalidValue(uint32(s), fn)
				}
				return c.push("Load X imm", fn, 0xA2, byte(s)) // LDX imm
			}

		case ast.Variable:
			switch d {
			case ast.A:
				if c.wideMath {
					return errInvalidRegister(ast.A, ast.WideMath, fn)
				}
				addr, err := c.variableAddr(s, fn)
				if err != nil {
					return err
				}
				return c.push("Load A", fn, 0xAD, byte(addr), byte(addr>>8)) // LDA abs

			case ast.C:
				if !c.wideMath {
					return errInvalidRegister(ast.C, ast.NarrowMath, fn)
				}
				addr, err := c.variableAddr(s, fn)
				if err != nil {
					return err
				}
				return c.push("Load C", fn, 0xAD, byte(addr), byte(addr>>8)) // LDA abs

			case ast.X:
				addr, err := c.variableAddr(s, fn)
				if err != nil {
					return err
				}
				return c.push("Load X abs", fn, 0xAE, byte(addr), byte(addr>>8)) // LDX abs
			}

		case ast.Register:
			switch {
			case d == ast.D && s == ast.C:
				return c.push("Transfer C to D", fn, 0x5B) // TCD
			case d == ast.S && s == ast.C:
				return c.push("Transfer C to S", fn, 0x1B) // TCS
			}
		}

	case ast.Absolute:
		// Only the A register and the constant zero may be stored
		// through a literal address.
		if op, ok := storeFor(src, false); ok {
			if uint32(d) > 0xFFFF {
				return errInvalidAddress(uint32(d), fn)
			}
			return c.push(op.name, fn, op.opcode, byte(d), byte(d>>8))
		}

	case ast.Variable:
		if op, ok := storeFor(src, true); ok {
			addr, err := c.variableAddr(d, fn)
			if err != nil {
				return err
			}
			return c.push(op.name, fn, op.opcode, byte(addr), byte(addr>>8))
		}
	}

	return errBadAssignment(dst, src, fn)
}

type storeOp struct {
	name   string
	opcode byte
}

// The stores legal into a memory destination: the A register, the
// constant zero, and (into variables only) the X register.
func storeFor(src ast.Operand, allowX bool) (storeOp, bool) {
	switch s := src.(type) {
	case ast.Register:
		switch {
		case s == ast.A:
			return storeOp{"Store A", 0x8D}, true // STA abs
		case s == ast.X && allowX:
			return storeOp{"Store X", 0x8E}, true // STX abs
		}
	case ast.Immediate:
		if s == 0 {
			return storeOp{"Store Zero", 0x9C}, true // STZ abs
		}
	}
	return storeOp{}, false
}

func (c *context) variableAddr(v ast.Variable, fn string) (uint32, error) {
	e, ok := c.names[string(v)]
	if !ok || e.isFunc {
		return 0, errUnknownVariable(string(v), fn)
	}
	if e.addr > 0xFFFF {
		return 0, errInvalidAddress(e.addr, fn)
	}
	return e.addr, nil
}

// Emit a call. The callee's attributes are applied as if entering a
// block, so the caller transitions to the callee's documented mode and
// back. Unresolved callees get a placeholder address and a relocation.
func (c *context) call(target, fn string) error {
	e, ok := c.names[target]
	if !ok || !e.isFunc {
		return errUnknownFunction(target, fn)
	}

	saved, err := c.enterScope(e.attrs, fn)
	if err != nil {
		return err
	}

	addr := e.code
	if addr < 0 {
		c.relocations = append(c.relocations, relocation{relocFunction, target, len(c.bank.code) + 1})
		addr = 0
	}

	if containsAttr(e.attrs, ast.Extern) {
		panic("calling extern functions is not implemented")
	}
	if err := c.push("Call", fn, 0x20, byte(addr), byte(addr>>8)); err != nil { // JSR abs
		return err
	}

	return c.exitScope(saved, fn)
}

// Emit an if block: the conditional in inverted sense, a one-byte branch
// placeholder, the body, then patch the placeholder with the body length.
func (c *context) ifBlock(inst ast.If, fn string) error {
	if err := c.assembleConditional(inst.Cond, -1, true, fn); err != nil {
		return err
	}
	blockStart := len(c.bank.code)

	saved, err := c.enterScope(inst.Body.Attributes, fn)
	if err != nil {
		return err
	}
	for _, i := range inst.Body.Instructions {
		if err := c.assembleInstruction(i, fn); err != nil {
			return err
		}
	}
	if err := c.exitScope(saved, fn); err != nil {
		return err
	}

	blockLen := len(c.bank.code) - blockStart
	if blockLen > 127 {
		return &Error{Code: IfTooLong, Func: fn}
	}
	c.bank.code[blockStart-1] = byte(blockLen)
	return nil
}

// Emit a do/while loop. The loop start is recorded after the entry shims
// so repeated iterations do not replay the mode transition.
func (c *context) loop(inst ast.Loop, fn string) error {
	saved, err := c.enterScope(inst.Body.Attributes, fn)
	if err != nil {
		return err
	}

	loopStart := len(c.bank.code)
	for _, i := range inst.Body.Instructions {
		if err := c.assembleInstruction(i, fn); err != nil {
			return err
		}
	}

	for _, r := range c.relocations {
		if r.kind == relocBreak {
			panic("break relocations are not implemented")
		}
	}

	if inst.Cond != nil {
		if err := c.assembleConditional(inst.Cond, loopStart, false, fn); err != nil {
			return err
		}
	} else {
		loopLength := len(c.bank.code) - loopStart
		if loopLength <= 126 {
			// Short loop, use a BRA.
			offset := -(byte(loopLength) + 2)
			if err := c.push("Loop", fn, 0x80, offset); err != nil {
				return err
			}
		} else {
			// Long loop, must use a JMP.
			target := uint32(loopStart + bankStart)
			if err := c.push("Loop", fn, 0x4C, byte(target), byte(target>>8)); err != nil {
				return err
			}
		}
	}

	return c.exitScope(saved, fn)
}

// Emit a conditional test followed by a relative branch. The test leaves
// the zero flag reflecting the condition together with a zero-flag sense;
// the branch opcode is chosen from the sense XOR the invert request. A
// negative target emits a forward placeholder branch; otherwise the
// branch returns to the target offset.
func (c *context) assembleConditional(conditional ast.Conditional, target int, invert bool, fn string) error {
	var zero bool

	switch cond := conditional.(type) {
	case ast.NotBitTest:
		l, lok := cond.L.(ast.Register)
		r, rok := cond.R.(ast.Immediate)
		if !lok || !rok || l != ast.A {
			return errBadBitTest(cond.L, cond.R, fn)
		}
		if c.wideMath {
			return errInvalidRegister(ast.A, ast.WideMath, fn)
		}
		if r > 0xFF {
			return errInvalidValue(uint32(r), fn)
		}
		if err := c.push("BIT A imm", fn, 0x89, byte(r)); err != nil { // BIT imm
			return err
		}
		zero = true

	case ast.BitTest:
		l, lok := cond.L.(ast.Register)
		r, rok := cond.R.(ast.Immediate)
		switch {
		case lok && rok && l == ast.A:
			if c.wideMath {
				return errInvalidRegister(ast.A, ast.WideMath, fn)
			}
			if r > 0xFF {
				return errInvalidValue(uint32(r), fn)
			}
			if err := c.push("BIT A imm", fn, 0x89, byte(r)); err != nil { // BIT imm
				return err
			}
		case lok && rok && l == ast.C:
			if !c.wideMath {
				return errInvalidRegister(ast.C, ast.NarrowMath, fn)
			}
			if r > 0xFFFF {
				return errInvalidValue(uint32(r), fn)
			}
			if err := c.push("BIT C imm", fn, 0x89, byte(r), byte(r>>8)); err != nil { // BIT imm
				return err
			}
		default:
			return errBadBitTest(cond.L, cond.R, fn)
		}
		zero = false

	case ast.Equality:
		l, lok := cond.L.(ast.Register)
		r, rok := cond.R.(ast.Immediate)
		if !lok || !rok || l != ast.A {
			return errBadEquality(cond.L, cond.R, fn)
		}
		if c.wideMath {
			return errInvalidRegister(ast.A, ast.WideMath, fn)
		}
		if r > 0xFF {
			return errInvalidValue(uint32(r), fn)
		}
		if err := c.push("CMP A imm", fn, 0xC9, byte(r)); err != nil { // CMP imm
			return err
		}
		zero = true
	}

	zero = invert != zero

	loopLength := 0
	if target >= 0 {
		loopLength = len(c.bank.code) - target
	}
	if loopLength > 126 {
		return &Error{Code: LoopTooLong, Func: fn}
	}
	offset := -(byte(loopLength) + 2)

	opcode := byte(0xD0) // BNE
	if zero {
		opcode = 0xF0 // BEQ
	}
	return c.push("Branch", fn, opcode, offset)
}

// Append machine code to the bank, logging the listing line when verbose.
func (c *context) push(op, fn string, code ...byte) error {
	addr := len(c.bank.code) + bankStart
	if err := c.bank.push(op, fn, code...); err != nil {
		return err
	}
	c.log("%04X- %-8s  %-24s %s", addr, byteString(code), op, fn)
	return nil
}

func (c *context) symbols() []Symbol {
	syms := make([]Symbol, 0, len(c.names))
	for name, e := range c.names {
		s := Symbol{Name: name, Kind: SymVar, Addr: e.addr}
		if e.isFunc {
			s = Symbol{Name: name, Kind: SymFunc, Addr: uint32(e.code), Attributes: e.attrs}
		}
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Addr != syms[j].Addr {
			return syms[i].Addr < syms[j].Addr
		}
		return syms[i].Name < syms[j].Name
	})
	return syms
}

func (c *context) log(format string, args ...any) {
	if c.options&Verbose != 0 {
		fmt.Fprintf(c.out, format+"\n", args...)
	}
}

func (c *context) logSection(title string) {
	if c.options&Verbose != 0 {
		fmt.Fprintf(c.out, "----- %s -----\n", title)
	}
}
