// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parser implements the lexer and parser for snazzy source files.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/snazzylang/snazzy/ast"
)

// A SyntaxError describes a malformed construct in a source file. Row is
// 1-based; Column is 0-based.
type SyntaxError struct {
	Row    int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Row, e.Column, e.Msg)
}

type tokenKind byte

const (
	tokIdent  tokenKind = iota // lowercase identifier
	tokWord                    // uppercase keyword or register
	tokNumber                  // numeric literal
	tokPunct                   // operator or delimiter
	tokEOF
)

type token struct {
	kind  tokenKind
	pos   fstring // source text of the token
	value uint32  // numeric value when kind == tokNumber
}

// Multi-character operators, matched before single characters.
var operators = []string{":=", "&=", "|=", "==", "&&", "!&"}

const singleChars = ";,[]{}()*"

// Parse reads a complete snazzy program from r and returns its syntax
// tree. The first malformed construct aborts the parse and is returned as
// a *SyntaxError.
func Parse(r io.Reader) (*ast.Program, error) {
	toks, err := scan(r)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.program()
}

// ParseString is a convenience wrapper around Parse.
func ParseString(src string) (*ast.Program, error) {
	return Parse(strings.NewReader(src))
}

// Scan the entire source into a token stream. Tokens never span lines,
// and a '#' comment consumes the remainder of its line.
func scan(r io.Reader) ([]token, error) {
	var toks []token
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, math.MaxInt) // lines may be of any length
	row := 1
	for scanner.Scan() {
		line := newFstring(row, scanner.Text())
		var err error
		toks, err = scanLine(line, toks)
		if err != nil {
			return nil, err
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	toks = append(toks, token{kind: tokEOF, pos: fstring{row: row}})
	return toks, nil
}

func scanLine(line fstring, toks []token) ([]token, error) {
	for {
		line = line.consumeWhitespace()
		if line.isEmpty() || line.startsWithChar('#') {
			return toks, nil
		}

		switch {
		case line.startsWith(decimal):
			t, remain, err := scanNumber(line)
			if err != nil {
				return nil, err
			}
			toks, line = append(toks, t), remain

		case line.startsWith(identChar):
			ident, remain := line.consumeWhile(identChar)
			toks, line = append(toks, token{kind: tokIdent, pos: ident}), remain

		case line.startsWith(upperChar):
			word, remain := line.consumeWhile(upperChar)
			toks, line = append(toks, token{kind: tokWord, pos: word}), remain

		default:
			op, ok := scanOperator(line)
			if !ok {
				return nil, errorf(line, "unexpected character '%c'", line.str[0])
			}
			toks, line = append(toks, token{kind: tokPunct, pos: op}), line.consume(len(op.str))
		}
	}
}

func scanOperator(line fstring) (fstring, bool) {
	for _, op := range operators {
		if line.startsWithString(op) {
			return line.trunc(len(op)), true
		}
	}
	if strings.IndexByte(singleChars, line.str[0]) >= 0 {
		return line.trunc(1), true
	}
	return fstring{}, false
}

// Scan a decimal, "0x" hexadecimal or "0o" octal literal. The base prefix
// is case-insensitive.
func scanNumber(line fstring) (token, fstring, error) {
	base, class := 10, decimal
	digits, remain := line, line

	if line.startsWithString("0x") || line.startsWithString("0X") {
		base, class = 16, hexadecimal
		digits = line.consume(2)
	} else if line.startsWithString("0o") || line.startsWithString("0O") {
		base, class = 8, octal
		digits = line.consume(2)
	}

	var lit fstring
	lit, remain = digits.consumeWhile(class)
	if lit.isEmpty() {
		return token{}, remain, errorf(digits, "malformed number")
	}

	v, err := strconv.ParseUint(lit.str, base, 32)
	if err != nil {
		return token{}, remain, errorf(line, "number out of range")
	}

	return token{kind: tokNumber, pos: line.trunc(len(line.str) - len(remain.str)), value: uint32(v)}, remain, nil
}

func errorf(pos fstring, format string, args ...any) error {
	return &SyntaxError{Row: pos.row, Column: pos.column, Msg: fmt.Sprintf(format, args...)}
}

//
// parsing
//

var registers = map[string]ast.Register{
	"A": ast.A, "B": ast.B, "C": ast.C, "X": ast.X, "Y": ast.Y,
	"S": ast.S, "D": ast.D, "DB": ast.DB, "PB": ast.PB,
}

var attributes = map[string]ast.Attribute{
	"EMU":     ast.Emulation,
	"EXTERN":  ast.Extern,
	"INTR":    ast.Interrupt,
	"NAT":     ast.Native,
	"NARROWX": ast.NarrowIndex,
	"NARROWM": ast.NarrowMath,
	"WIDEX":   ast.WideIndex,
	"WIDEM":   ast.WideMath,
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) peekPunct(op string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.pos.str == op
}

func (p *parser) peekWord(word string) bool {
	t := p.peek()
	return t.kind == tokWord && t.pos.str == word
}

func (p *parser) expectPunct(op string) error {
	t := p.next()
	if t.kind != tokPunct || t.pos.str != op {
		return errorf(t.pos, "expected '%s'", op)
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", errorf(t.pos, "expected identifier")
	}
	return t.pos.str, nil
}

func (p *parser) program() (*ast.Program, error) {
	prog := &ast.Program{}
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return prog, nil

		case t.kind == tokWord && t.pos.str == "FUN":
			fn, err := p.function()
			if err != nil {
				return nil, err
			}
			prog.Definitions = append(prog.Definitions, fn)

		case t.kind == tokWord && t.pos.str == "VAR":
			v, err := p.variable()
			if err != nil {
				return nil, err
			}
			prog.Definitions = append(prog.Definitions, v)

		default:
			return nil, errorf(t.pos, "expected FUN or VAR definition")
		}
	}
}

func (p *parser) variable() (ast.Var, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.Var{}, err
	}
	if err := p.expectPunct(":="); err != nil {
		return ast.Var{}, err
	}
	t := p.next()
	if t.kind != tokNumber {
		return ast.Var{}, errorf(t.pos, "expected address")
	}
	if err := p.expectPunct(";"); err != nil {
		return ast.Var{}, err
	}
	return ast.Var{Name: name, Address: t.value}, nil
}

func (p *parser) function() (ast.Function, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.Function{}, err
	}
	body, err := p.block()
	if err != nil {
		return ast.Function{}, err
	}
	return ast.Function{Name: name, Body: body}, nil
}

func (p *parser) block() (ast.Block, error) {
	var blk ast.Block

	if p.peekPunct("[") {
		p.next()
		for !p.peekPunct("]") {
			if len(blk.Attributes) > 0 {
				if err := p.expectPunct(","); err != nil {
					return blk, err
				}
			}
			t := p.next()
			attr, ok := attributes[t.pos.str]
			if t.kind != tokWord || !ok {
				return blk, errorf(t.pos, "invalid attribute '%s'", t.pos.str)
			}
			blk.Attributes = append(blk.Attributes, attr)
		}
		p.next() // ']'
	}

	if err := p.expectPunct("{"); err != nil {
		return blk, err
	}
	for !p.peekPunct("}") {
		inst, err := p.instruction()
		if err != nil {
			return blk, err
		}
		blk.Instructions = append(blk.Instructions, inst)
	}
	p.next() // '}'
	return blk, nil
}

func (p *parser) instruction() (ast.Instruction, error) {
	t := p.peek()
	switch {
	case t.kind == tokEOF:
		return nil, errorf(t.pos, "expected instruction")

	case t.kind == tokPunct && (t.pos.str == "{" || t.pos.str == "["):
		blk, err := p.block()
		if err != nil {
			return nil, err
		}
		return ast.Nested{Block: blk}, nil

	case p.peekWord("DO"):
		return p.doLoop()

	case p.peekWord("IF"):
		return p.ifBlock()

	case p.peekWord("SEI"):
		p.next()
		return ast.Sei{}, p.expectPunct(";")

	case p.peekWord("CLI"):
		p.next()
		return ast.Cli{}, p.expectPunct(";")

	case p.peekWord("PUSH"):
		p.next()
		op, err := p.operand()
		if err != nil {
			return nil, err
		}
		return ast.Push{Op: op}, p.expectPunct(";")

	case p.peekWord("POP"):
		p.next()
		op, err := p.operand()
		if err != nil {
			return nil, err
		}
		return ast.Pop{Op: op}, p.expectPunct(";")
	}

	// A call is an identifier followed by "()".
	if t.kind == tokIdent && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].pos.str == "(" {
		p.next()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.Call{Target: t.pos.str}, p.expectPunct(";")
	}

	return p.assignment()
}

func (p *parser) assignment() (ast.Instruction, error) {
	dst, err := p.operand()
	if err != nil {
		return nil, err
	}

	op := p.next()
	if op.kind != tokPunct {
		return nil, errorf(op.pos, "expected assignment operator")
	}

	var inst ast.Instruction
	switch op.pos.str {
	case ":=":
		src, err := p.operand()
		if err != nil {
			return nil, err
		}
		inst = ast.Assign{Dst: dst, Src: src}
	case "&=":
		src, err := p.operand()
		if err != nil {
			return nil, err
		}
		inst = ast.AndAssign{Dst: dst, Src: src}
	case "|=":
		src, err := p.operand()
		if err != nil {
			return nil, err
		}
		inst = ast.OrAssign{Dst: dst, Src: src}
	default:
		return nil, errorf(op.pos, "expected assignment operator")
	}

	return inst, p.expectPunct(";")
}

func (p *parser) doLoop() (ast.Instruction, error) {
	p.next() // DO
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	loop := ast.Loop{Body: body}
	if p.peekWord("WHILE") {
		p.next()
		loop.Cond, err = p.conditional()
		if err != nil {
			return nil, err
		}
	}
	return loop, nil
}

func (p *parser) ifBlock() (ast.Instruction, error) {
	p.next() // IF
	cond, err := p.conditional()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return ast.If{Cond: cond, Body: body}, nil
}

func (p *parser) conditional() (ast.Conditional, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	l, err := p.operand()
	if err != nil {
		return nil, err
	}

	op := p.next()
	if op.kind != tokPunct {
		return nil, errorf(op.pos, "expected comparison operator")
	}

	var cond ast.Conditional
	switch op.pos.str {
	case "==", "&&", "!&":
		r, err := p.operand()
		if err != nil {
			return nil, err
		}
		switch op.pos.str {
		case "==":
			cond = ast.Equality{L: l, R: r}
		case "&&":
			cond = ast.BitTest{L: l, R: r}
		default:
			cond = ast.NotBitTest{L: l, R: r}
		}
	default:
		return nil, errorf(op.pos, "expected comparison operator")
	}

	return cond, p.expectPunct(")")
}

func (p *parser) operand() (ast.Operand, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return ast.Immediate(t.value), nil

	case tokIdent:
		return ast.Variable(t.pos.str), nil

	case tokWord:
		reg, ok := registers[t.pos.str]
		if !ok {
			return nil, errorf(t.pos, "unknown register '%s'", t.pos.str)
		}
		return reg, nil

	case tokPunct:
		if t.pos.str == "*" {
			n := p.next()
			if n.kind != tokNumber {
				return nil, errorf(n.pos, "expected address")
			}
			return ast.Absolute(n.value), nil
		}
	}
	return nil, errorf(t.pos, "expected operand")
}
