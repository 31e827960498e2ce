// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"fmt"

	"github.com/snazzylang/snazzy/ast"
)

// An ErrorCode identifies the category of a code generation failure.
type ErrorCode int

// Code generation failure categories.
const (
	BadAssignment ErrorCode = iota
	BadAndAssignment
	BadOrAssignment
	BadBitTest
	BadEquality
	BadPush
	BadPop
	ConflictingAttributes
	NoSpace
	LoopTooLong
	IfTooLong
	InvalidAddress
	InvalidValue
	InvalidRegister
	UnknownVariable
	UnknownFunction
	InvalidInterrupt
	UnresolvedName
)

// An Error describes a code generation failure and the site that caused
// it. Only the fields relevant to the Code are populated.
type Error struct {
	Code  ErrorCode
	Func  string        // function being generated
	Dst   ast.Operand   // offending destination operand
	Src   ast.Operand   // offending source operand
	Reg   ast.Register  // offending register
	Attr  ast.Attribute // mode attribute the register conflicts with
	Attrs [2]ast.Attribute
	Name  string // offending symbol or vector name
	Op    string // operation that ran out of bank space
	Value uint32 // offending value or address
}

func (e *Error) Error() string {
	switch e.Code {
	case BadAssignment:
		return fmt.Sprintf("%s: cannot assign %s to %s", e.Func, operandString(e.Src), operandString(e.Dst))
	case BadAndAssignment:
		return fmt.Sprintf("%s: cannot and-assign %s to %s", e.Func, operandString(e.Src), operandString(e.Dst))
	case BadOrAssignment:
		return fmt.Sprintf("%s: cannot or-assign %s to %s", e.Func, operandString(e.Src), operandString(e.Dst))
	case BadBitTest:
		return fmt.Sprintf("%s: cannot bit-test %s with %s", e.Func, operandString(e.Dst), operandString(e.Src))
	case BadEquality:
		return fmt.Sprintf("%s: cannot compare %s with %s", e.Func, operandString(e.Dst), operandString(e.Src))
	case BadPush:
		return fmt.Sprintf("%s: cannot push %s", e.Func, operandString(e.Dst))
	case BadPop:
		return fmt.Sprintf("%s: cannot pop %s", e.Func, operandString(e.Dst))
	case ConflictingAttributes:
		return fmt.Sprintf("%s: conflicting attributes %s and %s", e.Func, e.Attrs[0], e.Attrs[1])
	case NoSpace:
		return fmt.Sprintf("%s: no space in bank for %s", e.Func, e.Op)
	case LoopTooLong:
		return fmt.Sprintf("%s: loop body too long for a relative branch", e.Func)
	case IfTooLong:
		return fmt.Sprintf("%s: if body too long for a relative branch", e.Func)
	case InvalidAddress:
		return fmt.Sprintf("%s: address $%X out of range", e.Func, e.Value)
	case InvalidValue:
		return fmt.Sprintf("%s: value $%X out of range", e.Func, e.Value)
	case InvalidRegister:
		return fmt.Sprintf("%s: register %s invalid under %s", e.Func, e.Reg, e.Attr)
	case UnknownVariable:
		return fmt.Sprintf("%s: unknown variable '%s'", e.Func, e.Name)
	case UnknownFunction:
		return fmt.Sprintf("%s: unknown function '%s'", e.Func, e.Name)
	case InvalidInterrupt:
		return fmt.Sprintf("vector function '%s' lacks the INTR attribute", e.Name)
	case UnresolvedName:
		return fmt.Sprintf("unresolved reference to '%s'", e.Name)
	default:
		return "unknown code generation error"
	}
}

func operandString(op ast.Operand) string {
	switch op := op.(type) {
	case ast.Immediate:
		return fmt.Sprintf("$%X", uint32(op))
	case ast.Absolute:
		return fmt.Sprintf("*$%X", uint32(op))
	case ast.Variable:
		return string(op)
	case ast.Register:
		return op.String()
	default:
		return "???"
	}
}

func errBadAssignment(dst, src ast.Operand, fn string) error {
	return &Error{Code: BadAssignment, Func: fn, Dst: dst, Src: src}
}

func errBadAndAssignment(dst, src ast.Operand, fn string) error {
	return &Error{Code: BadAndAssignment, Func: fn, Dst: dst, Src: src}
}

func errBadOrAssignment(dst, src ast.Operand, fn string) error {
	return &Error{Code: BadOrAssignment, Func: fn, Dst: dst, Src: src}
}

func errBadBitTest(l, r ast.Operand, fn string) error {
	return &Error{Code: BadBitTest, Func: fn, Dst: l, Src: r}
}

func errBadEquality(l, r ast.Operand, fn string) error {
	return &Error{Code: BadEquality, Func: fn, Dst: l, Src: r}
}

func errBadPush(op ast.Operand, fn string) error {
	return &Error{Code: BadPush, Func: fn, Dst: op}
}

func errBadPop(op ast.Operand, fn string) error {
	return &Error{Code: BadPop, Func: fn, Dst: op}
}

func errConflict(a, b ast.Attribute, fn string) error {
	return &Error{Code: ConflictingAttributes, Func: fn, Attrs: [2]ast.Attribute{a, b}}
}

func errNoSpace(op, fn string) error {
	return &Error{Code: NoSpace, Func: fn, Op: op}
}

func errInvalidAddress(addr uint32, fn string) error {
	return &Error{Code: InvalidAddress, Func: fn, Value: addr}
}

func errInvalidValue(v uint32, fn string) error {
	return &Error{Code: InvalidValue, Func: fn, Value: v}
}

func errInvalidRegister(r ast.Register, a ast.Attribute, fn string) error {
	return &Error{Code: InvalidRegister, Func: fn, Reg: r, Attr: a}
}

func errUnknownVariable(name, fn string) error {
	return &Error{Code: UnknownVariable, Func: fn, Name: name}
}

func errUnknownFunction(name, fn string) error {
	return &Error{Code: UnknownFunction, Func: fn, Name: name}
}
