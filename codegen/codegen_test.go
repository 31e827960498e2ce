// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snazzylang/snazzy/parser"
)

func assemble(src string) (*Result, error) {
	prog, err := parser.ParseString(src)
	if err != nil {
		return nil, err
	}
	return Assemble(prog, nil, 0)
}

// Compare the leading bytes of the assembled image against an expected
// hex string.
func checkCode(t *testing.T, src string, expected string) {
	t.Helper()

	result, err := assemble(src)
	if err != nil {
		t.Error(err)
		return
	}

	code := result.Code[:len(expected)/2]
	b := make([]byte, len(code)*2)
	for i, j := 0, 0; i < len(code); i, j = i+1, j+2 {
		v := code[i]
		b[j+0] = hex[v>>4]
		b[j+1] = hex[v&0x0f]
	}
	s := string(b)

	if s != expected {
		t.Error("code doesn't match expected")
		t.Errorf("got: %s\n", s)
		t.Errorf("exp: %s\n", expected)
	}
}

func checkError(t *testing.T, src string, code ErrorCode) {
	t.Helper()

	_, err := assemble(src)
	if err == nil {
		t.Errorf("expected error %d on %s, didn't get one", code, src)
		return
	}

	var cgErr *Error
	if !errors.As(err, &cgErr) {
		t.Errorf("expected codegen error, got %v", err)
		return
	}
	if cgErr.Code != code {
		t.Errorf("expected error code %d, got %d (%v)", code, cgErr.Code, err)
	}
}

func TestEmptyProgram(t *testing.T) {
	result, err := assemble("")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Code) != 32768 {
		t.Fatalf("image is %d bytes, want 32768", len(result.Code))
	}
	for i, b := range result.Code[:0x7FC0] {
		if b != 0 {
			t.Fatalf("nonzero byte $%02X at offset $%04X", b, i)
		}
	}
}

func TestHeaderConstants(t *testing.T) {
	result, err := assemble("FUN f [] { A := 1; }")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 21; i++ {
		if result.Code[0x7FC0+i] != 'Z' {
			t.Errorf("title byte %d is $%02X, want 'Z'", i, result.Code[0x7FC0+i])
		}
	}
	checks := []struct {
		offset int
		value  byte
	}{
		{0x7FD5, 0x20},
		{0x7FD7, 0x05},
		{0x7FD9, 0x01},
		{0x7FDA, 0x33},
		{0x7FDC, 0x00}, // checksum fields stay zero
		{0x7FDD, 0x00},
	}
	for _, c := range checks {
		if result.Code[c.offset] != c.value {
			t.Errorf("header byte $%04X is $%02X, want $%02X", c.offset, result.Code[c.offset], c.value)
		}
	}
}

func TestSimple(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "simple.snz"))
	if err != nil {
		t.Fatal(err)
	}
	checkCode(t, string(src), "A9308D001060")
}

func TestAssignments(t *testing.T) {
	checkCode(t, "VAR v := 0x1234; FUN f [] { X := 5; X := v; v := X; }", "A205AE34128E341260")
	checkCode(t, "FUN f [NAT, WIDEX] { X := 0x1234; }", "A2341260")
	checkCode(t, "FUN f [] { D := C; S := C; }", "5B1B60")
	checkCode(t, "FUN f [] { *0x2100 := A; *0x2101 := 0; }", "8D00219C012160")
	checkCode(t, "FUN f [NAT, WIDEM] { C := 0x1ff; }", "A9FF0160")
}

func TestAndOrAssign(t *testing.T) {
	checkCode(t, "FUN f [] { A &= 0x0f; A |= 0xf0; }", "290F09F060")
}

func TestPushPop(t *testing.T) {
	checkCode(t, "FUN f [] { PUSH A; PUSH X; PUSH Y; POP Y; POP X; POP A; }", "48DA5A7AFA6860")
	checkCode(t, "FUN f [NAT, WIDEM] { PUSH C; PUSH X; PUSH Y; POP Y; POP X; POP C; }", "48DA5A7AFA6860")
}

func TestInterruptControl(t *testing.T) {
	checkCode(t, "FUN f [] { SEI; CLI; }", "785860")
}

func TestReturnOpcodes(t *testing.T) {
	checkCode(t, "FUN f [] {}", "60")
	checkCode(t, "FUN f [INTR] {}", "40")
	checkCode(t, "FUN f [EXTERN] {}", "6B")
}

func TestMinimalIf(t *testing.T) {
	checkCode(t, "FUN f [] { IF (A == 5) { A := 1; } }", "C905D002A90160")
}

func TestIfBitTest(t *testing.T) {
	checkCode(t, "FUN f [] { IF (A && 2) { A := 1; } }", "8902F002A90160")
	checkCode(t, "FUN f [NAT, WIDEM] { IF (C && 0x8000) { } }", "890080F00060")
}

func TestShortLoop(t *testing.T) {
	checkCode(t, "FUN f [] { DO { A := 0; } }", "A90080FC60")
}

func TestWhileLoop(t *testing.T) {
	checkCode(t, "FUN f [] { DO { A := 0; } WHILE (A == 1) }", "A900C901F0FA60")
	checkCode(t, "FUN f [] { DO { A := 0; } WHILE (A !& 1) }", "A9008901F0FA60")
}

// A 126-byte loop body still fits a BRA; a 127-byte body needs an
// absolute JMP back to the loop start.
func TestLoopBranchBounds(t *testing.T) {
	body126 := strings.Repeat("A := 0; ", 63)
	result, err := assemble("FUN f [] { DO { " + body126 + " } }")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(result.Code[126:129], []byte{0x80, 0x80, 0x60}) {
		t.Errorf("got % X, want 80 80 60", result.Code[126:129])
	}

	body127 := strings.Repeat("A := 0; ", 62) + "v := A; "
	result, err = assemble("VAR v := 4096; FUN f [] { DO { " + body127 + " } }")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(result.Code[127:131], []byte{0x4C, 0x00, 0x80, 0x60}) {
		t.Errorf("got % X, want 4C 00 80 60", result.Code[127:131])
	}
}

// A 127-byte if body is the largest that can be branched over.
func TestIfBranchBounds(t *testing.T) {
	body127 := strings.Repeat("A := 0; ", 62) + "v := A; "
	result, err := assemble("VAR v := 4096; FUN f [] { IF (A == 5) { " + body127 + " } }")
	if err != nil {
		t.Fatal(err)
	}
	if result.Code[2] != 0xD0 || result.Code[3] != 127 {
		t.Errorf("got % X, want D0 7F", result.Code[2:4])
	}

	body128 := body127 + "A := 0; "
	checkError(t, "VAR v := 4096; FUN f [] { IF (A == 5) { "+body128+" } }", IfTooLong)
}

func TestWhileLoopTooLong(t *testing.T) {
	body := strings.Repeat("A := 0; ", 63)
	checkError(t, "FUN f [] { DO { "+body+" } WHILE (A == 1) }", LoopTooLong)
}

// Mode shims around an attributed block restore the surrounding mode on
// exit: XCE toggles bracket the emulation change, and the REP the block
// entry emitted is undone with a SEP.
func TestModeRestoration(t *testing.T) {
	checkCode(t, "FUN f [] { [WIDEM] { C := 5; } A := 1; }", "18FBC220A9050038FBE230A90160")
	checkCode(t, "FUN f [NAT] { [WIDEM, WIDEX] { C := 5; } }", "C230A90500E23060")
	checkCode(t, "FUN f [NAT] { [EMU] { A := 1; } A := 2; }", "38FBA90118FBA90260")
}

// The callee's attributes drive mode shims around the call site.
func TestCallModeShim(t *testing.T) {
	checkCode(t, "FUN callee [NAT, WIDEM] {} FUN caller [NAT] { callee(); }", "60C220200080E23060")
}

// A forward call emits a placeholder patched when the callee is reached;
// the bytes are equivalent to the backward-call case modulo addresses.
func TestForwardReference(t *testing.T) {
	checkCode(t, "FUN a [] { b(); } FUN b [] {}", "2004806060")
	checkCode(t, "FUN b [] {} FUN a [] { b(); }", "6020008060")
}

func TestDuplicateNamesLastWins(t *testing.T) {
	checkCode(t, "VAR v := 5; VAR v := 6; FUN f [] { v := A; }", "8D060060")
}

func TestVectorGating(t *testing.T) {
	// No reset function: the vector slot stays zero.
	result, err := assemble("FUN f [INTR] {}")
	if err != nil {
		t.Fatal(err)
	}
	if result.Code[0x7FFC] != 0 || result.Code[0x7FFD] != 0 {
		t.Error("reset vector written without a reset function")
	}

	// A reset function with INTR fills the slot.
	result, err = assemble("FUN pad [] {} FUN reset [INTR] {}")
	if err != nil {
		t.Fatal(err)
	}
	if result.Code[0x7FFC] != 0x01 || result.Code[0x7FFD] != 0x80 {
		t.Errorf("reset vector is % X, want 01 80", result.Code[0x7FFC:0x7FFE])
	}

	// A reset function without INTR is an error.
	checkError(t, "FUN reset [] {}", InvalidInterrupt)

	// A variable occupying a vector name is ignored.
	if _, err := assemble("VAR nmi := 0x2100;"); err != nil {
		t.Errorf("variable named nmi rejected: %v", err)
	}
}

func TestErrors(t *testing.T) {
	cases := []struct {
		src  string
		code ErrorCode
	}{
		{"FUN f [EMU, NAT] {}", ConflictingAttributes},
		{"FUN f [NAT, EMU] {}", ConflictingAttributes},
		{"FUN f [EMU, WIDEM] {}", ConflictingAttributes},
		{"FUN f [EMU, WIDEX] {}", ConflictingAttributes},
		{"FUN f [WIDEM, NARROWM] {}", ConflictingAttributes},
		{"FUN f [NARROWM, WIDEM] {}", ConflictingAttributes},
		{"FUN f [WIDEX, NARROWX] {}", ConflictingAttributes},
		{"FUN f [NARROWX, WIDEX] {}", ConflictingAttributes},
		{"FUN f [INTR] { [EMU, NAT] {} }", ConflictingAttributes},
		{"FUN f [] { A := nope; }", UnknownVariable},
		{"FUN f [] { nope := A; }", UnknownVariable},
		{"FUN f [] { nope(); }", UnknownFunction},
		{"VAR v := 5; FUN f [] { v(); }", UnknownFunction},
		{"FUN f [] { A := B; }", BadAssignment},
		{"FUN f [] { *0x2100 := X; }", BadAssignment},
		{"FUN f [] { B := 1; }", BadAssignment},
		{"FUN f [] { A &= B; }", BadAndAssignment},
		{"FUN f [] { A |= B; }", BadOrAssignment},
		{"FUN f [] { IF (X == 5) {} }", BadEquality},
		{"FUN f [] { IF (X && 5) {} }", BadBitTest},
		{"FUN f [] { IF (X !& 5) {} }", BadBitTest},
		{"FUN f [] { PUSH S; }", BadPush},
		{"FUN f [] { POP S; }", BadPop},
		{"FUN f [] { A := 256; }", InvalidValue},
		{"FUN f [] { A &= 256; }", InvalidValue},
		{"FUN f [NAT, WIDEM] { C := 0x10000; }", InvalidValue},
		{"FUN f [] { X := 256; }", InvalidValue},
		{"FUN f [] { C := 5; }", InvalidRegister},
		{"FUN f [NAT, WIDEM] { A := 5; }", InvalidRegister},
		{"FUN f [NAT, WIDEM] { A &= 5; }", InvalidRegister},
		{"FUN f [] { PUSH C; }", InvalidRegister},
		{"FUN f [NAT, WIDEM] { PUSH A; }", InvalidRegister},
		{"FUN f [] { IF (C && 5) {} }", InvalidRegister},
		{"VAR v := 0x10000; FUN f [] { A := v; }", InvalidAddress},
		{"FUN f [] { *0x10000 := A; }", InvalidAddress},
		{"FUN reset [] {}", InvalidInterrupt},
	}
	for _, c := range cases {
		checkError(t, c.src, c.code)
	}
}

func TestNoSpace(t *testing.T) {
	// 10902 three-byte stores exceed the 32704 code bytes available.
	body := strings.Repeat("*0x2100 := 0; ", 10902)
	checkError(t, "FUN f [] { "+body+" }", NoSpace)
}

func TestSymbols(t *testing.T) {
	result, err := assemble("VAR v := 0x2100; FUN f [] {} FUN g [INTR] {}")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Symbols) != 3 {
		t.Fatalf("got %d symbols, want 3", len(result.Symbols))
	}
	want := []Symbol{
		{Name: "v", Kind: SymVar, Addr: 0x2100},
		{Name: "f", Kind: SymFunc, Addr: 0x8000},
		{Name: "g", Kind: SymFunc, Addr: 0x8001},
	}
	for i, w := range want {
		got := result.Symbols[i]
		if got.Name != w.Name || got.Kind != w.Kind || got.Addr != w.Addr {
			t.Errorf("symbol %d is %+v, want %+v", i, got, w)
		}
	}
}

func TestVerboseListing(t *testing.T) {
	prog, err := parser.ParseString("FUN f [] { A := 1; }")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := Assemble(prog, &buf, Verbose); err != nil {
		t.Fatal(err)
	}
	listing := buf.String()
	if !strings.Contains(listing, "8000- A9 01") {
		t.Errorf("listing missing instruction line:\n%s", listing)
	}
	if !strings.Contains(listing, "Return") {
		t.Errorf("listing missing return line:\n%s", listing)
	}
}
