// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm

import "testing"

// The immediate width of LDA must flip as REP/SEP and SEC/XCE sequences
// pass through the disassembler.
func TestWidthTracking(t *testing.T) {
	code := []byte{
		0x18, 0xFB, // CLC, XCE
		0xC2, 0x20, // REP #$20
		0xA9, 0x05, 0x00, // LDA #$0005
		0x38, 0xFB, // SEC, XCE
		0xE2, 0x30, // SEP #$30
		0xA9, 0x01, // LDA #$01
		0x60, // RTS
	}
	want := []string{
		"CLC", "XCE",
		"REP #$20",
		"LDA #$0005",
		"SEC", "XCE",
		"SEP #$30",
		"LDA #$01",
		"RTS",
	}

	var st State
	offset := 0
	for i, w := range want {
		text, length := Disassemble(code, offset, 0x8000, &st)
		if text != w {
			t.Errorf("instruction %d: got %q, want %q", i, text, w)
		}
		offset += length
	}
	if offset != len(code) {
		t.Errorf("consumed %d bytes, want %d", offset, len(code))
	}
}

func TestAddressModes(t *testing.T) {
	code := []byte{
		0x8D, 0x00, 0x21, // STA $2100
		0x20, 0x11, 0x81, // JSR $8111
		0x80, 0xFC, // BRA $8004
		0xD0, 0x02, // BNE $800C
		0xA2, 0x05, // LDX #$05
		0xFF, // undecodable
	}
	want := []string{
		"STA $2100",
		"JSR $8111",
		"BRA $8004",
		"BNE $800C",
		"LDX #$05",
		".DB $FF",
	}

	var st State
	offset := 0
	for i, w := range want {
		text, length := Disassemble(code, offset, 0x8000, &st)
		if text != w {
			t.Errorf("instruction %d: got %q, want %q", i, text, w)
		}
		offset += length
	}
}
