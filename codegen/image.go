// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import "github.com/snazzylang/snazzy/ast"

// Header field offsets within the bank.
const (
	hdrTitle   = 0x7FC0
	hdrMap     = 0x7FD5
	hdrROMSize = 0x7FD7
	hdrRegion  = 0x7FD9
	hdrDevID   = 0x7FDA
)

const titleLen = 22

// A vectorSlot associates an interrupt vector location with the function
// name that feeds it.
type vectorSlot struct {
	name   string
	offset int
}

// Vectors are written only when the named function exists; the function
// must then carry the INTR attribute.
var vectorTable = []vectorSlot{
	{"cop", 0x7FE4},
	{"brk", 0x7FE6},
	{"nmi", 0x7FEA},
	{"irq", 0x7FEE},
	{"cop_emu", 0x7FF4},
	{"nmi_emu", 0x7FFA},
	{"reset", 0x7FFC},
	{"irq_emu", 0x7FFE},
}

// Finalize pads the bank to a full 32 KiB, writes the cartridge header,
// and patches the interrupt vector table. Any relocation still pending at
// this point is an unresolved reference.
func (c *context) finalize() ([]byte, error) {
	c.logSection("Finalizing image")

	if len(c.relocations) > 0 {
		return nil, &Error{Code: UnresolvedName, Name: c.relocations[0].target}
	}

	code := make([]byte, bankSize)
	copy(code, c.bank.code)

	for i := 0; i < titleLen; i++ {
		code[hdrTitle+i] = 'Z'
	}
	code[hdrMap] = 0x20     // LoROM
	code[hdrROMSize] = 0x05 // 32 KiB
	code[hdrRegion] = 0x01  // North America
	code[hdrDevID] = 0x33
	// TODO: compute the additive checksum pair at $7FDC/$7FDE.

	for _, v := range vectorTable {
		e, ok := c.names[v.name]
		if !ok || !e.isFunc || e.code < 0 {
			continue
		}
		if !containsAttr(e.attrs, ast.Interrupt) {
			return nil, &Error{Code: InvalidInterrupt, Name: v.name}
		}
		code[v.offset] = byte(e.code)
		code[v.offset+1] = byte(e.code >> 8)
		c.log("%-10s vector $%04X <- $%04X", v.name, v.offset+bankStart, e.code)
	}

	return code, nil
}
