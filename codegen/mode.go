// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import "github.com/snazzylang/snazzy/ast"

// Apply a block's attributes to the virtual CPU mode, rejecting
// conflicting combinations. No shim instructions are emitted here; the
// block machinery compares the resulting mode against the previous one
// and emits the deltas.
func (c *context) updateCodegen(attrs []ast.Attribute, fn string) error {
	for _, attr := range attrs {
		switch attr {
		case ast.Emulation:
			if containsAttr(attrs, ast.Native) {
				return errConflict(ast.Emulation, ast.Native, fn)
			}
			if containsAttr(attrs, ast.WideIndex) {
				return errConflict(ast.NarrowIndex, ast.WideIndex, fn)
			}
			if containsAttr(attrs, ast.WideMath) {
				return errConflict(ast.NarrowMath, ast.WideMath, fn)
			}
			c.emulation = true

		case ast.NarrowIndex:
			if containsAttr(attrs, ast.WideIndex) {
				return errConflict(ast.NarrowIndex, ast.WideIndex, fn)
			}
			c.wideIndex = false

		case ast.NarrowMath:
			if containsAttr(attrs, ast.WideMath) {
				return errConflict(ast.NarrowMath, ast.WideMath, fn)
			}
			c.wideMath = false

		case ast.Native:
			if containsAttr(attrs, ast.Emulation) {
				return errConflict(ast.Native, ast.Emulation, fn)
			}
			c.emulation = false

		case ast.WideIndex:
			if containsAttr(attrs, ast.NarrowIndex) {
				return errConflict(ast.WideIndex, ast.NarrowIndex, fn)
			}
			if containsAttr(attrs, ast.Emulation) {
				return errConflict(ast.Native, ast.Emulation, fn)
			}
			c.emulation = false
			c.wideIndex = true

		case ast.WideMath:
			if containsAttr(attrs, ast.NarrowMath) {
				return errConflict(ast.WideMath, ast.NarrowMath, fn)
			}
			if containsAttr(attrs, ast.Emulation) {
				return errConflict(ast.Native, ast.Emulation, fn)
			}
			c.emulation = false
			c.wideMath = true
		}
	}
	return nil
}

// Emit an XCE toggle if the emulation flag moved away from its previous
// value. The carry is set up so XCE transfers it into the emulation bit.
func (c *context) updateEmulation(emulation bool, fn string) error {
	if emulation != c.emulation {
		if c.emulation {
			return c.push("Enable Emulation", fn, 0x38, 0xFB) // SEC; XCE
		}
		return c.push("Disable Emulation", fn, 0x18, 0xFB) // CLC; XCE
	}
	return nil
}

// Emit REP/SEP instructions moving the M and X flags from their previous
// values to the current mode. When both flags agree after the update and
// the math width changed, a single combined REP/SEP covers them.
func (c *context) updateMX(wideMath, wideIndex bool, fn string) error {
	if c.wideMath == c.wideIndex && c.wideMath != wideMath {
		// Set both, even if one didn't change. Easier codegen.
		if c.wideMath {
			return c.push("Enable Wide Math + Index", fn, 0xC2, 0x30) // REP #$30
		}
		return c.push("Disable Wide Math + Index", fn, 0xE2, 0x30) // SEP #$30
	}

	if wideMath != c.wideMath {
		var err error
		if c.wideMath {
			err = c.push("Enable Wide Math", fn, 0xC2, 0x20) // REP #$20
		} else {
			err = c.push("Disable Wide Math", fn, 0xE2, 0x20) // SEP #$20
		}
		if err != nil {
			return err
		}
	}

	if wideIndex != c.wideIndex {
		if c.wideIndex {
			return c.push("Enable Wide Index", fn, 0xC2, 0x10) // REP #$10
		}
		return c.push("Disable Wide Index", fn, 0xE2, 0x10) // SEP #$10
	}
	return nil
}

func containsAttr(attrs []ast.Attribute, a ast.Attribute) bool {
	for _, attr := range attrs {
		if attr == a {
			return true
		}
	}
	return false
}
