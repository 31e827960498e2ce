// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

// Bank geometry of a 32 KiB LoROM image. The final 64 bytes of the bank
// are reserved for the cartridge header and vector table.
const (
	bankStart  = 0x8000
	bankSize   = 0x8000
	headerBase = bankSize - 0x40
)

// A bank accumulates the machine code of the single LoROM bank.
type bank struct {
	code []byte
}

// Append machine code to the bank, failing when it would run into the
// header region.
func (b *bank) push(op, fn string, code ...byte) error {
	if len(b.code)+len(code) > headerBase {
		return errNoSpace(op, fn)
	}
	b.code = append(b.code, code...)
	return nil
}

// Return a little-endian representation of the value using the requested
// number of bytes.
func toBytes(bytes int, value uint32) []byte {
	switch bytes {
	case 1:
		return []byte{byte(value)}
	case 2:
		return []byte{byte(value), byte(value >> 8)}
	default:
		return []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	}
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of a byte slice.
func byteString(b []byte) string {
	if len(b) < 1 {
		return ""
	}

	s := make([]byte, len(b)*3-1)
	i, j := 0, 0
	for n := len(b) - 1; i < n; i, j = i+1, j+3 {
		s[j+0] = hex[(b[i] >> 4)]
		s[j+1] = hex[(b[i] & 0x0f)]
		s[j+2] = ' '
	}
	s[j+0] = hex[(b[i] >> 4)]
	s[j+1] = hex[(b[i] & 0x0f)]
	return string(s)
}
