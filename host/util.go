// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "strings"

// Wrap a command description onto 80-column lines, indenting every line
// by the requested amount.
func indentWrap(indent int, s string) string {
	pad := strings.Repeat(" ", indent)

	var b strings.Builder
	width := 0
	for _, word := range strings.Fields(s) {
		switch {
		case width == 0:
			b.WriteString(pad)
			b.WriteString(word)
			width = indent + len(word)
		case width+1+len(word) < 80:
			b.WriteByte(' ')
			b.WriteString(word)
			width += 1 + len(word)
		default:
			b.WriteByte('\n')
			b.WriteString(pad)
			b.WriteString(word)
			width = indent + len(word)
		}
	}
	return b.String()
}
