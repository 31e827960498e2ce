// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements an interactive console around the snazzy
// compiler. Within the console it is possible to assemble source files,
// inspect the symbol table and interrupt vectors of the produced image,
// dump and disassemble image memory, and save the image to disk.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/beevik/cmd"

	"github.com/snazzylang/snazzy/codegen"
	"github.com/snazzylang/snazzy/disasm"
	"github.com/snazzylang/snazzy/parser"
)

var errExiting = errors.New("exiting program")

// A Host drives one console session. It holds the most recently
// assembled image and its symbol table.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	sourcePath  string
	result      *codegen.Result
	settings    *settings
	lastCmd     *cmd.Selection
}

// New creates a new console host.
func New() *Host {
	return &Host{
		settings: newSettings(),
	}
}

// AssembleFile assembles a single source file, reporting to w, and holds
// the resulting image for inspection.
func (h *Host) AssembleFile(filename string, w io.Writer) error {
	h.output = bufio.NewWriter(w)
	defer h.flush()
	return h.assemble(filename)
}

// RunCommands accepts console commands from a reader and writes results
// to a writer. If the session is interactive, a prompt is displayed while
// the host waits for the next command.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println("snazzy console. Type 'help' for a list of commands.")
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		if err := h.processCommand(line); err != nil {
			break
		}
	}
}

func (h *Host) processCommand(line string) error {
	var c cmd.Selection
	if line != "" {
		var err error
		c, err = cmds.Lookup(line)
		switch {
		case err == cmd.ErrNotFound:
			h.println("Command not found.")
			return nil
		case err == cmd.ErrAmbiguous:
			h.println("Command is ambiguous.")
			return nil
		case err != nil:
			h.printf("ERROR: %v.\n", err)
			return nil
		}
	} else if h.lastCmd != nil {
		c = *h.lastCmd
	}

	if c.Command == nil {
		return nil
	}
	if c.Command.Data == nil && c.Command.Subtree != nil {
		h.displayCommands(c.Command.Subtree, nil)
		return nil
	}

	h.lastCmd = &c

	handler := c.Command.Data.(func(*Host, cmd.Selection) error)
	return handler(h, c)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) assemble(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	defer file.Close()

	prog, err := parser.Parse(file)
	if err != nil {
		h.printf("%s:%v\n", filename, err)
		return nil
	}

	var options codegen.Option
	if h.settings.Listing {
		options |= codegen.Verbose
	}
	result, err := codegen.Assemble(prog, h.output, options)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.sourcePath = filename
	h.result = result
	h.printf("Assembled '%s': %d bytes, %d symbols.\n",
		filepath.Base(filename), len(result.Code), len(result.Symbols))
	return nil
}

func (h *Host) cmdAssemble(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c.Command)
		return nil
	}
	return h.assemble(c.Args[0])
}

func (h *Host) cmdSave(c cmd.Selection) error {
	if h.result == nil {
		h.println("Nothing assembled yet.")
		return nil
	}

	filename := withExtension(h.sourcePath, ".bin")
	if len(c.Args) >= 1 {
		filename = c.Args[0]
	}

	if err := os.WriteFile(filename, h.result.Code, 0644); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Image saved to '%s'.\n", filename)
	return nil
}

func (h *Host) cmdSymbols(c cmd.Selection) error {
	if h.result == nil {
		h.println("Nothing assembled yet.")
		return nil
	}

	for _, s := range h.result.Symbols {
		switch s.Kind {
		case codegen.SymVar:
			h.printf("$%04X  var  %s\n", s.Addr, s.Name)
		case codegen.SymFunc:
			attrs := ""
			if len(s.Attributes) > 0 {
				parts := make([]string, len(s.Attributes))
				for i, a := range s.Attributes {
					parts[i] = a.String()
				}
				attrs = " [" + strings.Join(parts, ",") + "]"
			}
			h.printf("$%04X  fun  %s%s\n", s.Addr, s.Name, attrs)
		}
	}
	return nil
}

func (h *Host) cmdVectors(c cmd.Selection) error {
	if h.result == nil {
		h.println("Nothing assembled yet.")
		return nil
	}

	vectors := []struct {
		name string
		addr uint16
	}{
		{"cop", 0xFFE4},
		{"brk", 0xFFE6},
		{"nmi", 0xFFEA},
		{"irq", 0xFFEE},
		{"cop_emu", 0xFFF4},
		{"nmi_emu", 0xFFFA},
		{"reset", 0xFFFC},
		{"irq_emu", 0xFFFE},
	}
	for _, v := range vectors {
		target := uint16(h.loadByte(v.addr)) | uint16(h.loadByte(v.addr+1))<<8
		if target == 0 {
			h.printf("$%04X  %-8s  (unset)\n", v.addr, v.name)
		} else {
			h.printf("$%04X  %-8s  $%04X\n", v.addr, v.name, target)
		}
	}
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if h.result == nil {
		h.println("Nothing assembled yet.")
		return nil
	}

	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr, err := h.parseAddr(c.Args[0], h.settings.NextMemDumpAddr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.Args) >= 2 {
		n, err := parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bytes = uint16(n)
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if h.result == nil {
		h.println("Nothing assembled yet.")
		return nil
	}

	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr, err := h.parseAddr(c.Args[0], h.settings.NextDisasmAddr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	lines := h.settings.DisasmLines
	if len(c.Args) >= 2 {
		n, err := parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(n)
	}

	// Disassembly always starts from a narrow-width state; widths shift
	// as REP/SEP instructions are encountered.
	var st disasm.State
	offset := int(addr) - bankBase
	for i := 0; i < lines && offset >= 0 && offset < len(h.result.Code); i++ {
		text, length := disasm.Disassemble(h.result.Code, offset, bankBase, &st)
		bytes := h.result.Code[offset : offset+length]
		h.printf("%04X- %-8s  %s\n", bankBase+offset, fmt.Sprintf("% X", bytes), text)
		offset += length
	}

	h.settings.NextDisasmAddr = uint16(bankBase + offset)
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Settings:")
		h.settings.Display(h.output)
		h.flush()

	case 2:
		key, value := c.Args[0], c.Args[1]

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.Bool:
			var v bool
			v, err = strconv.ParseBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v uint64
			v, err = parseNumber(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.printf("Set %s to %s.\n", key, value)

	default:
		h.displayUsage(c.Command)
	}
	return nil
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	switch {
	case len(c.Args) == 0:
		h.displayCommands(cmds, nil)
	default:
		s, err := cmds.Lookup(strings.Join(c.Args, " "))
		if err != nil {
			h.printf("%v\n", err)
		} else {
			switch {
			case s.Command.Subtree != nil:
				h.displayCommands(s.Command.Subtree, s.Command)
			default:
				if s.Command.Usage != "" {
					h.printf("Usage: %s\n\n", s.Command.Usage)
				}
				switch {
				case s.Command.Description != "":
					h.printf("Description:\n%s\n\n", indentWrap(3, s.Command.Description))
				case s.Command.Brief != "":
					h.printf("Description:\n%s.\n\n", indentWrap(3, s.Command.Brief))
				}
			}
		}
	}
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errExiting
}

const bankBase = 0x8000

func (h *Host) loadByte(addr uint16) byte {
	if int(addr) < bankBase {
		return 0
	}
	offset := int(addr) - bankBase
	if offset >= len(h.result.Code) {
		return 0
	}
	return h.result.Code[offset]
}

// Dump a region of the assembled image, 16 bytes per row with an ASCII
// column. The image always populates the full $8000-$FFFF bank, so the
// dump simply starts at the requested address and clamps to the bank;
// there is no sparse memory to align rows around.
func (h *Host) dumpMemory(addr, count uint16) {
	if int(addr) < bankBase {
		addr = bankBase
	}
	remain := int(count)
	if int(addr)+remain > 0x10000 {
		remain = 0x10000 - int(addr)
	}

	for remain > 0 {
		n := remain
		if n > 16 {
			n = 16
		}

		var hexCol, textCol strings.Builder
		for i := 0; i < n; i++ {
			m := h.loadByte(addr + uint16(i))
			fmt.Fprintf(&hexCol, "%02X ", m)
			if m >= 32 && m < 127 {
				textCol.WriteByte(m)
			} else {
				textCol.WriteByte('.')
			}
		}
		h.printf("%04X-  %-48s %s\n", addr, hexCol.String(), textCol.String())

		addr += uint16(n)
		remain -= n
	}
}

func (h *Host) parseAddr(s string, next uint16) (uint16, error) {
	if s == "$" {
		return next, nil
	}
	v, err := parseNumber(s)
	if err != nil || v > 0xffff {
		return 0, fmt.Errorf("invalid address '%s'", s)
	}
	return uint16(v), nil
}

func parseNumber(s string) (uint64, error) {
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	return strconv.ParseUint(s, base, 32)
}

func (h *Host) displayUsage(c *cmd.Command) {
	if c.Usage != "" {
		h.printf("Usage: %s\n", c.Usage)
	}
}

func (h *Host) displayCommands(commands *cmd.Tree, c *cmd.Command) {
	h.printf("%s commands:\n", commands.Title)
	for _, c := range commands.Commands {
		if c.Brief != "" {
			h.printf("    %-15s  %s\n", c.Name, c.Brief)
		}
	}
	h.println()
}

// Replace a path's extension, or append one if it has none.
func withExtension(path, ext string) string {
	old := filepath.Ext(path)
	return path[:len(path)-len(old)] + ext
}
