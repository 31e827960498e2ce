// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

var cmds *cmd.Tree

func init() {
	root := cmd.NewTree("snazzy")
	root.AddCommand(cmd.Command{
		Name:        "help",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	})
	root.AddCommand(cmd.Command{
		Name:  "assemble",
		Brief: "Assemble a source file",
		Description: "Compile and assemble the named snazzy source file" +
			" into a 32 KiB LoROM image. The image is held in memory for" +
			" inspection until the next assemble command, and may be" +
			" written to disk with the save command.",
		Usage: "assemble <filename>",
		Data:  (*Host).cmdAssemble,
	})
	root.AddCommand(cmd.Command{
		Name:  "save",
		Brief: "Save the assembled image",
		Description: "Write the most recently assembled image to disk. If" +
			" no filename is given, the source filename is used with its" +
			" extension replaced by '.bin'.",
		Usage: "save [<filename>]",
		Data:  (*Host).cmdSave,
	})
	root.AddCommand(cmd.Command{
		Name:  "symbols",
		Brief: "List the symbol table",
		Description: "Display every variable and function of the most" +
			" recently assembled program together with its address and," +
			" for functions, its attributes.",
		Usage: "symbols",
		Data:  (*Host).cmdSymbols,
	})
	root.AddCommand(cmd.Command{
		Name:  "vectors",
		Brief: "Display the interrupt vector table",
		Description: "Decode the interrupt vector table of the most" +
			" recently assembled image.",
		Usage: "vectors",
		Data:  (*Host).cmdVectors,
	})

	// Memory commands
	mem := cmd.NewTree("Memory")
	root.AddCommand(cmd.Command{
		Name:    "memory",
		Brief:   "Memory commands",
		Subtree: mem,
	})
	mem.AddCommand(cmd.Command{
		Name:  "dump",
		Brief: "Dump image memory at address",
		Description: "Dump the contents of the assembled image starting" +
			" from the specified address. The number of bytes to dump may" +
			" be specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "memory dump [<address>] [<bytes>]",
		Data:  (*Host).cmdMemoryDump,
	})

	root.AddCommand(cmd.Command{
		Name:  "disassemble",
		Brief: "Disassemble image code",
		Description: "Disassemble machine code from the assembled image" +
			" starting at the requested address. The number of" +
			" instructions to disassemble may be specified as an option." +
			" If no address is specified, the disassembly continues from" +
			" where the last disassembly left off.",
		Usage: "disassemble [<address>] [<count>]",
		Data:  (*Host).cmdDisassemble,
	})
	root.AddCommand(cmd.Command{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see" +
			" the current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	})
	root.AddCommand(cmd.Command{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("s", "symbols")
	root.AddShortcut("v", "vectors")
	root.AddShortcut("w", "save")
	root.AddShortcut("q", "quit")
	root.AddShortcut("?", "help")

	cmds = root
}
