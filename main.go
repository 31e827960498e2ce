// Copyright 2026 The Snazzy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The snazzy command compiles snazzy source files into 32 KiB 65C816
// LoROM cartridge images.
//
// Usage:
//
//	snazzy [options] <input.snz> ...
//
// Each input file is compiled to a sibling file with its extension
// replaced by ".bin". The -c option starts an interactive console
// instead, optionally preloading the first input file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/term"
	"github.com/golang/glog"

	"github.com/snazzylang/snazzy/codegen"
	"github.com/snazzylang/snazzy/host"
	"github.com/snazzylang/snazzy/parser"
)

var (
	console bool
	output  string
	listing bool
)

func init() {
	flag.BoolVar(&console, "c", false, "start the interactive console")
	flag.StringVar(&output, "o", "", "output path (single input only)")
	flag.BoolVar(&listing, "listing", false, "write the assembly listing to stdout")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: snazzy [options] <input.snz> ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	args := flag.Args()

	if console {
		h := host.New()
		if len(args) > 0 {
			if err := h.AssembleFile(args[0], os.Stdout); err != nil {
				exitOnError(err)
			}
		}
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		h.RunCommands(os.Stdin, os.Stdout, interactive)
		return
	}

	if len(args) == 0 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}
	if output != "" && len(args) > 1 {
		exitOnError(fmt.Errorf("-o cannot be used with multiple inputs"))
	}

	for _, path := range args {
		if err := compile(path); err != nil {
			exitOnError(err)
		}
	}
}

func compile(path string) error {
	glog.V(1).Infof("compiling %s", path)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	prog, err := parser.Parse(file)
	if err != nil {
		return fmt.Errorf("%s:%v", path, err)
	}
	glog.V(1).Infof("parsed %d definitions", len(prog.Definitions))

	var out io.Writer
	var options codegen.Option
	if listing {
		out = os.Stdout
		options |= codegen.Verbose
	}

	result, err := codegen.Assemble(prog, out, options)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	glog.V(1).Infof("assembled %d bytes, %d symbols", len(result.Code), len(result.Symbols))

	outPath := output
	if outPath == "" {
		ext := filepath.Ext(path)
		outPath = path[:len(path)-len(ext)] + ".bin"
	}
	if err := os.WriteFile(outPath, result.Code, 0644); err != nil {
		return err
	}
	glog.V(1).Infof("wrote %s", outPath)
	return nil
}

func exitOnError(err error) {
	glog.Flush()
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
