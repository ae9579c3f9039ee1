// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pathspace builds a space from a config file and runs one operation
// against it.
//
// The space lives only for the duration of the command. To carry
// values between invocations, pass --state: the snapshot file is
// restored at startup and rewritten by commands that change the
// space. Filesystem mounts persist on their own.
//
//	pathspace put /jobs/build "make all" --state space.psnp
//	pathspace get /jobs/build --take --state space.psnp
//	pathspace tree --values --state space.psnp
//	pathspace snapshot --out backup.psnp --compression lz4 --state space.psnp
//	pathspace inspect backup.psnp
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	return a.root().execute(a.stderr, args)
}

// app carries the output streams so commands can be tested.
type app struct {
	stdout io.Writer
	stderr io.Writer
}

func (a *app) root() *command {
	return &command{
		name:    "pathspace",
		summary: "Build a path-addressed space from a config file and operate on it.",
		subcommands: []*command{
			a.treeCommand(),
			a.getCommand(),
			a.putCommand(),
			a.snapshotCommand(),
			a.inspectCommand(),
		},
	}
}
