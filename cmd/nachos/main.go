// Copyright 2024 The Nachos-Go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command nachos boots a single executable on the simulated kernel. The
// processor, timer, file system and object-file loader are always the
// in-memory fakeplatform collaborators (this repository ships no real
// MMU or instruction interpreter); only the console can be swapped for
// a real terminal, so the machine can still be driven from an
// interactive shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/suica-choo/nachos/pkg/alarm"
	"github.com/suica-choo/nachos/pkg/log"
	"github.com/suica-choo/nachos/pkg/sentry/kernel"
	"github.com/suica-choo/nachos/pkg/sentry/pgalloc"
	"github.com/suica-choo/nachos/pkg/sentry/platform"
	"github.com/suica-choo/nachos/pkg/sentry/platform/fakeplatform"
	"github.com/suica-choo/nachos/pkg/sentry/platform/hostconsole"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCommand{phys: 256, pageSize: 4096}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

type bootCommand struct {
	phys       int
	pageSize   int
	useHostTTY bool
	debug      bool
}

func (*bootCommand) Name() string     { return "boot" }
func (*bootCommand) Synopsis() string { return "load an executable as the root process, then exit it" }
func (*bootCommand) Usage() string {
	return "boot [flags] <executable> [argv...]\n"
}

func (c *bootCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.phys, "phys", 256, "number of simulated physical frames")
	f.IntVar(&c.pageSize, "pagesize", 4096, "simulated page size in bytes")
	f.BoolVar(&c.useHostTTY, "host-console", false, "put the real terminal in raw mode and use it as the console, rather than the in-memory fake")
	f.BoolVar(&c.debug, "debug", false, "emit debug-level log lines")
}

func (c *bootCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.debug {
		log.SetLevel(log.Debug)
	}
	if f.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "boot: missing executable path")
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	argv := f.Args()[1:]

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: %v\n", err)
		return subcommands.ExitFailure
	}

	proc := fakeplatform.NewProcessor(int32(c.phys), int32(c.pageSize))
	alloc := pgalloc.New(int32(c.phys))
	fs := fakeplatform.NewFileSystem()
	loader := fakeplatform.Loader{PageSize: int32(c.pageSize)}

	console, closeConsole, err := c.openConsole()
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeConsole()

	name := fakeFSName(path)
	fs.WriteFile(name, data)

	k := kernel.New(proc, alloc, fs, console, loader)
	k.Alarm = alarm.New(fakeplatform.NewTimer())
	root, err := k.Boot(name, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: %v\n", err)
		return subcommands.ExitFailure
	}

	log.Infof("nachos: pid %d loaded %q: entry=%#x pages=%d argv=%#x", root.Pid, name, root.AS.InitialPC, root.AS.NumPages(), root.AS.ArgvAddr)
	log.Infof("nachos: instruction execution is an external collaborator this core does not implement; exiting root to demonstrate the halt cascade")

	k.Exit(root, 0)
	proc.WaitHalt()
	return subcommands.ExitSuccess
}

// openConsole returns the console collaborator boot should wire in, and
// a cleanup function that restores any host terminal state it changed.
func (c *bootCommand) openConsole() (platform.Console, func(), error) {
	if !c.useHostTTY {
		return fakeplatform.NewConsole(nil), func() {}, nil
	}
	hc, err := hostconsole.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening host console: %w", err)
	}
	return hc, func() { hc.Close() }, nil
}

func fakeFSName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
