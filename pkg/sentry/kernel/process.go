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

// Package kernel is the process lifecycle and syscall surface: the
// registry of live processes (registry.go), the process/kernel types and
// exec/join/exit/halt (this file), the syscall dispatcher (dispatch.go),
// and the processor exception entry point (trap.go).
package kernel

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/suica-choo/nachos/pkg/alarm"
	"github.com/suica-choo/nachos/pkg/log"
	"github.com/suica-choo/nachos/pkg/sentry/kernel/fdtable"
	"github.com/suica-choo/nachos/pkg/sentry/mm"
	"github.com/suica-choo/nachos/pkg/sentry/pgalloc"
	"github.com/suica-choo/nachos/pkg/sentry/platform"
	"github.com/suica-choo/nachos/pkg/thread"
)

// execExtension is the only executable suffix exec will load.
const execExtension = ".coff"

// maxStringLen bounds every null-terminated string a syscall reads out
// of user memory.
const maxStringLen = 256

// Process is one user process: its address space, file descriptors, and
// place in the parent/child graph. mu guards every field that exec,
// join and exit touch from outside the owning thread.
type Process struct {
	Pid int32

	AS  *mm.AddressSpace
	Fds *fdtable.Table

	Thread *thread.Thread

	mu         sync.Mutex
	Ppid       int32
	Children   []int32
	ExitStatus int32
}

// Kernel wires every collaborator and owns the process registry. There
// is exactly one per booted machine.
type Kernel struct {
	Registry *Registry
	Alloc    *pgalloc.Allocator
	Proc     platform.Processor
	FS       platform.FileSystem
	Console  platform.Console
	Loader   platform.Loader

	// Alarm is the kernel's timed-wakeup facility. It is not touched by
	// process lifecycle operations; it is wired here purely so a single
	// Kernel value is the one thing cmd/nachos needs to construct and
	// hand to a scheduler.
	Alarm *alarm.Alarm
}

// New wires a Kernel around its collaborators.
func New(proc platform.Processor, alloc *pgalloc.Allocator, fs platform.FileSystem, console platform.Console, loader platform.Loader) *Kernel {
	return &Kernel{
		Registry: NewRegistry(),
		Alloc:    alloc,
		Proc:     proc,
		FS:       fs,
		Console:  console,
		Loader:   loader,
	}
}

// newUserProcess allocates a pid, registers the process immediately, and
// only then attempts to load name/args into an address space. A load
// failure leaves the process registered with whatever partial state it
// reached; the caller decides what that means (Boot treats it as fatal,
// Exec returns -1 but keeps the child around).
func (k *Kernel) newUserProcess(name string, args []string) (*Process, error) {
	p := &Process{
		Pid:    k.Registry.GetPid(),
		Thread: thread.New(name),
		Fds:    fdtable.New(k.Console.StdinFile(), k.Console.StdoutFile()),
	}
	k.Registry.Add(p)

	as, err := mm.Load(k.Proc, k.Alloc, k.Loader, k.FS, name, args)
	if err != nil {
		log.Warningf("kernel: loading %q for pid %d: %v", name, p.Pid, err)
		return p, err
	}
	p.AS = as
	return p, nil
}

// installRegisters points the processor at p: its page table, its entry
// registers, and its exception handler. Only one process's registers
// are ever installed at a time, mirroring the single simulated CPU;
// instruction-level execution itself is the processor collaborator's
// job, not the kernel's.
func (k *Kernel) installRegisters(p *Process) {
	k.Proc.SetPageTable(p.AS.PageTable())
	k.Proc.SetReg(platform.RegPC, p.AS.InitialPC)
	k.Proc.SetReg(platform.RegSP, p.AS.InitialSP)
	k.Proc.SetReg(platform.RegA0, uint32(p.AS.Argc))
	k.Proc.SetReg(platform.RegA1, p.AS.ArgvAddr)
	k.Proc.SetExceptionHandler(func() { k.HandleException(p) })
}

// Boot creates the root process (pid RootPid, ppid 0) and installs it as
// the running process. A load failure here is fatal: there is no parent
// to report -1 to.
func (k *Kernel) Boot(name string, args []string) (*Process, error) {
	p, err := k.newUserProcess(name, args)
	if err != nil {
		return nil, fmt.Errorf("kernel: boot %q: %w", name, err)
	}
	p.Ppid = 0
	log.Infof("kernel: booted %q as pid %d", name, p.Pid)
	k.installRegisters(p)
	return p, nil
}

// Exec implements the exec syscall. It reads the executable name and
// argv out of current's address space, creates the child process (which
// registers it and then attempts the load), and wires the parent/child
// relation whatever the load's outcome, so the relation holds even on
// load failure.
func (k *Kernel) Exec(current *Process, nameAddr uint32, argc int32, argvAddr uint32) int32 {
	if argc < 0 {
		return -1
	}
	name, ok := current.AS.ReadString(nameAddr, maxStringLen)
	if !ok || !strings.HasSuffix(name, execExtension) {
		return -1
	}

	args := make([]string, argc)
	for i := int32(0); i < argc; i++ {
		var ptrBuf [4]byte
		if n := current.AS.ReadVirtualMemory(argvAddr+uint32(i)*4, ptrBuf[:]); n != 4 {
			return -1
		}
		ptr := binary.LittleEndian.Uint32(ptrBuf[:])
		s, ok := current.AS.ReadString(ptr, maxStringLen)
		if !ok {
			return -1
		}
		args[i] = s
	}

	child, err := k.newUserProcess(name, args)

	current.mu.Lock()
	current.Children = append(current.Children, child.Pid)
	current.mu.Unlock()

	child.mu.Lock()
	child.Ppid = current.Pid
	child.mu.Unlock()

	if err != nil {
		log.Warningf("kernel: pid %d exec %q failed: %v", current.Pid, name, err)
		return -1
	}
	k.installRegisters(child)
	return child.Pid
}

// Join implements the join syscall: -1 if pid is not among current's
// children, otherwise blocks until the child's thread finishes, writes
// its exit status, and reaps it from the registry so a second join on
// the same pid correctly returns -1.
func (k *Kernel) Join(current *Process, pid int32, statusAddr uint32) int32 {
	current.mu.Lock()
	idx := -1
	for i, c := range current.Children {
		if c == pid {
			idx = i
			break
		}
	}
	current.mu.Unlock()
	if idx < 0 {
		return -1
	}

	child, ok := k.Registry.Get(pid)
	if !ok {
		return -1
	}
	// A child that already exited has a recorded status; only a still
	// running child costs a blocking wait.
	if !child.Thread.Finished() {
		child.Thread.Wait()
	}

	child.mu.Lock()
	status := child.ExitStatus
	child.mu.Unlock()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(status))
	n := current.AS.WriteVirtualMemory(statusAddr, buf[:])

	k.Registry.Remove(pid)
	current.mu.Lock()
	current.Children = append(current.Children[:idx], current.Children[idx+1:]...)
	current.mu.Unlock()

	if n == 4 {
		return 1
	}
	return 0
}

// Exit implements the exit syscall and the fault-termination path:
// close every FD, disown remaining children, tear down the address
// space, then either halt the machine (root, or the last live process)
// or, if already disowned, reap itself.
func (k *Kernel) Exit(p *Process, status int32) {
	p.Fds.CloseAll(k.FS)

	p.mu.Lock()
	children := append([]int32(nil), p.Children...)
	p.ExitStatus = status
	p.mu.Unlock()

	for _, cpid := range children {
		if c, ok := k.Registry.Get(cpid); ok {
			c.mu.Lock()
			c.Ppid = 0
			c.mu.Unlock()
		}
	}

	if p.AS != nil {
		p.AS.Teardown()
	}

	halt := p.Pid == RootPid || k.Registry.Count() == 1

	p.mu.Lock()
	disowned := p.Ppid == 0
	p.mu.Unlock()
	if !halt && disowned {
		k.Registry.Remove(p.Pid)
	}

	log.Infof("kernel: pid %d exited status %d (halt=%v)", p.Pid, status, halt)
	p.Thread.Finish()

	if halt {
		k.Proc.Halt()
	}
}

// Halt implements the halt syscall: a no-op for anyone
// but the root process. The machine-halt primitive does not return; the
// 0 below is only ever observed by a non-root caller.
func (k *Kernel) Halt(p *Process) int32 {
	if p.Pid != RootPid {
		return 0
	}
	log.Infof("kernel: halt requested by root (pid %d)", p.Pid)
	k.Proc.Halt()
	return 0
}
