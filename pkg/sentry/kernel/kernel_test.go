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

package kernel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suica-choo/nachos/pkg/sentry/pgalloc"
	"github.com/suica-choo/nachos/pkg/sentry/platform"
	"github.com/suica-choo/nachos/pkg/sentry/platform/fakeplatform"
)

const testPageSize = 64

func newTestKernel(t *testing.T, numPhys int32) (*Kernel, *fakeplatform.Processor, *fakeplatform.FileSystem) {
	t.Helper()
	proc := fakeplatform.NewProcessor(numPhys, testPageSize)
	alloc := pgalloc.New(numPhys)
	fs := fakeplatform.NewFileSystem()
	console := fakeplatform.NewConsole(nil)
	loader := fakeplatform.Loader{PageSize: testPageSize}
	return New(proc, alloc, fs, console, loader), proc, fs
}

func writeProgram(fs *fakeplatform.FileSystem, name string, pages int32, entry uint32) {
	sections := []platform.Section{{FirstVPN: 0, NumPages: pages, Data: make([]byte, int64(pages)*testPageSize)}}
	fs.WriteFile(name, fakeplatform.Encode(fakeplatform.Program{Sections: sections, Entry: entry}))
}

func TestBootAssignsRootPid(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)

	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)
	require.Equal(t, RootPid, root.Pid)
	require.False(t, proc.Halted())
}

func TestExitRootHaltsRegardlessOfChildren(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	writeProgram(fs, "child.coff", 1, 0)

	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)
	child, err := k.newUserProcess("child.coff", nil)
	require.NoError(t, err)
	root.Children = append(root.Children, child.Pid)
	child.Ppid = root.Pid

	k.Exit(root, 0)
	require.True(t, proc.Halted())
}

func TestExitNonRootAloneHalts(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "p.coff", 1, 0)

	// Consume pid 1 without registering a root, so the process under
	// test is the sole live process and is not RootPid.
	k.Registry.GetPid()
	p, err := k.newUserProcess("p.coff", nil)
	require.NoError(t, err)
	require.NotEqual(t, RootPid, p.Pid)

	k.Exit(p, 3)
	require.True(t, proc.Halted())
}

func TestExitNonRootWithLiveParentRemainsUntilJoin(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	writeProgram(fs, "child.coff", 1, 0)

	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)
	child, err := k.newUserProcess("child.coff", nil)
	require.NoError(t, err)
	root.Children = append(root.Children, child.Pid)
	child.Ppid = root.Pid

	k.Exit(child, 7)
	require.False(t, proc.Halted())
	_, ok := k.Registry.Get(child.Pid)
	require.True(t, ok, "non-disowned child must remain registered until join")

	n := k.Join(root, child.Pid, 0)
	require.Equal(t, int32(1), n)

	var buf [4]byte
	root.AS.ReadVirtualMemory(0, buf[:])
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[:]))

	_, ok = k.Registry.Get(child.Pid)
	require.False(t, ok)

	require.Equal(t, int32(-1), k.Join(root, child.Pid, 0), "a second join on the same pid fails")
}

func TestJoinNonChildFails(t *testing.T) {
	k, _, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)

	require.Equal(t, int32(-1), k.Join(root, 999, 0))
}

func TestDispatchCreatWriteCloseReopenUnlink(t *testing.T) {
	k, _, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)

	n := root.AS.WriteVirtualMemory(0, []byte("data\x00"))
	require.Equal(t, 5, n)

	fd := k.Dispatch(root, SysCreat, 0, 0, 0, 0)
	require.Equal(t, int32(2), fd)

	payload := []byte("hello")
	root.AS.WriteVirtualMemory(16, payload)
	written := k.Dispatch(root, SysWrite, uint32(fd), 16, uint32(len(payload)), 0)
	require.Equal(t, int32(len(payload)), written)

	require.Equal(t, int32(0), k.Dispatch(root, SysClose, uint32(fd), 0, 0, 0))

	fd2 := k.Dispatch(root, SysOpen, 0, 0, 0, 0)
	require.Equal(t, int32(2), fd2)

	readN := k.Dispatch(root, SysRead, uint32(fd2), 32, uint32(len(payload)), 0)
	require.Equal(t, int32(len(payload)), readN)
	got := make([]byte, len(payload))
	root.AS.ReadVirtualMemory(32, got)
	require.Equal(t, payload, got)

	require.Equal(t, int32(0), k.Dispatch(root, SysUnlink, 0, 0, 0, 0))
	_, err = fs.Open("data", false)
	require.NoError(t, err, "unlink while open must defer")

	k.Dispatch(root, SysClose, uint32(fd2), 0, 0, 0)
	_, err = fs.Open("data", false)
	require.Error(t, err, "deferred unlink applies on the final close")
}

func TestDispatchExecArgvRoundTrip(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	writeProgram(fs, "child.coff", 1, 0x10)

	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)

	root.AS.WriteVirtualMemory(0, []byte("child.coff\x00"))

	var ptrTable [8]byte
	binary.LittleEndian.PutUint32(ptrTable[0:4], 72)
	binary.LittleEndian.PutUint32(ptrTable[4:8], 75)
	root.AS.WriteVirtualMemory(64, ptrTable[:])
	root.AS.WriteVirtualMemory(72, []byte("ab\x00"))
	root.AS.WriteVirtualMemory(75, []byte("c\x00"))

	childPid := k.Dispatch(root, SysExec, 0, 2, 64, 0)
	require.Greater(t, childPid, RootPid)
	require.Contains(t, root.Children, childPid)

	child, ok := k.Registry.Get(childPid)
	require.True(t, ok)
	require.Equal(t, int32(2), child.AS.Argc)
	require.Equal(t, uint32(2), proc.Reg(platform.RegA0))
	require.Equal(t, child.AS.ArgvAddr, proc.Reg(platform.RegA1))

	var argvBuf [8]byte
	n := child.AS.ReadVirtualMemory(child.AS.ArgvAddr, argvBuf[:])
	require.Equal(t, 8, n)
	ptrA := binary.LittleEndian.Uint32(argvBuf[0:4])
	ptrB := binary.LittleEndian.Uint32(argvBuf[4:8])

	sA, ok := child.AS.ReadString(ptrA, 255)
	require.True(t, ok)
	require.Equal(t, "ab", sA)
	sB, ok := child.AS.ReadString(ptrB, 255)
	require.True(t, ok)
	require.Equal(t, "c", sB)
}

func TestExecRejectsWrongExtension(t *testing.T) {
	k, _, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)

	root.AS.WriteVirtualMemory(0, []byte("child.exe\x00"))
	require.Equal(t, int32(-1), k.Dispatch(root, SysExec, 0, 0, 0, 0))
}

func TestHaltNoopForNonRoot(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	writeProgram(fs, "child.coff", 1, 0)
	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)
	child, err := k.newUserProcess("child.coff", nil)
	require.NoError(t, err)
	root.Children = append(root.Children, child.Pid)
	child.Ppid = root.Pid

	require.Equal(t, int32(0), k.Dispatch(child, SysHalt, 0, 0, 0, 0))
	require.False(t, proc.Halted())
}

func TestHandleExceptionFaultExitsProcess(t *testing.T) {
	k, proc, fs := newTestKernel(t, 64)
	writeProgram(fs, "root.coff", 1, 0)
	root, err := k.Boot("root.coff", nil)
	require.NoError(t, err)

	proc.SetReg(platform.RegCause, 1)
	k.HandleException(root)
	require.True(t, proc.Halted(), "root's fault-triggered exit still halts the machine")
}
