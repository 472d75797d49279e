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

import "fmt"

// Syscall numbers, fixed by the ABI.
const (
	SysHalt int32 = iota
	SysExit
	SysExec
	SysJoin
	SysCreat
	SysOpen
	SysRead
	SysWrite
	SysClose
	SysUnlink
)

// Dispatch routes a decoded syscall number and its four argument
// registers to a handler. An unrecognized number is a kernel-fatal
// assertion, not a user-visible failure.
func (k *Kernel) Dispatch(current *Process, num int32, a0, a1, a2, a3 uint32) int32 {
	switch num {
	case SysHalt:
		return k.Halt(current)
	case SysExit:
		k.Exit(current, int32(a0))
		return 0
	case SysExec:
		return k.Exec(current, a0, int32(a1), a2)
	case SysJoin:
		return k.Join(current, int32(a0), a1)
	case SysCreat:
		return k.sysCreat(current, a0)
	case SysOpen:
		return k.sysOpen(current, a0)
	case SysRead:
		return k.sysRead(current, int32(a0), a1, int32(a2))
	case SysWrite:
		return k.sysWrite(current, int32(a0), a1, int32(a2))
	case SysClose:
		return current.Fds.Close(k.FS, int32(a0))
	case SysUnlink:
		return k.sysUnlink(current, a0)
	default:
		panic(fmt.Sprintf("kernel: unknown syscall number %d", num))
	}
}

func (k *Kernel) sysCreat(current *Process, nameAddr uint32) int32 {
	name, ok := current.AS.ReadString(nameAddr, maxStringLen)
	if !ok {
		return -1
	}
	return current.Fds.Creat(k.FS, name)
}

func (k *Kernel) sysOpen(current *Process, nameAddr uint32) int32 {
	name, ok := current.AS.ReadString(nameAddr, maxStringLen)
	if !ok {
		return -1
	}
	return current.Fds.Open(k.FS, name)
}

func (k *Kernel) sysRead(current *Process, fd int32, bufAddr uint32, count int32) int32 {
	if count < 0 {
		return -1
	}
	tmp := make([]byte, count)
	n, ok := current.Fds.Read(fd, tmp)
	if !ok {
		return -1
	}
	return int32(current.AS.WriteVirtualMemory(bufAddr, tmp[:n]))
}

func (k *Kernel) sysWrite(current *Process, fd int32, bufAddr uint32, count int32) int32 {
	if count < 0 {
		return -1
	}
	tmp := make([]byte, count)
	n := current.AS.ReadVirtualMemory(bufAddr, tmp)
	written, ok := current.Fds.Write(fd, tmp[:n])
	if !ok {
		return -1
	}
	return int32(written)
}

func (k *Kernel) sysUnlink(current *Process, nameAddr uint32) int32 {
	name, ok := current.AS.ReadString(nameAddr, maxStringLen)
	if !ok {
		return -1
	}
	return current.Fds.Unlink(k.FS, name)
}
