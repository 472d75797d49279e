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

import "github.com/suica-choo/nachos/pkg/sentry/platform"

// causeSyscall is the cause-register value identifying a syscall trap;
// every other value is a processor fault.
const causeSyscall = 0

// HandleException is installed as the processor's exception handler for
// a running process. A syscall trap reads v0 (the syscall number) and
// a0..a3, dispatches, writes the result back to v0, and advances the
// program counter past the trap instruction. Any other exception is a
// process-fatal fault: the process is exited with status 1 and the
// kernel continues.
func (k *Kernel) HandleException(p *Process) {
	cause := k.Proc.Reg(platform.RegCause)
	if cause != causeSyscall {
		k.Exit(p, 1)
		return
	}

	num := int32(k.Proc.Reg(platform.RegV0))
	a0 := k.Proc.Reg(platform.RegA0)
	a1 := k.Proc.Reg(platform.RegA1)
	a2 := k.Proc.Reg(platform.RegA2)
	a3 := k.Proc.Reg(platform.RegA3)

	result := k.Dispatch(p, num, a0, a1, a2, a3)

	k.Proc.SetReg(platform.RegV0, uint32(result))
	k.Proc.AdvancePC()
}
