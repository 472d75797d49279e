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

// Package irq models the simulated machine's interrupt line: a single,
// kernel-wide critical section that pkg/ksync and pkg/alarm use as their
// atomicity primitive, the way the original design disables interrupts
// around a handful of instructions. Disable is a scoped acquisition:
// the caller must Restore exactly once, normally via defer, on every
// exit path.
package irq

import "sync"

var gate sync.Mutex

// State is the token returned by Disable. It must be restored exactly
// once.
type State struct {
	restored bool
}

// Disable acquires the interrupt gate, blocking until no other caller
// holds it. The returned State must be passed to Restore before the
// calling goroutine does anything that could block.
func Disable() *State {
	gate.Lock()
	return &State{}
}

// Restore releases the interrupt gate acquired by the matching Disable.
// Calling Restore more than once on the same State panics: that would
// unlock a gate the caller no longer holds.
func (s *State) Restore() {
	if s.restored {
		panic("irq: Restore called twice on the same State")
	}
	s.restored = true
	gate.Unlock()
}
