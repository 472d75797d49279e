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

// Package pgalloc is the kernel-wide free list of physical page numbers.
// Unlike pkg/ksync and pkg/alarm, it does not build on the interrupt
// gate: shared kernel structures on a real multi-goroutine host get
// their own small-scoped lock rather than masking interrupts, so
// Acquire/Release serialize through a dedicated mutex local to the
// Allocator.
package pgalloc

import (
	"fmt"
	"sync"
)

// Allocator hands out physical frame numbers in [0, NumPhys) with no
// defragmentation: any free frame is equally valid.
type Allocator struct {
	mu      sync.Mutex
	numPhys int32
	free    []int32
}

// New creates an Allocator owning frames [0, numPhys).
func New(numPhys int32) *Allocator {
	free := make([]int32, numPhys)
	for i := range free {
		free[i] = int32(i)
	}
	return &Allocator{numPhys: numPhys, free: free}
}

// Acquire removes and returns one free frame. The second return value is
// false if no frame is free; the caller has failed (there is no swap to
// fall back to).
func (a *Allocator) Acquire() (int32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return 0, false
	}
	p := a.free[0]
	a.free = a.free[1:]
	return p, true
}

// AcquireN atomically acquires n frames, or none at all. Loaders use
// this instead of pulling frames one at a time: batching means a short
// free list fails the whole request instead of stranding
// partially-acquired frames on a late failure.
func (a *Allocator) AcquireN(n int) ([]int32, bool) {
	if n == 0 {
		return nil, true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) < n {
		return nil, false
	}
	out := append([]int32(nil), a.free[:n]...)
	a.free = a.free[n:]
	return out, true
}

// Release returns frame p to the free list. Releasing a frame outside
// [0, NumPhys), or one that is already free, is a kernel-fatal
// assertion: it indicates a corrupted page table, not a user-visible
// condition.
func (a *Allocator) Release(p int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkFrame(p)
	a.free = append(a.free, p)
}

// ReleaseN returns every frame in ps to the free list.
func (a *Allocator) ReleaseN(ps []int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range ps {
		a.checkFrame(p)
	}
	a.free = append(a.free, ps...)
}

// checkFrame panics on a frame number the machine does not have, or on
// one already on the free list (a frame nobody owns).
// Preconditions: a.mu must be locked.
func (a *Allocator) checkFrame(p int32) {
	if p < 0 || p >= a.numPhys {
		panic(fmt.Sprintf("pgalloc: Release of invalid frame %d (machine has %d)", p, a.numPhys))
	}
	for _, f := range a.free {
		if f == p {
			panic(fmt.Sprintf("pgalloc: Release of frame %d, which is already free", p))
		}
	}
}

// NumFree reports the number of frames currently available. Exposed for
// tests asserting that free frames plus live-process pages always sum
// to the machine's physical page count.
func (a *Allocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}
