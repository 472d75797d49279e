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

// Package ksync provides the mutex and condition variable the rest of
// the kernel builds its blocking operations on top of. Both are layered
// on pkg/irq rather than sync.Mutex/sync.Cond, since a goroutine that
// blocks must never do so while holding the interrupt gate.
package ksync

import (
	"fmt"

	"github.com/suica-choo/nachos/pkg/irq"
	"github.com/suica-choo/nachos/pkg/thread"
)

// Mutex is a blocking lock that tracks its owner by identity, with FIFO
// handoff among contenders.
type Mutex struct {
	owner *thread.Thread
	queue []*thread.Thread
}

// Acquire blocks until t owns the mutex.
func (m *Mutex) Acquire(t *thread.Thread) {
	for {
		st := irq.Disable()
		// Release hands ownership directly to the dequeued waiter, so
		// a woken t finds itself already the owner.
		if m.owner == nil || m.owner == t {
			m.owner = t
			st.Restore()
			return
		}
		m.queue = append(m.queue, t)
		st.Restore()
		t.Park()
	}
}

// Release hands the mutex to the next queued waiter, if any, or marks it
// free. Release panics if t does not hold the mutex: releasing a lock
// you don't own is a kernel-fatal assertion, not a user-visible error.
func (m *Mutex) Release(t *thread.Thread) {
	st := irq.Disable()
	if m.owner != t {
		st.Restore()
		panic(fmt.Sprintf("ksync: Release by %v, which does not hold the mutex", t))
	}
	var next *thread.Thread
	if len(m.queue) > 0 {
		next = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.owner = next
	st.Restore()
	if next != nil {
		next.Ready()
	}
}

// IsHeldByCurrent reports whether t currently owns the mutex.
func (m *Mutex) IsHeldByCurrent(t *thread.Thread) bool {
	st := irq.Disable()
	defer st.Restore()
	return m.owner == t
}
