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

package ksync

import (
	"fmt"

	"github.com/suica-choo/nachos/pkg/irq"
	"github.com/suica-choo/nachos/pkg/thread"
)

// Cond is a condition variable bound to a specific Mutex at construction.
// It introduces no spurious wakeups: callers must still loop on their
// guarding predicate, exactly as with sync.Cond.
type Cond struct {
	mu      *Mutex
	waiters []*thread.Thread
}

// NewCond returns a Cond bound to mu.
func NewCond(mu *Mutex) *Cond {
	return &Cond{mu: mu}
}

// Sleep releases the mutex and suspends t on the condition's wait queue,
// reacquiring the mutex before returning. t must hold the mutex.
//
// t is published onto the queue while it still holds the mutex: any
// Wake must itself hold the mutex, so it cannot run until after the
// Release below and is guaranteed to see t enqueued. Ready never loses
// a wakeup that lands between Release and Park.
func (c *Cond) Sleep(t *thread.Thread) {
	if !c.mu.IsHeldByCurrent(t) {
		panic(fmt.Sprintf("ksync: Sleep by %v, which does not hold the mutex", t))
	}
	st := irq.Disable()
	c.waiters = append(c.waiters, t)
	st.Restore()
	c.mu.Release(t)
	t.Park()
	c.mu.Acquire(t)
}

// Wake dequeues and readies a single waiter, if any; otherwise it is a
// no-op. t must hold the mutex.
func (c *Cond) Wake(t *thread.Thread) {
	if !c.mu.IsHeldByCurrent(t) {
		panic(fmt.Sprintf("ksync: Wake by %v, which does not hold the mutex", t))
	}
	st := irq.Disable()
	var w *thread.Thread
	if len(c.waiters) > 0 {
		w = c.waiters[0]
		c.waiters = c.waiters[1:]
	}
	st.Restore()
	if w != nil {
		w.Ready()
	}
}

// WakeAll wakes every currently queued waiter. t must hold the mutex.
func (c *Cond) WakeAll(t *thread.Thread) {
	for {
		st := irq.Disable()
		empty := len(c.waiters) == 0
		st.Restore()
		if empty {
			return
		}
		c.Wake(t)
	}
}
