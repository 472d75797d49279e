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

// Package alarm implements a single per-kernel timed-wakeup facility: a
// min-heap of (deadline, thread) pairs drained on every timer interrupt.
package alarm

import (
	"container/heap"
	"runtime"

	"github.com/suica-choo/nachos/pkg/irq"
	"github.com/suica-choo/nachos/pkg/thread"
)

// Timer is the timer device collaborator: a monotonic tick source that
// invokes a handler roughly every 500 ticks.
type Timer interface {
	GetTime() int64
	SetInterruptHandler(fn func())
}

type entry struct {
	deadline int64
	t        *thread.Thread
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Alarm is the kernel's single timed-wakeup facility. At most one exists
// per kernel: New wires itself as the Timer's interrupt handler, so a
// second Alarm on the same Timer would steal the first one's wakeups.
type Alarm struct {
	timer Timer
	pq    entryHeap
}

// New creates an Alarm and installs it as timer's interrupt handler.
func New(timer Timer) *Alarm {
	a := &Alarm{timer: timer}
	timer.SetInterruptHandler(a.tick)
	return a
}

// tick runs on every timer interrupt: with interrupts disabled, it drains
// every heap entry whose deadline is strictly less than the current
// time, marks each such thread ready, then yields.
func (a *Alarm) tick() {
	st := irq.Disable()
	now := a.timer.GetTime()
	var woken []*thread.Thread
	for len(a.pq) > 0 && a.pq[0].deadline < now {
		e := heap.Pop(&a.pq).(*entry)
		woken = append(woken, e.t)
	}
	st.Restore()

	for _, t := range woken {
		t.Ready()
	}
	runtime.Gosched()
}

// WaitUntil suspends t until the first timer interrupt at which the
// current time is strictly greater than the deadline now()+x, i.e. for
// at least x ticks. x <= 0 returns immediately without suspending.
// Wakeups are not exact: a thread wakes at the first tick where its
// deadline has passed, never earlier.
func (a *Alarm) WaitUntil(t *thread.Thread, x int64) {
	if x <= 0 {
		return
	}
	deadline := a.timer.GetTime() + x
	st := irq.Disable()
	heap.Push(&a.pq, &entry{deadline: deadline, t: t})
	st.Restore()
	t.Park()
}

// Len reports the number of threads currently waiting. Exposed for
// tests; not part of the suspension API.
func (a *Alarm) Len() int {
	st := irq.Disable()
	defer st.Restore()
	return len(a.pq)
}
