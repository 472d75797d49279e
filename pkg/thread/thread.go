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

// Package thread is the kernel's stand-in for a schedulable unit of
// execution. The synchronization primitives in pkg/ksync, pkg/alarm and
// pkg/sentry/kernel all suspend and wake callers through a *Thread rather
// than through goroutine-local state, since Go has no public notion of
// "the current thread" to hang a wait queue off of.
package thread

import "sync"

// Thread is a park/ready handle plus a one-shot completion signal. Each
// concurrent kernel activity (a ksync waiter, an alarm sleeper, a user
// process) owns exactly one.
type Thread struct {
	name string

	// wake admits at most one pending wakeup: Ready is safe to call
	// before, during or after a Park, and never blocks the waker.
	wake chan struct{}

	doneOnce sync.Once
	done     chan struct{}
}

// New creates a Thread. name is used only for logging/debugging.
func New(name string) *Thread {
	return &Thread{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (t *Thread) String() string { return t.name }

// Ready marks the thread runnable. It never blocks: a Ready that races a
// Park is not lost, and a second Ready before the first is consumed is a
// no-op.
func (t *Thread) Ready() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Park blocks until Ready is called at least once since the last Park
// returned.
func (t *Thread) Park() {
	<-t.wake
}

// Finish marks the thread's lifetime as over; subsequent and concurrent
// Wait calls return immediately. Finish is idempotent.
func (t *Thread) Finish() {
	t.doneOnce.Do(func() { close(t.done) })
}

// Wait blocks until Finish has been called.
func (t *Thread) Wait() {
	<-t.done
}

// Finished reports whether Finish has already been called, without
// blocking.
func (t *Thread) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
