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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suica-choo/nachos/pkg/thread"
)

// TestCondProducerConsumer exercises the canonical bounded-predicate loop:
// consumers wait on Sleep until ready becomes true, the producer sets it
// and calls WakeAll.
func TestCondProducerConsumer(t *testing.T) {
	var mu Mutex
	cond := NewCond(&mu)
	ready := false

	const n = 8
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			self := thread.New("consumer")
			mu.Acquire(self)
			for !ready {
				cond.Sleep(self)
			}
			mu.Release(self)
			done <- struct{}{}
		}()
	}

	time.Sleep(20 * time.Millisecond) // let consumers enqueue
	producer := thread.New("producer")
	mu.Acquire(producer)
	ready = true
	cond.WakeAll(producer)
	mu.Release(producer)

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer never woke")
		}
	}
}

func TestCondWakeSingleWaiter(t *testing.T) {
	var mu Mutex
	cond := NewCond(&mu)
	woken := make(chan string, 2)

	for _, name := range []string{"first", "second"} {
		name := name
		go func() {
			self := thread.New(name)
			mu.Acquire(self)
			cond.Sleep(self)
			mu.Release(self)
			woken <- name
		}()
	}
	time.Sleep(20 * time.Millisecond)

	waker := thread.New("waker")
	mu.Acquire(waker)
	cond.Wake(waker)
	mu.Release(waker)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("no waiter woke")
	}
	select {
	case <-woken:
		t.Fatal("second waiter woke but Wake should only release one")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCondSleepWithoutMutexPanics(t *testing.T) {
	var mu Mutex
	cond := NewCond(&mu)
	self := thread.New("self")
	require.Panics(t, func() { cond.Sleep(self) })
}
