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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suica-choo/nachos/pkg/thread"
)

func TestMutexMutualExclusion(t *testing.T) {
	var m Mutex
	var counter int
	var wg sync.WaitGroup

	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			self := thread.New("worker")
			m.Acquire(self)
			counter++
			m.Release(self)
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, counter)
}

func TestMutexIsHeldByCurrent(t *testing.T) {
	var m Mutex
	a := thread.New("a")
	b := thread.New("b")

	require.False(t, m.IsHeldByCurrent(a))
	m.Acquire(a)
	require.True(t, m.IsHeldByCurrent(a))
	require.False(t, m.IsHeldByCurrent(b))
	m.Release(a)
	require.False(t, m.IsHeldByCurrent(a))
}

func TestMutexReleaseNotOwnedPanics(t *testing.T) {
	var m Mutex
	a := thread.New("a")
	b := thread.New("b")
	m.Acquire(a)

	require.Panics(t, func() { m.Release(b) })
}

func TestMutexFIFOHandoff(t *testing.T) {
	var m Mutex
	owner := thread.New("owner")
	m.Acquire(owner)

	const n = 5
	order := make(chan int, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(i int) {
			self := thread.New("waiter")
			<-start
			// Stagger enqueue order deterministically.
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			m.Acquire(self)
			order <- i
			m.Release(self)
		}(i)
	}
	close(start)
	time.Sleep(30 * time.Millisecond) // let all waiters enqueue
	m.Release(owner)

	var got []int
	for i := 0; i < n; i++ {
		got = append(got, <-order)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("waiters not served FIFO: got order %v", got)
		}
	}
}
