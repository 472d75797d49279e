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

package comm

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suica-choo/nachos/pkg/thread"
)

// TestRendezvousPairing: two speakers and two listeners all complete,
// and the listeners together observe {4, 7}.
func TestRendezvousPairing(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var heard []int32

	speak := func(word int32) {
		defer wg.Done()
		c.Speak(thread.New("speaker"), word)
	}
	listen := func() {
		defer wg.Done()
		w := c.Listen(thread.New("listener"))
		mu.Lock()
		heard = append(heard, w)
		mu.Unlock()
	}

	wg.Add(4)
	go speak(4)
	go speak(7)
	go listen()
	go listen()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rendezvous did not complete")
	}

	sort.Slice(heard, func(i, j int) bool { return heard[i] < heard[j] })
	require.Equal(t, []int32{4, 7}, heard)
}

func TestManyToManyRendezvous(t *testing.T) {
	c := New()
	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := map[int32]bool{}
	recv := map[int32]bool{}

	for i := 0; i < n; i++ {
		i := int32(i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Speak(thread.New("speaker"), i)
			mu.Lock()
			sent[i] = true
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			w := c.Listen(thread.New("listener"))
			mu.Lock()
			recv[w] = true
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("rendezvous did not complete")
	}

	require.Equal(t, n, len(sent))
	require.Equal(t, n, len(recv))
}
