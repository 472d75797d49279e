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

// Package comm implements a many-to-many synchronous rendezvous for
// 32-bit words: a Speak does not deposit its word until some Listen is
// waiting for one, and a Listen does not return until some Speak has
// deposited one.
package comm

import (
	"sync"

	"github.com/suica-choo/nachos/pkg/ksync"
	"github.com/suica-choo/nachos/pkg/thread"
)

// Communicator is a single rendezvous point. The zero value is ready to
// use.
type Communicator struct {
	mu           ksync.Mutex
	initOnce     sync.Once
	speakerCond  *ksync.Cond
	listenerCond *ksync.Cond

	wordReady    bool
	word         int32
	numSpeakers  int32
	numListeners int32
}

// ensureInit wires the conditions lazily so a Communicator embedded as a
// plain struct field needs no constructor call.
func (c *Communicator) ensureInit() {
	c.initOnce.Do(func() {
		c.speakerCond = ksync.NewCond(&c.mu)
		c.listenerCond = ksync.NewCond(&c.mu)
	})
}

// New returns a ready-to-use Communicator.
func New() *Communicator {
	c := &Communicator{}
	c.ensureInit()
	return c
}

// Speak blocks until a Listen is in progress and no other word is in
// flight, then deposits word and returns. It does not wait for the
// listener to take the word.
func (c *Communicator) Speak(t *thread.Thread, word int32) {
	c.ensureInit()
	c.mu.Acquire(t)
	c.numSpeakers++
	for c.numListeners == 0 || c.wordReady {
		c.speakerCond.Sleep(t)
	}
	c.word = word
	c.wordReady = true
	// Every listener must re-check wordReady: only one will actually
	// observe it true and consume, the rest loop back to sleep.
	c.listenerCond.WakeAll(t)
	c.numSpeakers--
	c.mu.Release(t)
}

// Listen blocks until a Speak has deposited a word, then returns it.
func (c *Communicator) Listen(t *thread.Thread) int32 {
	c.ensureInit()
	c.mu.Acquire(t)
	c.numListeners++
	for !c.wordReady {
		// Admit one speaker: without this nudge a speaker blocked on
		// numListeners == 0 would never learn a listener arrived.
		c.speakerCond.WakeAll(t)
		c.listenerCond.Sleep(t)
	}
	w := c.word
	c.wordReady = false
	c.numListeners--
	c.mu.Release(t)
	return w
}
