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

// Package atomicbitops provides typed wrappers around sync/atomic, so
// call sites read as field accesses rather than package-qualified
// free functions.
package atomicbitops

import "sync/atomic"

// Int32 is an atomically accessed int32.
type Int32 struct {
	v atomic.Int32
}

func (i *Int32) Load() int32            { return i.v.Load() }
func (i *Int32) Store(val int32)        { i.v.Store(val) }
func (i *Int32) Add(delta int32) int32  { return i.v.Add(delta) }
func (i *Int32) CompareAndSwap(old, new int32) bool {
	return i.v.CompareAndSwap(old, new)
}

// Bool is an atomically accessed bool.
type Bool struct {
	v atomic.Bool
}

func (b *Bool) Load() bool         { return b.v.Load() }
func (b *Bool) Store(val bool)     { b.v.Store(val) }
func (b *Bool) Swap(val bool) bool { return b.v.Swap(val) }
