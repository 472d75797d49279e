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

package kernel

import "sync"

// RootPid is the pid of the first process ever created. Only it may
// halt the machine through the halt syscall.
const RootPid int32 = 1

// Registry is the kernel-wide pid → process map and monotonic pid
// counter. Unlike pkg/ksync and pkg/alarm, it serializes through its own
// dedicated mutex rather than the interrupt gate: this is real-thread,
// real-host state, not a single-CPU critical section.
type Registry struct {
	mu      sync.Mutex
	nextPid int32
	procs   map[int32]*Process
}

// NewRegistry returns an empty Registry whose first GetPid call returns
// RootPid.
func NewRegistry() *Registry {
	return &Registry{nextPid: RootPid, procs: map[int32]*Process{}}
}

// GetPid issues the next pid. Pids are never recycled.
func (r *Registry) GetPid() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.nextPid
	r.nextPid++
	return pid
}

// Add registers p under its own pid.
func (r *Registry) Add(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.Pid] = p
}

// Remove drops pid from the live set.
func (r *Registry) Remove(pid int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, pid)
}

// Get looks up pid.
func (r *Registry) Get(pid int32) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[pid]
	return p, ok
}

// Count returns the number of live processes.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
