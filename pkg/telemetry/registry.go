// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry provides monotonic counters keyed by (metric, label).
//
// Counters are the compile pipeline's secondary observation channel: the
// dispatcher records per-phase outcomes and the legalizer records per-op
// failures here, independently of what Compile returns. The contract readers
// rely on is snapshot/delta, not absolute values: capture a Snapshot before
// an action, then ask for the delta after it, so concurrent activity on a
// shared registry does not perturb the observation.
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
)

type cellKey struct {
	name  string
	label string
}

// Registry holds a set of monotonic counter cells. A cell is created
// implicitly on first increment and lives for the registry's lifetime.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	cells map[cellKey]*atomic.Int64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cells: make(map[cellKey]*atomic.Int64)}
}

// Default is the process-wide registry used when no instance is injected.
var Default = NewRegistry()

func (r *Registry) cell(name, label string) *atomic.Int64 {
	key := cellKey{name: name, label: label}
	r.mu.RLock()
	c := r.cells[key]
	r.mu.RUnlock()
	if c != nil {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.cells[key]; c != nil {
		return c
	}
	c = new(atomic.Int64)
	r.cells[key] = c
	return c
}

// Increment adds one to the cell for (name, label).
func (r *Registry) Increment(name, label string) {
	r.cell(name, label).Add(1)
}

// IncrementBy adds delta to the cell for (name, label). Counters are
// monotonic: non-positive deltas are ignored.
func (r *Registry) IncrementBy(name, label string, delta int64) {
	if delta <= 0 {
		return
	}
	r.cell(name, label).Add(delta)
}

// Read returns the current value of the cell, or zero if it was never
// incremented.
func (r *Registry) Read(name, label string) int64 {
	key := cellKey{name: name, label: label}
	r.mu.RLock()
	c := r.cells[key]
	r.mu.RUnlock()
	if c == nil {
		return 0
	}
	return c.Load()
}

// Snapshot copies the current value of every cell.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make(map[cellKey]int64, len(r.cells))
	for key, c := range r.cells {
		values[key] = c.Load()
	}
	return Snapshot{values: values}
}

// Delta returns how much the cell grew since a snapshot. Cells absent from
// the snapshot count from zero.
func (r *Registry) Delta(name, label string, since Snapshot) int64 {
	return r.Read(name, label) - since.values[cellKey{name: name, label: label}]
}

// Entry is one counter row, used for reports.
type Entry struct {
	Name  string
	Label string
	Value int64
}

// Entries returns all cells sorted by name then label.
func (r *Registry) Entries() []Entry {
	return r.Snapshot().Entries()
}

// Snapshot is an immutable copy of a registry's cells at one point in time.
type Snapshot struct {
	values map[cellKey]int64
}

// Read returns the snapshotted value of the cell, or zero.
func (s Snapshot) Read(name, label string) int64 {
	return s.values[cellKey{name: name, label: label}]
}

// Entries returns the snapshotted cells sorted by name then label.
func (s Snapshot) Entries() []Entry {
	entries := make([]Entry, 0, len(s.values))
	for key, v := range s.values {
		entries = append(entries, Entry{Name: key.name, Label: key.label, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Label < entries[j].Label
	})
	return entries
}
