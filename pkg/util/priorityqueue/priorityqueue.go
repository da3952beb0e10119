// Copyright 2025 Ant Group Co., Ltd.
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

// Package priorityqueue provides the ready-node queue used when scheduling
// graph nodes for emission.
package priorityqueue

import "container/heap"

type item[T any] struct {
	value    T
	priority int
}

// Queue is a max-heap priority queue. Duplicates are ignored, an existing
// map gives O(1) duplicate checking.
type Queue[T comparable] struct {
	items    []*item[T]
	existing map[T]struct{}
	// priorityFunc assigns each value its scheduling priority
	priorityFunc func(T) int
}

// New creates a queue ordered by priorityFunc, highest priority first.
func New[T comparable](priorityFunc func(T) int) *Queue[T] {
	q := &Queue[T]{
		existing:     make(map[T]struct{}),
		priorityFunc: priorityFunc,
	}
	heap.Init(q)
	return q
}

// Len returns the number of queued values
// for sort.Interface
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Less compares the priority of two items
// for sort.Interface
func (q *Queue[T]) Less(i, j int) bool {
	return q.items[i].priority > q.items[j].priority
}

// Swap swaps two items
// for sort.Interface
func (q *Queue[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// Push adds an item
// for heap.Interface
func (q *Queue[T]) Push(x any) {
	q.items = append(q.items, x.(*item[T]))
}

// Pop removes the last item
// for heap.Interface
func (q *Queue[T]) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return it
}

// Enqueue inserts value unless it is already queued.
func (q *Queue[T]) Enqueue(value T) {
	if _, exists := q.existing[value]; exists {
		return
	}
	heap.Push(q, &item[T]{value: value, priority: q.priorityFunc(value)})
	q.existing[value] = struct{}{}
}

// Dequeue removes and returns the highest-priority value.
func (q *Queue[T]) Dequeue() (T, bool) {
	if q.Len() == 0 {
		var zero T
		return zero, false
	}
	it := heap.Pop(q).(*item[T])
	delete(q.existing, it.value)
	return it.value, true
}
