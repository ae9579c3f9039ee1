// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

// Queue is the insertion-ordered sequence of values at one leaf. It
// may hold values of different types; readers check the front.
//
// Queue is not safe for concurrent use. The owning leaf serializes
// access.
type Queue struct {
	items []*Value
}

func (q *Queue) Len() int { return len(q.items) }

// Push appends v.
func (q *Queue) Push(v *Value) { q.items = append(q.items, v) }

// Front returns the oldest value, or nil when empty.
func (q *Queue) Front() *Value {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the oldest value, or nil when empty.
func (q *Queue) Pop() *Value {
	if len(q.items) == 0 {
		return nil
	}
	front := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return front
}

// Values returns a copy of the queue contents, oldest first.
func (q *Queue) Values() []*Value {
	return append([]*Value(nil), q.items...)
}
