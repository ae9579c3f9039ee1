// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/bureau-foundation/pathspace/lib/value"
)

// Notifier receives "a value may have appeared at path" signals.
type Notifier interface {
	Notify(path string)
}

// SubtreeNotifier is implemented by notifiers that can wake every
// waiter at or below a path in one call.
type SubtreeNotifier interface {
	NotifyUnder(prefix string)
}

// NotifyUnder wakes the waiters of n at or below prefix. Notifiers
// without subtree support receive a single Notify(prefix).
func NotifyUnder(n Notifier, prefix string) {
	if subtree, ok := n.(SubtreeNotifier); ok {
		subtree.NotifyUnder(prefix)
		return
	}
	n.Notify(prefix)
}

// Space is the store contract implemented by the tree and every
// decorator.
type Space interface {
	Notifier

	// Insert stores v at path. Failures are reported in the result,
	// never panicked.
	Insert(path string, v *value.Value) InsertReturn

	// Read returns the front value at path without removing it.
	Read(ctx context.Context, path string, want value.Type, opts Options) (*value.Value, error)

	// Take removes and returns the front value at path.
	Take(ctx context.Context, path string, want value.Type, opts Options) (*value.Value, error)

	// Visit walks the store depth-first without modifying it.
	Visit(ctx context.Context, visitor Visitor, opts VisitOptions) error

	// Shutdown releases blocked waiters and shuts down mounted stores.
	// It is idempotent.
	Shutdown()
}

// Mountable is implemented by stores that need to know where they are
// mounted. Attach is called with the parent's notifier and the mount
// path when the store is mounted, and with (nil, "") when it is
// unmounted.
type Mountable interface {
	Attach(parent Notifier, prefix string)
}

// spaceType is the identity requested to read or unmount a mounted
// store.
var spaceType = reflect.TypeFor[Space]()

// Forever, used as a timeout, waits without a deadline.
const Forever time.Duration = -1

// Options controls a read or take.
type Options struct {
	// Block waits for a value when none is present.
	Block bool
	// Timeout bounds a blocking wait. Zero allows a single attempt;
	// a negative value waits until the context ends or the store
	// shuts down.
	Timeout time.Duration
	// BypassCache skips the read cache entirely, including its
	// counters.
	BypassCache bool
	// DoPop turns a Read into a Take.
	DoPop bool
}

// Block returns Options for a blocking operation.
func Block(timeout time.Duration) Options {
	return Options{Block: true, Timeout: timeout}
}

// Retarget asks the store that owns the insert to re-issue it at Path,
// which is interpreted from that store's root. Value, when set,
// replaces the value being inserted.
type Retarget struct {
	Path  string
	Value *value.Value
}

// InsertReturn aggregates the outcome of an insert, which may touch
// many leaves when the path is a glob.
type InsertReturn struct {
	NbrValuesInserted   int
	NbrSpacesInserted   int
	NbrTasksInserted    int
	NbrValuesSuppressed int
	Errors              []error
	Retargets           []Retarget
}

// Merge folds other into r.
func (r *InsertReturn) Merge(other InsertReturn) {
	r.NbrValuesInserted += other.NbrValuesInserted
	r.NbrSpacesInserted += other.NbrSpacesInserted
	r.NbrTasksInserted += other.NbrTasksInserted
	r.NbrValuesSuppressed += other.NbrValuesSuppressed
	r.Errors = append(r.Errors, other.Errors...)
	r.Retargets = append(r.Retargets, other.Retargets...)
}

// AddError records a failed target.
func (r *InsertReturn) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// Inserted is the total number of values, spaces, and tasks stored.
func (r InsertReturn) Inserted() int {
	return r.NbrValuesInserted + r.NbrSpacesInserted + r.NbrTasksInserted
}

// Err joins every recorded error, or returns nil.
func (r InsertReturn) Err() error {
	return errors.Join(r.Errors...)
}

// Failed returns an InsertReturn holding only err.
func Failed(err error) InsertReturn {
	return InsertReturn{Errors: []error{err}}
}
