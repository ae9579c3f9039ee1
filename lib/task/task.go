// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

// State is a task lifecycle state.
type State int32

const (
	Created State = iota
	Started
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// Category determines when a task runs and on which goroutine.
type Category int

const (
	// Immediate tasks are scheduled on insert.
	Immediate Category = iota
	// Lazy tasks are scheduled by the first read that reaches them.
	Lazy
	// MainThread tasks are scheduled on insert and run only on the
	// executor's pinned goroutine.
	MainThread
)

func (c Category) String() string {
	switch c {
	case Immediate:
		return "immediate"
	case Lazy:
		return "lazy"
	case MainThread:
		return "main_thread"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Func is the work a task performs.
type Func func(ctx context.Context) (any, error)

// Task is a deferred computation with a declared result type.
type Task struct {
	ID string

	category   Category
	resultType reflect.Type
	fn         Func
	state      atomic.Int32
	done       chan struct{}

	mu     sync.Mutex
	result any
	err    error
	hooks  []func()
}

// New creates a task in the Created state. resultType is the type
// readers must request to observe the result.
func New(category Category, resultType reflect.Type, fn Func) *Task {
	return &Task{
		ID:         uuid.NewString(),
		category:   category,
		resultType: resultType,
		fn:         fn,
		done:       make(chan struct{}),
	}
}

// Category returns the task's category.
func (t *Task) Category() Category { return t.category }

// ResultType returns the declared result type.
func (t *Task) ResultType() reflect.Type { return t.resultType }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// TryStart moves Created to Started. It returns false if the task was
// already started by someone else.
func (t *Task) TryStart() bool {
	return t.state.CompareAndSwap(int32(Created), int32(Started))
}

// TransitionToRunning moves Started to Running.
func (t *Task) TransitionToRunning() bool {
	return t.state.CompareAndSwap(int32(Started), int32(Running))
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the outcome of a terminal task. Before that it
// returns a NoObjectFound error.
func (t *Task) Result() (any, error) {
	if !t.State().Terminal() {
		return nil, spaceerr.New(spaceerr.NoObjectFound, "task result not ready")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// OnComplete registers fn to run once the task is terminal. If it
// already is, fn runs immediately on the calling goroutine.
func (t *Task) OnComplete(fn func()) {
	t.mu.Lock()
	if !t.State().Terminal() {
		t.hooks = append(t.hooks, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Run executes a started task. It is a no-op unless the task is in the
// Started state, so a task runs at most once.
func (t *Task) Run(ctx context.Context) {
	if !t.TransitionToRunning() {
		return
	}

	var result any
	var err error
	func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = spaceerr.Newf(spaceerr.TaskFailed, "task %s panicked: %v", t.ID, recovered)
			}
		}()
		result, err = t.fn(ctx)
	}()

	if err == nil && t.resultType != nil {
		switch {
		case result == nil:
			result = reflect.Zero(t.resultType).Interface()
		case !reflect.TypeOf(result).AssignableTo(t.resultType):
			err = spaceerr.Newf(spaceerr.TypeMismatch, "task %s returned %T, declared %v", t.ID, result, t.resultType)
		}
	}
	t.finish(result, err)
}

// Fail moves a non-terminal task to Failed with err.
func (t *Task) Fail(err error) {
	t.finish(nil, err)
}

func (t *Task) finish(result any, err error) {
	t.mu.Lock()
	current := t.State()
	if current.Terminal() {
		t.mu.Unlock()
		return
	}
	next := Completed
	if err != nil {
		next = Failed
		if !spaceerr.Is(err, spaceerr.TaskFailed) && !spaceerr.Is(err, spaceerr.TypeMismatch) {
			err = spaceerr.Newf(spaceerr.TaskFailed, "task %s: %v", t.ID, err)
		}
	}
	t.result = result
	t.err = err
	t.state.Store(int32(next))
	hooks := t.hooks
	t.hooks = nil
	close(t.done)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// Schedule starts t on exec according to its category. Tasks that were
// already started are left alone. A submission failure fails the task.
func Schedule(ctx context.Context, exec Executor, t *Task) {
	if !t.TryStart() {
		return
	}
	work := func() { t.Run(ctx) }

	var err error
	if t.category == MainThread {
		err = exec.SubmitMain(work)
	} else {
		err = exec.Submit(work)
	}
	if err != nil {
		t.Fail(err)
	}
}
