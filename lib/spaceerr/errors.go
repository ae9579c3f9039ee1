// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spaceerr

import (
	"errors"
	"fmt"
)

// Code classifies a store failure.
type Code int

const (
	// UnknownError is the zero value. It is also what CodeOf reports
	// for errors that did not originate in a store.
	UnknownError Code = iota
	NoSuchPath
	NoObjectFound
	InvalidPath
	InvalidPathSubcomponent
	InvalidType
	TypeMismatch
	Timeout
	InvalidPermissions
	SerializationFunctionMissing
	UnserializableType
	MalformedInput
	NotFound
	NotSupported
	CapacityExceeded

	// TaskFailed reports that a deferred computation stored at the
	// path returned an error or panicked.
	TaskFailed

	// ShuttingDown reports an operation against a store (or a waiter
	// released by a store) that has been shut down.
	ShuttingDown
)

var codeNames = [...]string{
	UnknownError:                 "UnknownError",
	NoSuchPath:                   "NoSuchPath",
	NoObjectFound:                "NoObjectFound",
	InvalidPath:                  "InvalidPath",
	InvalidPathSubcomponent:      "InvalidPathSubcomponent",
	InvalidType:                  "InvalidType",
	TypeMismatch:                 "TypeMismatch",
	Timeout:                      "Timeout",
	InvalidPermissions:           "InvalidPermissions",
	SerializationFunctionMissing: "SerializationFunctionMissing",
	UnserializableType:           "UnserializableType",
	MalformedInput:               "MalformedInput",
	NotFound:                     "NotFound",
	NotSupported:                 "NotSupported",
	CapacityExceeded:             "CapacityExceeded",
	TaskFailed:                   "TaskFailed",
	ShuttingDown:                 "ShuttingDown",
}

// String returns the taxonomy name of the code.
func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a store failure with a code and an optional human-readable
// message. Callers can use errors.As to extract it:
//
//	var spaceErr *spaceerr.Error
//	if errors.As(err, &spaceErr) && spaceErr.Code == spaceerr.TypeMismatch { ... }
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ":" + e.Message
}

// Is reports whether target is an *Error with the same code. Messages
// are not compared, so errors.Is(err, ErrTimeout) matches any timeout.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoSuchPath                   = &Error{Code: NoSuchPath}
	ErrNoObjectFound                = &Error{Code: NoObjectFound}
	ErrInvalidPath                  = &Error{Code: InvalidPath}
	ErrInvalidPathSubcomponent      = &Error{Code: InvalidPathSubcomponent}
	ErrInvalidType                  = &Error{Code: InvalidType}
	ErrTypeMismatch                 = &Error{Code: TypeMismatch}
	ErrTimeout                      = &Error{Code: Timeout}
	ErrInvalidPermissions           = &Error{Code: InvalidPermissions}
	ErrSerializationFunctionMissing = &Error{Code: SerializationFunctionMissing}
	ErrUnserializableType           = &Error{Code: UnserializableType}
	ErrMalformedInput               = &Error{Code: MalformedInput}
	ErrNotFound                     = &Error{Code: NotFound}
	ErrNotSupported                 = &Error{Code: NotSupported}
	ErrCapacityExceeded             = &Error{Code: CapacityExceeded}
	ErrTaskFailed                   = &Error{Code: TaskFailed}
	ErrShuttingDown                 = &Error{Code: ShuttingDown}
)

// New returns an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or
// UnknownError if there is none.
func CodeOf(err error) Code {
	var spaceErr *Error
	if errors.As(err, &spaceErr) {
		return spaceErr.Code
	}
	return UnknownError
}

// Is checks whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var spaceErr *Error
	if errors.As(err, &spaceErr) {
		return spaceErr.Code == code
	}
	return false
}

// IsAbsent reports whether err means "nothing is there yet": the path
// does not exist or holds no value. Blocking reads wait on these and
// fail fast on everything else.
func IsAbsent(err error) bool {
	code := CodeOf(err)
	return code == NoSuchPath || code == NoObjectFound
}
