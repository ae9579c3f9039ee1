// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for goroutine handoffs.
//
// [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout safety valve so that a test blocked on a store
// operation fails with a message instead of hanging the whole run.
// [RequireNoReceive] asserts the opposite: that a blocking operation
// is still parked.
//
// These are the only helpers that use real wall-clock timeouts.
// Deadline behavior inside the store is tested with clock.Fake.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no pathspace-internal dependencies.
package testutil
