// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package executor runs user operations optimistically.

Each operation validates its preconditions against the cache, applies a
command that bumps the mutation generation, and then persists: the ledger
first when one is active, then the remote store. If persisting fails the
command is rolled back, the failure is classified, and an *OpError is
returned. Precondition failures are plain sentinel errors and leave the
cache untouched.

Every persisted operation emits a submitting notification followed by a
confirmed or failed one.
*/
package executor
