// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package errclass sorts failures from external layers into a small set
// of kinds, gives each a user-facing message, and retries the transient
// ones with exponential backoff for callers that opt in.
package errclass
