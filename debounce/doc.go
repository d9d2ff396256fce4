// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package debounce provides a trailing-edge debouncer shared by every
// realtime change handler.
package debounce
