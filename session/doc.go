// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package session tracks the connected wallet and tells listeners when it
// changes. Signing and wallet-connect flows live outside this service; a
// client reports the address it connected with.
package session
