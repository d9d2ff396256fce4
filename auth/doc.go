// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity checks and id generation.

# Admin Keys

The administrative override (edit, delete, or settle any poll) is granted
by an HMAC-SHA256 key derived from the caller's wallet:

	adminKey := auth.GenerateAdminKey(wallet, salt)
	err := auth.ValidateAdminKey(wallet, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same wallet and salt always produce the same key, so nothing is stored.

# Wallets

Signing happens in the client's wallet. The service only checks that an
address is plausibly formed:

	err := auth.ValidateWallet(addr)

# ID Generation

Random hex IDs for poll records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
