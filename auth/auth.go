// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidWallet   = errors.New("invalid wallet address")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAdminKey derives the administrative override key for a wallet.
// It is deterministic, so nothing needs to be stored to verify it.
func GenerateAdminKey(wallet, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(wallet))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key belongs to the wallet
func ValidateAdminKey(wallet, adminKey, salt string) error {
	expected := GenerateAdminKey(wallet, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// base58 alphabet used by wallet addresses: no 0, O, I, or l
const base58Chars = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidateWallet checks that addr looks like a base58 wallet address of
// 32 to 44 characters. It does not decode the key.
func ValidateWallet(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return ErrInvalidWallet
	}
	for i := 0; i < len(addr); i++ {
		if strings.IndexByte(base58Chars, addr[i]) < 0 {
			return ErrInvalidWallet
		}
	}
	return nil
}
