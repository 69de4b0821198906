// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// # Opaque Tokens

// HashToken produces the hex SHA-256 digest of an opaque token.
//
// Stored token records hold this digest only, never the raw value, so a
// database leak does not leak usable tokens.
func HashToken(rawToken string) string {
	digest := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(digest[:])
}

// HashMatches compares a raw token against a stored digest in constant time.
func HashMatches(rawToken, storedDigest string) bool {
	digest := HashToken(rawToken)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

// GenerateSecureToken returns a URL-safe random token of byteLength entropy bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// # Selector Tokens

// SelectorSecretSeparator splits the public selector from the secret half in
// a raw selector token.
const SelectorSecretSeparator = "."

// GenerateSelectorToken creates a two-part one-shot token.
//
// The raw value handed to the user is "<selector>.<secret>". Only the
// selector and the SHA-256 of the secret are stored, so consumption is an
// indexed lookup by selector followed by a constant-time digest compare —
// no linear scan over outstanding tokens, and still no raw token at rest.
func GenerateSelectorToken() (raw, selector, secretHash string, err error) {
	selector, err = GenerateSecureToken(9)
	if err != nil {
		return "", "", "", err
	}

	secret, err := GenerateSecureToken(32)
	if err != nil {
		return "", "", "", err
	}

	raw = selector + SelectorSecretSeparator + secret
	return raw, selector, HashToken(secret), nil
}

// SplitSelectorToken breaks a raw selector token into its two halves.
// ok is false when the value is not in "<selector>.<secret>" form.
func SplitSelectorToken(raw string) (selector, secret string, ok bool) {
	selector, secret, ok = strings.Cut(raw, SelectorSecretSeparator)
	if !ok || selector == "" || secret == "" {
		return "", "", false
	}
	return selector, secret, true
}
