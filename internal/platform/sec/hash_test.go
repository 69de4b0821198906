// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodang/lucent/internal/platform/sec"
)

/*
TestPasswordHash_RoundTrip verifies hashing and comparison behavior.
*/
func TestPasswordHash_RoundTrip(t *testing.T) {
	hash, err := sec.HashPassword("correct-horse-9")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct-horse-9", hash)

	assert.True(t, sec.CheckPasswordHash("correct-horse-9", hash))
	assert.False(t, sec.CheckPasswordHash("wrong", hash))
	assert.False(t, sec.CheckPasswordHash("correct-horse-9", "not-a-bcrypt-hash"))
}

/*
TestHashToken verifies the digest is deterministic and that matching is
digest-based, not substring-based.
*/
func TestHashToken(t *testing.T) {
	digest := sec.HashToken("opaque-value")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, sec.HashToken("opaque-value"))
	assert.NotEqual(t, digest, sec.HashToken("opaque-valu"))

	assert.True(t, sec.HashMatches("opaque-value", digest))
	assert.False(t, sec.HashMatches("other", digest))
	assert.False(t, sec.HashMatches("opaque-value", digest[:32]))
}

/*
TestGenerateSecureToken verifies length, URL-safety, and uniqueness.
*/
func TestGenerateSecureToken(t *testing.T) {
	token, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	// 32 bytes base64url without padding is 43 characters
	assert.Len(t, token, 43)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	other, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

/*
TestSelectorToken_RoundTrip verifies the selector/secret split contract: the
raw value splits back into its halves and the stored digest matches only the
secret half.
*/
func TestSelectorToken_RoundTrip(t *testing.T) {
	raw, selector, secretHash, err := sec.GenerateSelectorToken()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(raw, selector+sec.SelectorSecretSeparator))

	gotSelector, gotSecret, ok := sec.SplitSelectorToken(raw)
	require.True(t, ok)
	assert.Equal(t, selector, gotSelector)
	assert.True(t, sec.HashMatches(gotSecret, secretHash))

	// The selector half must never match the secret digest
	assert.False(t, sec.HashMatches(gotSelector, secretHash))
}

/*
TestSplitSelectorToken_Malformed verifies rejection of values that are not in
two-part form.
*/
func TestSplitSelectorToken_Malformed(t *testing.T) {
	for _, input := range []string{"", "nodot", ".leading", "trailing.", "."} {
		_, _, ok := sec.SplitSelectorToken(input)
		assert.False(t, ok, "input %q should be rejected", input)
	}

	// Extra separators stay inside the secret half
	selector, secret, ok := sec.SplitSelectorToken("sel.sec.ret")
	require.True(t, ok)
	assert.Equal(t, "sel", selector)
	assert.Equal(t, "sec.ret", secret)
}
