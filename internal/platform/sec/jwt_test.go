// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodang/lucent/internal/platform/sec"
)

// signingKey is generated once; RSA keygen dominates the runtime otherwise.
var signingKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func newTokenService() *sec.TokenService {
	return sec.NewTokenServiceFromKey(signingKey, "lucent.app", 15*time.Minute, 7*24*time.Hour)
}

/*
TestGeneratePair_RoundTrip verifies that a freshly signed pair carries the
subject's claims through verification.
*/
func TestGeneratePair_RoundTrip(t *testing.T) {
	service := newTokenService()

	pair, err := service.GeneratePair(sec.PairSubject{
		UserID:    "user-1",
		Email:     "minh@lucent.app",
		Name:      "Minh Vo",
		Role:      "member",
		Subdomain: "billing",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), pair.RefreshExpiresAt, 5*time.Second)

	payload, err := service.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, "minh@lucent.app", payload.Email)
	assert.Equal(t, "Minh Vo", payload.Name)
	assert.Equal(t, "member", payload.Role)
	assert.Equal(t, "billing", payload.Subdomain)
	assert.Equal(t, sec.ClassAccess, payload.Class)
	assert.Equal(t, "lucent.app", payload.Issuer)
}

/*
TestVerify_ClassConfusion verifies that each class of token is rejected on
the other class's verification surface.
*/
func TestVerify_ClassConfusion(t *testing.T) {
	service := newTokenService()

	pair, err := service.GeneratePair(sec.PairSubject{UserID: "user-1", Email: "minh@lucent.app"})
	require.NoError(t, err)

	_, err = service.VerifyAccess(pair.RefreshToken)
	assert.Error(t, err)

	_, err = service.DecodeRefresh(pair.AccessToken)
	assert.Error(t, err)

	// Each token passes on its own surface
	_, err = service.VerifyAccess(pair.AccessToken)
	assert.NoError(t, err)
	_, err = service.DecodeRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

/*
TestVerify_WrongIssuer verifies that tokens minted under a different issuer
fail verification.
*/
func TestVerify_WrongIssuer(t *testing.T) {
	service := newTokenService()
	other := sec.NewTokenServiceFromKey(signingKey, "evil.example.com", 15*time.Minute, time.Hour)

	pair, err := other.GeneratePair(sec.PairSubject{UserID: "user-1", Email: "minh@lucent.app"})
	require.NoError(t, err)

	_, err = service.VerifyAccess(pair.AccessToken)
	assert.Error(t, err)
}

/*
TestVerify_WrongKey verifies that tokens signed by a foreign key are rejected
even with matching issuer and claims.
*/
func TestVerify_WrongKey(t *testing.T) {
	service := newTokenService()

	foreignKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forger := sec.NewTokenServiceFromKey(foreignKey, "lucent.app", 15*time.Minute, time.Hour)

	pair, err := forger.GeneratePair(sec.PairSubject{UserID: "user-1", Email: "minh@lucent.app"})
	require.NoError(t, err)

	_, err = service.VerifyAccess(pair.AccessToken)
	assert.Error(t, err)
}

/*
TestVerify_ExpiredToken verifies that an expired access token is rejected.
*/
func TestVerify_ExpiredToken(t *testing.T) {
	service := sec.NewTokenServiceFromKey(signingKey, "lucent.app", -time.Minute, time.Hour)

	pair, err := service.GeneratePair(sec.PairSubject{UserID: "user-1", Email: "minh@lucent.app"})
	require.NoError(t, err)

	_, err = service.VerifyAccess(pair.AccessToken)
	assert.Error(t, err)
}

/*
TestVerify_Garbage verifies the malformed-input paths.
*/
func TestVerify_Garbage(t *testing.T) {
	service := newTokenService()

	for _, input := range []string{"", "garbage", "a.b.c"} {
		_, err := service.VerifyAccess(input)
		assert.Error(t, err, "input %q should fail", input)
	}
}

/*
TestKeyID_StableAndPublished verifies the kid fingerprint is deterministic
for a key and surfaces in the JWKS document.
*/
func TestKeyID_StableAndPublished(t *testing.T) {
	service := newTokenService()
	again := newTokenService()

	require.NotEmpty(t, service.KeyID())
	assert.Equal(t, service.KeyID(), again.KeyID())

	keySet := service.JWKS()
	require.Len(t, keySet.Keys, 1)
	key := keySet.Keys[0]
	assert.Equal(t, service.KeyID(), key.KeyID)
	assert.Equal(t, "RS256", key.Algorithm)
	assert.Equal(t, "sig", key.Use)
	assert.True(t, key.IsPublic(), "JWKS must never carry private material")
}
