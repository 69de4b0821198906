// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodang/lucent/internal/identity"
	"github.com/minhvodang/lucent/internal/platform/apperr"
)

/*
TestRegister_CreatesAccountCredentialAndEmail checks that enrollment persists
the account, derives a credential commitment, and emails a verification link.
*/
func TestRegister_CreatesAccountCredentialAndEmail(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	result, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	require.NotNil(t, result.User)

	assert.True(t, result.RequiresVerification)
	assert.False(t, result.User.IsVerified)
	assert.NotEmpty(t, result.User.ID)
	assert.NotEmpty(t, result.User.PasswordHash)
	assert.NotEqual(t, "correct-horse-9", result.User.PasswordHash)
	assert.NotEmpty(t, result.User.CredentialHash)

	// One credential commitment was issued for the account
	assert.Len(t, fixture.credentials.credentials, 1)
	for _, credential := range fixture.credentials.credentials {
		assert.Equal(t, result.User.ID, credential.UserID)
		assert.Equal(t, identity.CredentialTypePassword, credential.CredentialType)
		assert.NotEmpty(t, credential.PublicCommitment)
		assert.NotEmpty(t, credential.Metadata["salt"])
	}

	// The verification email carried a raw token
	assert.NotEmpty(t, fixture.mailer.verificationTokens["minh@lucent.app"])
}

/*
TestRegister_DuplicateEmail checks the Conflict path.
*/
func TestRegister_DuplicateEmail(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	_, err = fixture.register(ctx, "minh@lucent.app", "another-pass-1")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "CONFLICT"))
}

/*
TestRegister_Validation checks that weak passwords and malformed emails are
rejected before any storage work.
*/
func TestRegister_Validation(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"short_password", "minh@lucent.app", "short"},
		{"bad_email", "not-an-email", "correct-horse-9"},
		{"empty_email", "", "correct-horse-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.register(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, "VALIDATION_ERROR"))
			assert.Empty(t, fixture.users.users)
		})
	}
}

/*
TestLogin_UnverifiedGate checks the ordering of the login checks: a wrong
password must fail generically even for an unverified account, and only a
correct password reaches the verification gate.
*/
func TestLogin_UnverifiedGate(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	// Wrong password: generic unauthorized, no verification hint
	_, err = fixture.service.Login(ctx, identity.LoginInput{Email: "minh@lucent.app", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))

	// Correct password: the distinct verification-required code
	_, err = fixture.service.Login(ctx, identity.LoginInput{Email: "minh@lucent.app", Password: "correct-horse-9"})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "VERIFICATION_REQUIRED"))
}

/*
TestLogin_UnknownEmail checks that unknown and wrong-password attempts are
indistinguishable.
*/
func TestLogin_UnknownEmail(t *testing.T) {
	fixture := newFixture()

	_, err := fixture.service.Login(context.Background(), identity.LoginInput{
		Email:    "ghost@lucent.app",
		Password: "whatever-123",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "UNAUTHORIZED", ae.Code)
	assert.Equal(t, "Invalid email or password", ae.Message)
}

/*
TestVerifyEmail_ActivatesAndSignsIn walks the full register → verify → login
scenario.
*/
func TestVerifyEmail_ActivatesAndSignsIn(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	rawToken := fixture.mailer.verificationTokens["minh@lucent.app"]
	require.NotEmpty(t, rawToken)

	// Redeeming the link activates the account and signs the user in
	session, err := fixture.service.VerifyEmail(ctx, rawToken)
	require.NoError(t, err)
	assert.True(t, session.User.IsVerified)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	// Password login now succeeds
	loginSession, err := fixture.service.Login(ctx, identity.LoginInput{
		Email:    "minh@lucent.app",
		Password: "correct-horse-9",
	})
	require.NoError(t, err)
	assert.NotNil(t, loginSession.User.LastLoginAt)
}

/*
TestVerifyEmail_TokenIsOneShot checks that a verification link dies on first
use and that mangled links fail the same way.
*/
func TestVerifyEmail_TokenIsOneShot(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	rawToken := fixture.mailer.verificationTokens["minh@lucent.app"]

	_, err = fixture.service.VerifyEmail(ctx, rawToken)
	require.NoError(t, err)

	// Second redemption fails
	_, err = fixture.service.VerifyEmail(ctx, rawToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))

	// Structurally broken tokens fail identically
	_, err = fixture.service.VerifyEmail(ctx, "no-separator-here")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))
}

/*
TestVerifyEmail_ExpiredToken checks that an emailed link past its deadline is
rejected even though it was never consumed.
*/
func TestVerifyEmail_ExpiredToken(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	rawToken := fixture.mailer.verificationTokens["minh@lucent.app"]

	// Age the stored record past its deadline
	for _, token := range fixture.actions.tokens {
		token.ExpiresAt = time.Now().Add(-time.Minute)
	}

	_, err = fixture.service.VerifyEmail(ctx, rawToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))
}

/*
TestResendVerification_InvalidatesPriorToken checks that only the newest
emailed link works.
*/
func TestResendVerification_InvalidatesPriorToken(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	firstToken := fixture.mailer.verificationTokens["minh@lucent.app"]

	require.NoError(t, fixture.service.ResendVerificationEmail(ctx, "minh@lucent.app"))
	secondToken := fixture.mailer.verificationTokens["minh@lucent.app"]
	require.NotEqual(t, firstToken, secondToken)

	// The first link is dead
	_, err = fixture.service.VerifyEmail(ctx, firstToken)
	require.Error(t, err)

	// The second link works
	_, err = fixture.service.VerifyEmail(ctx, secondToken)
	require.NoError(t, err)
}

/*
TestResendVerification_HidesExistence checks the enumeration-resistant
success for unknown addresses and the explicit conflict for verified ones.
*/
func TestResendVerification_HidesExistence(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	// Unknown address: silent success
	require.NoError(t, fixture.service.ResendVerificationEmail(ctx, "ghost@lucent.app"))

	// Verified account: explicit failure
	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	err = fixture.service.ResendVerificationEmail(ctx, "minh@lucent.app")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "CONFLICT"))
}

/*
TestResetPassword_FullFlow walks forgot-password end to end: the old
password stops working, every live refresh token is revoked, and the user
comes back signed in.
*/
func TestResetPassword_FullFlow(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	userID := session.User.ID

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "minh@lucent.app"))
	rawToken := fixture.mailer.resetTokens["minh@lucent.app"]
	require.NotEmpty(t, rawToken)

	newSession, err := fixture.service.ResetPassword(ctx, rawToken, "brand-new-pass-7")
	require.NoError(t, err)
	assert.NotEmpty(t, newSession.AccessToken)

	// The pre-reset refresh chain is dead; only the fresh one survives
	assert.Equal(t, 1, fixture.refresh.liveCount(userID))
	_, err = fixture.service.RefreshAccessToken(ctx, session.RefreshToken)
	require.Error(t, err)

	// Old password rejected, new one accepted
	_, err = fixture.service.Login(ctx, identity.LoginInput{Email: "minh@lucent.app", Password: "correct-horse-9"})
	require.Error(t, err)
	_, err = fixture.service.Login(ctx, identity.LoginInput{Email: "minh@lucent.app", Password: "brand-new-pass-7"})
	require.NoError(t, err)
}

/*
TestResetPassword_WeakPasswordLeavesTokenAlive checks that validation runs
before the token is burned.
*/
func TestResetPassword_WeakPasswordLeavesTokenAlive(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "minh@lucent.app"))
	rawToken := fixture.mailer.resetTokens["minh@lucent.app"]

	_, err = fixture.service.ResetPassword(ctx, rawToken, "short")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "VALIDATION_ERROR"))

	// The link still works with a valid password
	_, err = fixture.service.ResetPassword(ctx, rawToken, "brand-new-pass-7")
	require.NoError(t, err)
}

/*
TestRequestPasswordReset_HidesExistence checks silent success for unknown
addresses.
*/
func TestRequestPasswordReset_HidesExistence(t *testing.T) {
	fixture := newFixture()

	err := fixture.service.RequestPasswordReset(context.Background(), "ghost@lucent.app")
	require.NoError(t, err)
	assert.Empty(t, fixture.mailer.resetTokens)
}

/*
TestResetPassword_ActivatesUnverifiedAccount checks that redeeming a reset
link proves mailbox ownership.
*/
func TestResetPassword_ActivatesUnverifiedAccount(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "minh@lucent.app"))
	session, err := fixture.service.ResetPassword(ctx, fixture.mailer.resetTokens["minh@lucent.app"], "brand-new-pass-7")
	require.NoError(t, err)
	assert.True(t, session.User.IsVerified)
}
