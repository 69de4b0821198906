// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import "time"

// # Token Lifetimes
//
// Every time-bounded artifact in the identity domain has its TTL pinned
// here so a reviewer can audit the full expiry surface in one place.
const (
	// AccessTokenTTL is the lifetime of a signed access token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the lifetime of a refresh token and its stored hash row.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// VerificationTokenTTL is the lifetime of an emailed verification link.
	VerificationTokenTTL = 24 * time.Hour

	// ResetTokenTTL is the lifetime of an emailed password-reset link.
	ResetTokenTTL = time.Hour

	// ProofSessionTTL is the window a challenge stays answerable.
	ProofSessionTTL = 5 * time.Minute

	// AuthCodeTTL is the lifetime of a single-use SSO authorization code.
	AuthCodeTTL = 60 * time.Second

	// CredentialTTL is how long an issued credential commitment stays valid.
	CredentialTTL = 365 * 24 * time.Hour
)

// # Input Constraints
const (
	// PasswordMinLength is the floor enforced at registration and reset.
	PasswordMinLength = 8

	// ChallengeByteLength sizes the random proof-session challenge.
	ChallengeByteLength = 32

	// AuthCodeByteLength sizes the random SSO authorization code.
	AuthCodeByteLength = 32
)
