// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

/*
Package identity implements the authentication and session core of the
Lucent platform.

It defines the domain entities (User, ZkCredential, ProofSession,
RefreshToken, ActionToken) and the flows over them: password registration
and login, rotating token pairs, email-verification and password-reset
token lifecycles, commitment/challenge proof sessions, and the
cross-subdomain SSO authorization-code exchange.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies; storage is reached only through the repository
interfaces in store.go, and every expected failure is returned as an
[apperr.AppError] value — never a panic.
*/
package identity

import (
	"strings"
	"time"

	"github.com/minhvodang/lucent/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the Lucent platform.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	// PasswordHash is empty for accounts provisioned without a password.
	PasswordHash string `json:"-"`

	// CredentialHash is the commitment-engine digest derived at registration.
	CredentialHash string `json:"-"`

	Role        sec.UserRole `json:"role"`
	IsVerified  bool         `json:"is_verified"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DisplayName joins the name parts for token claims and email salutations.
func (user *User) DisplayName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// Profile is the minimal user projection returned by SSO exchange.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// Profile projects the public subset of the user record.
func (user *User) Profile() Profile {
	return Profile{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.DisplayName(),
		IsVerified: user.IsVerified,
	}
}

// ZkCredential is one issued credential commitment.
//
// Created at registration and consulted — never re-derived — during
// proof-session verification. Revocable independently of the user.
type ZkCredential struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	CredentialType   string            `json:"credential_type"`
	PublicCommitment string            `json:"public_commitment"`
	CredentialHash   string            `json:"-"`
	IssuedAt         time.Time         `json:"issued_at"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	IsRevoked        bool              `json:"is_revoked"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// CredentialTypePassword tags commitments derived from password+email.
const CredentialTypePassword = "password_derived"

// ProofSession is a short-lived server-side challenge record.
//
// Sessions are minted anonymous (no user binding) and transition exactly
// once, from pending to verified; a terminal or expired session is never
// revived.
type ProofSession struct {
	ID string `json:"-"`

	// SessionID is the externally-visible identifier, the only value
	// handed to the caller.
	SessionID string `json:"session_id"`

	// UserID is empty until verification binds the credential owner.
	UserID string `json:"user_id,omitempty"`

	Challenge  string     `json:"challenge"`
	ProofType  string     `json:"proof_type"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Proof session statuses.
const (
	ProofStatusPending  = "pending"
	ProofStatusVerified = "verified"
)

// ProofTypeCommitment is the challenge/response proof type.
const ProofTypeCommitment = "credential_commitment"

// RefreshToken is the hash-at-rest record backing one issued refresh token.
//
// Rows are never deleted while in audit scope; rotation and revocation only
// flip IsRevoked.
type RefreshToken struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	TokenHash string `json:"-"`

	// Subdomain scopes SSO-issued chains; empty for first-party logins.
	Subdomain string `json:"subdomain,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionToken is a one-shot emailed token (email verification or password
// reset) stored as selector + secret hash.
//
// ConsumedAt nil means still usable; a consumed or expired token is
// permanently unusable even if presented again.
type ActionToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Kind       string     `json:"kind"`
	Selector   string     `json:"-"`
	SecretHash string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Action token kinds.
const (
	TokenKindVerification = "email_verification"
	TokenKindReset        = "password_reset"
)

// SubdomainAccess records that a user has authorized into a subdomain.
// Keyed by (user, subdomain); re-authorizing refreshes LastAccessAt.
type SubdomainAccess struct {
	UserID       string    `json:"user_id"`
	Subdomain    string    `json:"subdomain"`
	GrantedAt    time.Time `json:"granted_at"`
	LastAccessAt time.Time `json:"last_access_at"`
}

// AuthCodeGrant is the value bound to a single-use SSO authorization code.
type AuthCodeGrant struct {
	UserID    string `json:"user_id"`
	Subdomain string `json:"subdomain"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldToken       = "token"
	FieldNewPassword = "new_password"
	FieldSessionID   = "session_id"
	FieldCommitment  = "public_commitment"
	FieldProof       = "proof"
	FieldSubdomain   = "subdomain"
	FieldCallback    = "callback"
	FieldCode        = "code"
	FieldAccessToken = "access_token"
	FieldTokenType   = "token_type"
	FieldExpiresIn   = "expires_in"
	FieldMessage     = "message"
)
