// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		MarkVerified updates the user's status to isverified = true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, userID string) error

	/*
		UpdateLastLogin stamps the account's lastloginat column.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	UpdateLastLogin(context context.Context, userID string, at time.Time) error
}

// # Credential Data Access

// CredentialRepository defines the data access contract for issued
// credential commitments.
type CredentialRepository interface {

	/*
		Create persists a freshly issued credential commitment.

		Parameters:
		  - context: context.Context
		  - credential: *ZkCredential

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, credential *ZkCredential) error

	/*
		FindByCommitment returns the live (non-revoked, non-expired)
		credential matching the public commitment.

		Parameters:
		  - context: context.Context
		  - commitment: string

		Returns:
		  - *ZkCredential: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByCommitment(context context.Context, commitment string) (*ZkCredential, error)

	/*
		Revoke marks a credential as permanently unusable.

		Parameters:
		  - context: context.Context
		  - credentialID: string

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, credentialID string) error
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the data access contract for hashed
// refresh-token records.
type RefreshTokenRepository interface {

	/*
		Create persists the hash record for a freshly issued refresh token.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		FindActiveByUser returns every non-revoked, non-expired record for
		the user. Rotation matches the presented raw token against this set.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*RefreshToken: Live records, newest first
		  - error: Retrieval failures
	*/
	FindActiveByUser(context context.Context, userID string) ([]*RefreshToken, error)

	/*
		Revoke marks a single live record as permanently invalidated.

		The revocation is conditional: a record that is already revoked is
		not revoked "again". Rotation depends on this to stay single-use
		under concurrent presentations of the same token.

		Parameters:
		  - context: context.Context
		  - tokenID: string

		Returns:
		  - error: apperr.Unauthorized when the record was already spent,
		    or persistence failures
	*/
	Revoke(context context.Context, tokenID string) error

	/*
		RevokeAll revokes every active record belonging to the userID.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAll(context context.Context, userID string) error
}

// # Action Token Data Access

// ActionTokenRepository defines the data access contract for one-shot
// emailed tokens (verification and reset), stored selector-indexed with a
// hashed secret.
type ActionTokenRepository interface {

	/*
		Create persists a freshly issued action token record.

		Parameters:
		  - context: context.Context
		  - token: *ActionToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *ActionToken) error

	/*
		FindBySelector returns the record of the given kind matching the
		selector, consumed or not. The caller decides usability.

		Parameters:
		  - context: context.Context
		  - kind: string
		  - selector: string

		Returns:
		  - *ActionToken: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindBySelector(context context.Context, kind, selector string) (*ActionToken, error)

	/*
		Consume stamps the record's consumedat, making it permanently unusable.

		Parameters:
		  - context: context.Context
		  - tokenID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	Consume(context context.Context, tokenID string, at time.Time) error

	/*
		InvalidateOutstanding consumes every unconsumed record of the kind
		for the user, optionally sparing one (pass exceptID = "" to spare none).

		Parameters:
		  - context: context.Context
		  - userID: string
		  - kind: string
		  - exceptID: string

		Returns:
		  - error: Persistence failures
	*/
	InvalidateOutstanding(context context.Context, userID, kind, exceptID string) error
}

// # Proof Session Data Access

// ProofSessionRepository defines the data access contract for
// challenge/response proof sessions.
type ProofSessionRepository interface {

	/*
		Create persists a freshly minted pending session.

		Parameters:
		  - context: context.Context
		  - session: *ProofSession

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *ProofSession) error

	/*
		FindBySessionID returns the session with the external session identifier.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *ProofSession: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindBySessionID(context context.Context, sessionID string) (*ProofSession, error)

	/*
		MarkVerified transitions a pending session to verified, binding the
		credential owner and stamping verifiedat.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - userID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, sessionID, userID string, at time.Time) error
}

// # Subdomain Access Data Access

// SubdomainAccessRepository records which subdomains a user has authorized into.
type SubdomainAccessRepository interface {

	/*
		Upsert creates the (user, subdomain) row or refreshes its lastaccessat.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - subdomain: string

		Returns:
		  - error: Persistence failures
	*/
	Upsert(context context.Context, userID, subdomain string) error
}

// # Volatile Data Access

// AuthCodeStore defines the contract for single-use SSO authorization codes.
//
// Consume must be atomic: two concurrent presentations of the same code
// must never both succeed.
type AuthCodeStore interface {

	/*
		Create stores the grant under the code for a limited duration.

		Parameters:
		  - context: context.Context
		  - code: string
		  - grant: AuthCodeGrant
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, code string, grant AuthCodeGrant, ttl time.Duration) error

	/*
		Consume atomically retrieves and deletes the grant for the code.

		Parameters:
		  - context: context.Context
		  - code: string

		Returns:
		  - *AuthCodeGrant: The bound grant
		  - error: apperr.NotFound when absent, expired, or already consumed
	*/
	Consume(context context.Context, code string) (*AuthCodeGrant, error)
}
