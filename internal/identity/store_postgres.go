// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

// PostgreSQL implementations of the identity repositories.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement the domain-defined interfaces in store.go using the
// [pgxpool.Pool] connection manager.
//
// # err Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new user record into the users.account table.

Description: Deep-persists account metadata, ensuring timestamps are initialized
if not provided. Duplicate emails surface as apperr.Conflict.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Conflict on duplicate email, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, firstname, lastname, passwordhash, credentialhash, role, isverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.CredentialHash,
		user.Role,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "postgres_user_repo_create")
	}

	return nil
}

const userColumns = `
	id, email, firstname, lastname, passwordhash, credentialhash,
	role, isverified, lastloginat, createdat, updatedat`

// scanUser hydrates one account row.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.CredentialHash,
		&user.Role,
		&user.IsVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

/*
FindByEmail retrieves a user record by their unique email address.

Description: Performs a lookup on the account table, filtering out soft-deleted users.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1 AND deletedat IS NULL`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found with this email")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}

	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Description: Primary key resolution for user accounts.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1 AND deletedat IS NULL`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1 AND deletedat IS NULL`

	_, err := repository.pool.Exec(context, query, userID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
MarkVerified updates the user's status to isverified = true.

Description: Post-verification activation of the account.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Database errors
*/
func (repository *PostgresUserRepository) MarkVerified(context context.Context, userID string) error {
	const query = "UPDATE users.account SET isverified = TRUE, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_mark_verified_failed: %w", err)
	}
	return nil
}

/*
UpdateLastLogin stamps the account's lastloginat column.

Parameters:
  - context: context.Context
  - userID: string
  - at: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, userID string, at time.Time) error {
	const query = "UPDATE users.account SET lastloginat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, at)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_last_login_failed: %w", err)
	}
	return nil
}

// # Credential Repository

// PostgresCredentialRepository implements the CredentialRepository interface.
type PostgresCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a new PostgreSQL implementation of CredentialRepository.
func NewCredentialRepository(pool *pgxpool.Pool) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

/*
Create persists a freshly issued credential commitment into users.credential.

Parameters:
  - context: context.Context
  - credential: *ZkCredential

Returns:
  - error: Storage failures
*/
func (repository *PostgresCredentialRepository) Create(context context.Context, credential *ZkCredential) error {
	const query = `
		INSERT INTO users.credential (
			id, userid, credentialtype, publiccommitment, credentialhash, issuedat, expiresat, isrevoked, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if credential.IssuedAt.IsZero() {
		credential.IssuedAt = time.Now()
	}

	metadata, err := json.Marshal(credential.Metadata)
	if err != nil {
		return fmt.Errorf("postgres_credential_repo_marshal_failed: %w", err)
	}

	_, err = repository.pool.Exec(context, query,
		credential.ID,
		credential.UserID,
		credential.CredentialType,
		credential.PublicCommitment,
		credential.CredentialHash,
		credential.IssuedAt,
		credential.ExpiresAt,
		credential.IsRevoked,
		metadata,
	)

	if err != nil {
		return fmt.Errorf("postgres_credential_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByCommitment retrieves the live credential matching the public commitment.

Description: Revoked and expired credentials are filtered in the query so the
caller only ever sees usable records.

Parameters:
  - context: context.Context
  - commitment: string

Returns:
  - *ZkCredential: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresCredentialRepository) FindByCommitment(context context.Context, commitment string) (*ZkCredential, error) {
	const query = `
		SELECT id, userid, credentialtype, publiccommitment, credentialhash, issuedat, expiresat, isrevoked, metadata
		FROM users.credential
		WHERE publiccommitment = $1
		  AND isrevoked = FALSE
		  AND (expiresat IS NULL OR expiresat > NOW())`

	credential := &ZkCredential{}
	var metadata []byte
	err := repository.pool.QueryRow(context, query, commitment).Scan(
		&credential.ID,
		&credential.UserID,
		&credential.CredentialType,
		&credential.PublicCommitment,
		&credential.CredentialHash,
		&credential.IssuedAt,
		&credential.ExpiresAt,
		&credential.IsRevoked,
		&metadata,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Credential not found or revoked")
		}
		return nil, fmt.Errorf("postgres_credential_repo_find_failed: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &credential.Metadata); err != nil {
			return nil, fmt.Errorf("postgres_credential_repo_unmarshal_failed: %w", err)
		}
	}

	return credential, nil
}

/*
Revoke marks a credential as permanently unusable.

Parameters:
  - context: context.Context
  - credentialID: string

Returns:
  - error: Revocation failures
*/
func (repository *PostgresCredentialRepository) Revoke(context context.Context, credentialID string) error {
	const query = "UPDATE users.credential SET isrevoked = TRUE WHERE id = $1"
	_, err := repository.pool.Exec(context, query, credentialID)
	if err != nil {
		return fmt.Errorf("postgres_credential_repo_revoke_failed: %w", err)
	}
	return nil
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements the RefreshTokenRepository interface.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

/*
Create persists the hash record for a freshly issued refresh token into
users.refreshtoken.

Description: Only the SHA-256 digest of the raw token is stored; the raw
value exists solely in the HTTP response.

Parameters:
  - context: context.Context
  - token: *RefreshToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO users.refreshtoken (
			id, userid, tokenhash, subdomain, expiresat, isrevoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.Subdomain,
		token.ExpiresAt,
		token.IsRevoked,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindActiveByUser retrieves every non-revoked, non-expired record for the user.

Description: Bounded per-user scan backing rotation; newest rows first so the
common case (rotating the latest token) matches early.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*RefreshToken: Live records
  - error: Execution errors
*/
func (repository *PostgresRefreshTokenRepository) FindActiveByUser(context context.Context, userID string) ([]*RefreshToken, error) {
	const query = `
		SELECT id, userid, tokenhash, subdomain, expiresat, isrevoked, createdat
		FROM users.refreshtoken
		WHERE userid = $1 AND isrevoked = FALSE AND expiresat > NOW()
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_refresh_repo_find_active_failed: %w", err)
	}
	defer rows.Close()

	var tokens []*RefreshToken
	for rows.Next() {
		token := &RefreshToken{}
		err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.TokenHash,
			&token.Subdomain,
			&token.ExpiresAt,
			&token.IsRevoked,
			&token.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_refresh_repo_scan_failed: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_refresh_repo_rows_failed: %w", err)
	}

	return tokens, nil
}

/*
Revoke marks a single live record as permanently invalidated.

Description: The WHERE clause re-checks isrevoked so two concurrent rotations
of the same token can never both spend the same record.

Parameters:
  - context: context.Context
  - tokenID: string

Returns:
  - error: apperr.Unauthorized when the record was already revoked, or execution errors
*/
func (repository *PostgresRefreshTokenRepository) Revoke(context context.Context, tokenID string) error {
	const query = "UPDATE users.refreshtoken SET isrevoked = TRUE WHERE id = $1 AND isrevoked = FALSE"

	tag, err := repository.pool.Exec(context, query, tokenID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.Unauthorized("Refresh token has been revoked")
	}

	return nil
}

/*
RevokeAll marks all active records for a user as revoked.

Description: Security nuking of every live refresh chain for a user, used
after password resets and explicit global sign-out.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeAll(context context.Context, userID string) error {
	const query = "UPDATE users.refreshtoken SET isrevoked = TRUE WHERE userid = $1 AND isrevoked = FALSE"
	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_all_failed: %w", err)
	}
	return nil
}

// # Action Token Repository

// PostgresActionTokenRepository implements the ActionTokenRepository interface.
type PostgresActionTokenRepository struct {
	pool *pgxpool.Pool
}

// NewActionTokenRepository creates a new PostgreSQL implementation of ActionTokenRepository.
func NewActionTokenRepository(pool *pgxpool.Pool) *PostgresActionTokenRepository {
	return &PostgresActionTokenRepository{pool: pool}
}

/*
Create persists a freshly issued action token into users.actiontoken.

Parameters:
  - context: context.Context
  - token: *ActionToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresActionTokenRepository) Create(context context.Context, token *ActionToken) error {
	const query = `
		INSERT INTO users.actiontoken (
			id, userid, kind, selector, secrethash, expiresat, consumedat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.Kind,
		token.Selector,
		token.SecretHash,
		token.ExpiresAt,
		token.ConsumedAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_action_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindBySelector retrieves the record of the given kind matching the selector.

Description: Indexed point lookup on (kind, selector). The secret half of the
presented token is verified by the caller against the stored hash, never here.

Parameters:
  - context: context.Context
  - kind: string
  - selector: string

Returns:
  - *ActionToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresActionTokenRepository) FindBySelector(context context.Context, kind, selector string) (*ActionToken, error) {
	const query = `
		SELECT id, userid, kind, selector, secrethash, expiresat, consumedat, createdat
		FROM users.actiontoken
		WHERE kind = $1 AND selector = $2`

	token := &ActionToken{}
	err := repository.pool.QueryRow(context, query, kind, selector).Scan(
		&token.ID,
		&token.UserID,
		&token.Kind,
		&token.Selector,
		&token.SecretHash,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Token not found")
		}
		return nil, fmt.Errorf("postgres_action_token_repo_find_failed: %w", err)
	}

	return token, nil
}

/*
Consume stamps the record's consumedat, making it permanently unusable.

Parameters:
  - context: context.Context
  - tokenID: string
  - at: time.Time

Returns:
  - error: Execution errors
*/
func (repository *PostgresActionTokenRepository) Consume(context context.Context, tokenID string, at time.Time) error {
	const query = "UPDATE users.actiontoken SET consumedat = $2 WHERE id = $1 AND consumedat IS NULL"
	_, err := repository.pool.Exec(context, query, tokenID, at)
	if err != nil {
		return fmt.Errorf("postgres_action_token_repo_consume_failed: %w", err)
	}
	return nil
}

/*
InvalidateOutstanding consumes every unconsumed record of the kind for the
user, optionally sparing one.

Description: Issuing a fresh token (or consuming one) retires all of its
siblings so only the newest emailed link ever works.

Parameters:
  - context: context.Context
  - userID: string
  - kind: string
  - exceptID: string

Returns:
  - error: Batch invalidation failures
*/
func (repository *PostgresActionTokenRepository) InvalidateOutstanding(context context.Context, userID, kind, exceptID string) error {
	const query = `
		UPDATE users.actiontoken
		SET consumedat = NOW()
		WHERE userid = $1 AND kind = $2 AND consumedat IS NULL AND id != $3`

	_, err := repository.pool.Exec(context, query, userID, kind, exceptID)
	if err != nil {
		return fmt.Errorf("postgres_action_token_repo_invalidate_failed: %w", err)
	}
	return nil
}

// # Proof Session Repository

// PostgresProofSessionRepository implements the ProofSessionRepository interface.
type PostgresProofSessionRepository struct {
	pool *pgxpool.Pool
}

// NewProofSessionRepository creates a new PostgreSQL implementation of ProofSessionRepository.
func NewProofSessionRepository(pool *pgxpool.Pool) *PostgresProofSessionRepository {
	return &PostgresProofSessionRepository{pool: pool}
}

/*
Create persists a freshly minted pending session into users.proofsession.

Description: Sessions are created anonymous; userid stays NULL until a
successful verification binds the credential owner.

Parameters:
  - context: context.Context
  - session: *ProofSession

Returns:
  - error: Storage failures
*/
func (repository *PostgresProofSessionRepository) Create(context context.Context, session *ProofSession) error {
	const query = `
		INSERT INTO users.proofsession (
			id, sessionid, userid, challenge, prooftype, status, expiresat, verifiedat, createdat
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.SessionID,
		session.UserID,
		session.Challenge,
		session.ProofType,
		session.Status,
		session.ExpiresAt,
		session.VerifiedAt,
		session.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_proof_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindBySessionID retrieves the session with the external session identifier.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *ProofSession: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresProofSessionRepository) FindBySessionID(context context.Context, sessionID string) (*ProofSession, error) {
	const query = `
		SELECT id, sessionid, COALESCE(userid, ''), challenge, prooftype, status, expiresat, verifiedat, createdat
		FROM users.proofsession
		WHERE sessionid = $1`

	session := &ProofSession{}
	err := repository.pool.QueryRow(context, query, sessionID).Scan(
		&session.ID,
		&session.SessionID,
		&session.UserID,
		&session.Challenge,
		&session.ProofType,
		&session.Status,
		&session.ExpiresAt,
		&session.VerifiedAt,
		&session.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Proof session not found")
		}
		return nil, fmt.Errorf("postgres_proof_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
MarkVerified transitions a pending session to verified.

Description: The WHERE clause re-checks the pending status so two concurrent
verifications can never both transition the same session.

Parameters:
  - context: context.Context
  - sessionID: string
  - userID: string
  - at: time.Time

Returns:
  - error: apperr.NotFound when the session was already consumed, or execution errors
*/
func (repository *PostgresProofSessionRepository) MarkVerified(context context.Context, sessionID, userID string, at time.Time) error {
	const query = `
		UPDATE users.proofsession
		SET status = $3, userid = $4, verifiedat = $5
		WHERE sessionid = $1 AND status = $2`

	tag, err := repository.pool.Exec(context, query, sessionID, ProofStatusPending, ProofStatusVerified, userID, at)
	if err != nil {
		return fmt.Errorf("postgres_proof_session_repo_mark_verified_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.Unauthorized("Proof session already used")
	}

	return nil
}

// # Subdomain Access Repository

// PostgresSubdomainAccessRepository implements the SubdomainAccessRepository interface.
type PostgresSubdomainAccessRepository struct {
	pool *pgxpool.Pool
}

// NewSubdomainAccessRepository creates a new PostgreSQL implementation of SubdomainAccessRepository.
func NewSubdomainAccessRepository(pool *pgxpool.Pool) *PostgresSubdomainAccessRepository {
	return &PostgresSubdomainAccessRepository{pool: pool}
}

/*
Upsert creates the (user, subdomain) row or refreshes its lastaccessat.

Parameters:
  - context: context.Context
  - userID: string
  - subdomain: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSubdomainAccessRepository) Upsert(context context.Context, userID, subdomain string) error {
	const query = `
		INSERT INTO users.subdomainaccess (userid, subdomain, grantedat, lastaccessat)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (userid, subdomain)
		DO UPDATE SET lastaccessat = NOW()`

	_, err := repository.pool.Exec(context, query, userID, subdomain)
	if err != nil {
		return fmt.Errorf("postgres_subdomain_access_repo_upsert_failed: %w", err)
	}
	return nil
}
