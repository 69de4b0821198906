// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/mail"
	"github.com/minhvodang/lucent/internal/platform/sec"
	"github.com/minhvodang/lucent/internal/platform/validate"
	"github.com/minhvodang/lucent/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the signing contract the service depends on.
//
// It mirrors the surface of [sec.TokenService] so tests can substitute a
// deterministic implementation.
type TokenProvider interface {
	// GeneratePair signs a new access/refresh pair for the subject.
	GeneratePair(subject sec.PairSubject) (*sec.TokenPair, error)

	// VerifyAccess validates an access-class token.
	VerifyAccess(tokenString string) (*sec.TokenPayload, error)

	// DecodeRefresh validates a refresh-class token without consulting storage.
	DecodeRefresh(tokenString string) (*sec.TokenPayload, error)
}

// Service implements the identity and session management use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// rotation, or proof verification logic must be reviewed by the security team.
type Service struct {
	userRepository        UserRepository
	credentialRepository  CredentialRepository
	refreshRepository     RefreshTokenRepository
	actionTokenRepository ActionTokenRepository
	proofRepository       ProofSessionRepository
	subdomainRepository   SubdomainAccessRepository
	authCodeStore         AuthCodeStore
	tokenProvider         TokenProvider
	mailer                mail.Sender

	// trustedDomains is the SSO callback allow-list, lowercase hostnames.
	trustedDomains []string

	// now is injectable for tests.
	now func() time.Time
}

// Deps bundles the collaborators injected into [NewService].
type Deps struct {
	Users          UserRepository
	Credentials    CredentialRepository
	RefreshTokens  RefreshTokenRepository
	ActionTokens   ActionTokenRepository
	ProofSessions  ProofSessionRepository
	Subdomains     SubdomainAccessRepository
	AuthCodes      AuthCodeStore
	Tokens         TokenProvider
	Mailer         mail.Sender
	TrustedDomains []string
}

// NewService constructs a new identity [Service] with its dependencies.
//
// The service holds no package-level state; everything it touches arrives
// through this constructor, so multiple isolated instances can coexist in
// tests.
func NewService(deps Deps) *Service {
	return &Service{
		userRepository:        deps.Users,
		credentialRepository:  deps.Credentials,
		refreshRepository:     deps.RefreshTokens,
		actionTokenRepository: deps.ActionTokens,
		proofRepository:       deps.ProofSessions,
		subdomainRepository:   deps.Subdomains,
		authCodeStore:         deps.AuthCodes,
		tokenProvider:         deps.Tokens,
		mailer:                deps.Mailer,
		trustedDomains:        deps.TrustedDomains,
		now:                   time.Now,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterResult reports a completed enrollment.
type RegisterResult struct {
	User *User `json:"user"`

	// RequiresVerification is always true for password registrations; the
	// account cannot sign in until the emailed link is consumed.
	RequiresVerification bool `json:"requires_verification"`
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Deep-enrollment of a new member. Alongside the bcrypt password
hash it derives and stores the account's credential commitment, issues the
initial email-verification token, and triggers the verification email as a
fire-and-forget side effect.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *RegisterResult: Created entity, pending verification
  - error: Conflict (if email exists), validation, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*RegisterResult, error) {

	// Validate the enrollment input before any storage work.
	if err := validateRegisterInput(&input); err != nil {
		return nil, err
	}

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err := service.userRepository.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("identity_service_hash_failed: %w", err)
	}

	// Derive the credential commitment from the password-bound secret. The
	// salt travels in the credential metadata so a client can re-derive the
	// same commitment later.
	engine := sec.Commitments()
	salt, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("identity_service_salt_failed: %w", err)
	}

	secret := input.Password + input.Email
	commitment := engine.Commit(secret, salt)
	credentialHash := engine.CredentialHash(secret, salt)

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:             uuid.New(),
		Email:          input.Email,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		PasswordHash:   hashedPassword,
		CredentialHash: credentialHash,
		Role:           sec.RoleMember,
		IsVerified:     false,
	}

	// Persist the user to the database
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("identity_service_register_failed: %w", err)
	}

	// Persist the issued credential commitment
	expiresAt := service.now().Add(CredentialTTL)
	credential := &ZkCredential{
		ID:               uuid.New(),
		UserID:           user.ID,
		CredentialType:   CredentialTypePassword,
		PublicCommitment: commitment,
		CredentialHash:   credentialHash,
		IssuedAt:         service.now(),
		ExpiresAt:        &expiresAt,
		Metadata:         map[string]string{"salt": salt},
	}
	if err := service.credentialRepository.Create(context, credential); err != nil {
		return nil, fmt.Errorf("identity_service_credential_failed: %w", err)
	}

	// Issue the verification token and trigger the email. Delivery is
	// fire-and-forget: a relay hiccup must not fail the registration.
	if err := service.issueActionToken(context, user, TokenKindVerification); err != nil {
		return nil, err
	}

	return &RegisterResult{User: user, RequiresVerification: true}, nil
}

// validateRegisterInput normalizes and checks the enrollment fields.
func validateRegisterInput(input *RegisterInput) error {
	input.Email = validate.NormalizeEmail(input.Email)
	input.FirstName = validate.NormalizeName(input.FirstName)
	input.LastName = validate.NormalizeName(input.LastName)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password).MinLen(FieldPassword, input.Password, PasswordMinLength)
	validator.MaxLen(FieldFirstName, input.FirstName, 100)
	validator.MaxLen(FieldLastName, input.LastName, 100)
	return validator.Err()
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthSession represents a successfully established user session.
type AuthSession struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
}

/*
Login validates user credentials and issues a rotated token pair.

Description: Verifies identity with a constant-time password comparison, then
gates on email verification. The password is always checked BEFORE the
verification gate so response shapes do not become an enumeration oracle for
unverified accounts.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *AuthSession: Transport-ready session identifiers
  - error: Unauthorized, VerificationRequired, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*AuthSession, error) {
	input.Email = validate.NormalizeEmail(input.Email)

	// Look up the account. Generic message to prevent enumeration.
	user, err := service.userRepository.FindByEmail(context, input.Email)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// Accounts provisioned without a password (proof-only) cannot password-login.
	if user.PasswordHash == "" {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// Verify password hash using constant-time comparison in bcrypt to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// Verification gate. Only reachable after a correct password, so the
	// distinct code cannot be used to probe arbitrary addresses.
	if !user.IsVerified {
		return nil, apperr.VerificationRequired()
	}

	// Stamp the successful login
	loginTime := service.now()
	if err := service.userRepository.UpdateLastLogin(context, user.ID, loginTime); err != nil {
		return nil, fmt.Errorf("identity_service_login_stamp_failed: %w", err)
	}
	user.LastLoginAt = &loginTime

	// Issue and persist the session pair
	return service.issueSession(context, user, "")
}

/*
Logout permanently revokes the presented refresh token's chain link.

Description: Idempotent; an already-revoked or unknown token still reports
success, the caller is signed out either way.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {

	// Decode to find the owning user; an undecodable token is already useless.
	payload, err := service.tokenProvider.DecodeRefresh(refreshToken)
	if err != nil {
		return nil
	}

	// Find the matching stored record among the user's live tokens.
	record, err := service.findLiveRefreshRecord(context, payload.UserID, refreshToken)
	if err != nil {
		return nil
	}

	// Revoke the matched record. A concurrent revocation losing the
	// conditional update is still a successful sign-out.
	if err := service.refreshRepository.Revoke(context, record.ID); err != nil {
		if apperr.IsAppError(err) {
			return nil
		}
		return fmt.Errorf("identity_service_logout_failed: %w", err)
	}

	return nil
}

/*
RevokeUserTokens revokes every live refresh token belonging to the user.

Description: Global sign-out across all devices and subdomains. Access tokens
already issued ride out their short lifetime; only refresh chains are cut.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch revocation failures
*/
func (service *Service) RevokeUserTokens(context context.Context, userID string) error {
	if err := service.refreshRepository.RevokeAll(context, userID); err != nil {
		return fmt.Errorf("identity_service_revoke_all_failed: %w", err)
	}
	return nil
}
