// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"fmt"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/ctxutil"
	"github.com/minhvodang/lucent/internal/platform/sec"
	"github.com/minhvodang/lucent/internal/platform/validate"
	"github.com/minhvodang/lucent/pkg/uuid"
)

// # Token Issuance

/*
issueActionToken mints a one-shot emailed token of the given kind, retires
every outstanding sibling, and triggers the matching email.

Description: Only the newest emailed link for a (user, kind) ever works. The
raw token exists in the outbound email alone; storage holds the selector and
the secret's digest.

Parameters:
  - context: context.Context
  - user: *User
  - kind: string (TokenKindVerification or TokenKindReset)

Returns:
  - error: Generation or persistence failures (send failures are logged, not returned)
*/
func (service *Service) issueActionToken(context context.Context, user *User, kind string) error {

	// Generate the two-part token
	raw, selector, secretHash, err := sec.GenerateSelectorToken()
	if err != nil {
		return fmt.Errorf("identity_service_action_token_failed: %w", err)
	}

	ttl := VerificationTokenTTL
	if kind == TokenKindReset {
		ttl = ResetTokenTTL
	}

	// Persist the new record
	record := &ActionToken{
		ID:         uuid.New(),
		UserID:     user.ID,
		Kind:       kind,
		Selector:   selector,
		SecretHash: secretHash,
		ExpiresAt:  service.now().Add(ttl),
	}
	if err := service.actionTokenRepository.Create(context, record); err != nil {
		return fmt.Errorf("identity_service_action_token_persist_failed: %w", err)
	}

	// Retire every other outstanding token of this kind
	if err := service.actionTokenRepository.InvalidateOutstanding(context, user.ID, kind, record.ID); err != nil {
		return fmt.Errorf("identity_service_action_token_invalidate_failed: %w", err)
	}

	// Fire-and-forget delivery
	service.sendActionEmail(context, user.Email, kind, raw)
	return nil
}

// sendActionEmail dispatches the email for a freshly minted token. Failures
// are logged and swallowed so delivery can never alter the response shape.
func (service *Service) sendActionEmail(context context.Context, toEmail, kind, rawToken string) {
	var err error
	switch kind {
	case TokenKindReset:
		err = service.mailer.SendPasswordReset(context, toEmail, rawToken)
	default:
		err = service.mailer.SendVerification(context, toEmail, rawToken)
	}

	if err != nil {
		ctxutil.GetLogger(context).Error("identity_mail_send_failed",
			"kind", kind,
			"error", err,
		)
	}
}

/*
consumeActionToken resolves and burns a presented one-shot token.

Description: Selector-indexed lookup, constant-time secret compare, then the
usability checks (unconsumed, unexpired). Any failure yields the same
client-safe error so link probing learns nothing.

Parameters:
  - context: context.Context
  - kind: string
  - rawToken: string

Returns:
  - *ActionToken: The consumed record
  - error: apperr.Unauthorized for every invalid presentation
*/
func (service *Service) consumeActionToken(context context.Context, kind, rawToken string) (*ActionToken, error) {
	invalid := apperr.Unauthorized("Token is invalid or expired")

	// Split the presented value into its selector and secret halves
	selector, secret, ok := sec.SplitSelectorToken(rawToken)
	if !ok {
		return nil, invalid
	}

	// Indexed point lookup by (kind, selector)
	record, err := service.actionTokenRepository.FindBySelector(context, kind, selector)
	if err != nil {
		return nil, invalid
	}

	// Constant-time secret verification
	if !sec.HashMatches(secret, record.SecretHash) {
		return nil, invalid
	}

	// One-shot and expiry checks
	if record.ConsumedAt != nil {
		return nil, invalid
	}
	if !record.ExpiresAt.After(service.now()) {
		return nil, invalid
	}

	// Burn the token and its outstanding siblings
	if err := service.actionTokenRepository.Consume(context, record.ID, service.now()); err != nil {
		return nil, fmt.Errorf("identity_service_consume_token_failed: %w", err)
	}
	if err := service.actionTokenRepository.InvalidateOutstanding(context, record.UserID, kind, record.ID); err != nil {
		return nil, fmt.Errorf("identity_service_consume_invalidate_failed: %w", err)
	}

	return record, nil
}

// # Email Verification

/*
VerifyEmail confirms a user's email address using an emailed one-shot token.

Description: Consumes the token, activates the account, and signs the user in
directly — a successful verification should not bounce the user back to the
login form.

Parameters:
  - context: context.Context
  - rawToken: string

Returns:
  - *AuthSession: Fresh session for the activated account
  - error: Unauthorized for invalid links, or storage failures
*/
func (service *Service) VerifyEmail(context context.Context, rawToken string) (*AuthSession, error) {

	// Resolve and burn the token
	record, err := service.consumeActionToken(context, TokenKindVerification, rawToken)
	if err != nil {
		return nil, err
	}

	// Activate the account
	if err := service.userRepository.MarkVerified(context, record.UserID); err != nil {
		return nil, fmt.Errorf("identity_service_verify_email_failed: %w", err)
	}

	// Load the activated user and sign them in
	user, err := service.userRepository.FindByID(context, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_verify_email_load_failed: %w", err)
	}
	user.IsVerified = true

	return service.issueSession(context, user, "")
}

/*
ResendVerificationEmail issues a fresh verification token for an unverified
account.

Description: Existence-hiding for unknown addresses (silent success). An
already-verified account is the one explicit failure: the caller is plainly
holding a working account and re-verification would only confuse them.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Conflict when already verified, or persistence failures
*/
func (service *Service) ResendVerificationEmail(context context.Context, email string) error {
	email = validate.NormalizeEmail(email)

	// NOTE: We don't return NOT_FOUND if the email doesn't exist to prevent user enumeration.
	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		return nil
	}

	if user.IsVerified {
		return apperr.Conflict("Email is already verified")
	}

	return service.issueActionToken(context, user, TokenKindVerification)
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Issues a reset token and triggers the email. Always reports
success for unknown addresses to prevent user enumeration.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Generation or persistence failures only
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) error {
	email = validate.NormalizeEmail(email)

	// NOTE: We don't return NOT_FOUND if the email doesn't exist to prevent user enumeration.
	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		return nil
	}

	return service.issueActionToken(context, user, TokenKindReset)
}

/*
ResetPassword completes the forgot-password flow.

Description: Consumes the reset token, replaces the password hash, revokes
EVERY live refresh token (all devices sign out), and issues a fresh session.
Redeeming an emailed link also proves mailbox ownership, so an unverified
account is activated here as well.

Parameters:
  - context: context.Context
  - rawToken: string
  - newPassword: string

Returns:
  - *AuthSession: Fresh session under the new password
  - error: Validation, Unauthorized, or storage failures
*/
func (service *Service) ResetPassword(context context.Context, rawToken, newPassword string) (*AuthSession, error) {

	// The new password must meet the same floor as registration.
	validator := &validate.Validator{}
	validator.Required(FieldNewPassword, newPassword).MinLen(FieldNewPassword, newPassword, PasswordMinLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Resolve and burn the token
	record, err := service.consumeActionToken(context, TokenKindReset, rawToken)
	if err != nil {
		return nil, err
	}

	// Hash and store the replacement password
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("identity_service_reset_hash_failed: %w", err)
	}
	if err := service.userRepository.UpdatePassword(context, record.UserID, hashedPassword); err != nil {
		return nil, fmt.Errorf("identity_service_reset_update_failed: %w", err)
	}

	// Security Cleanup: revoke EVERY live refresh token for this user
	if err := service.refreshRepository.RevokeAll(context, record.UserID); err != nil {
		return nil, fmt.Errorf("identity_service_reset_revoke_failed: %w", err)
	}

	// Load the user for the fresh session
	user, err := service.userRepository.FindByID(context, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_reset_load_failed: %w", err)
	}

	// Redeeming the emailed link proves mailbox ownership
	if !user.IsVerified {
		if err := service.userRepository.MarkVerified(context, user.ID); err != nil {
			return nil, fmt.Errorf("identity_service_reset_verify_failed: %w", err)
		}
		user.IsVerified = true
	}

	return service.issueSession(context, user, "")
}
