// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"fmt"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
	"github.com/minhvodang/lucent/pkg/uuid"
)

// # Session Issuance

/*
issueSession signs a fresh access/refresh pair for the user and persists the
refresh token's hash record.

Description: The single choke point for minting sessions; login, refresh,
verification, reset, proof, and SSO flows all come through here so every
refresh token in existence has a matching revocable row.

Parameters:
  - context: context.Context
  - user: *User
  - subdomain: string (empty for first-party sessions)

Returns:
  - *AuthSession: Transport-ready session identifiers
  - error: Signing or persistence failures
*/
func (service *Service) issueSession(context context.Context, user *User, subdomain string) (*AuthSession, error) {

	// Sign the pair
	pair, err := service.tokenProvider.GeneratePair(sec.PairSubject{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Role:      string(user.Role),
		Subdomain: subdomain,
	})
	if err != nil {
		return nil, fmt.Errorf("identity_service_sign_pair_failed: %w", err)
	}

	// Persist the refresh token hash. The raw value lives only in the response.
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: sec.HashToken(pair.RefreshToken),
		Subdomain: subdomain,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := service.refreshRepository.Create(context, record); err != nil {
		return nil, fmt.Errorf("identity_service_refresh_record_failed: %w", err)
	}

	return &AuthSession{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshExpiresAt,
		User:                  user,
	}, nil
}

// # Rotation

/*
RefreshAccessToken implements the refresh token rotation mechanism.

Description: Verifies the signed refresh token, matches it against the user's
live stored hash records, revokes the matched record to prevent reuse (replay
mitigation), and issues a fresh rotated pair. The new pair inherits the
subdomain scope of the chain it extends.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *AuthSession: New session credentials
  - error: Unauthorized or storage failures
*/
func (service *Service) RefreshAccessToken(context context.Context, refreshToken string) (*AuthSession, error) {

	// Signature, expiry, and class check. A refresh token that fails any of
	// these never reaches storage.
	payload, err := service.tokenProvider.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// A structurally valid token must still match a live stored record.
	record, err := service.findLiveRefreshRecord(context, payload.UserID, refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Refresh token has been revoked")
	}

	// Rotation: revoke the old record BEFORE issuing the replacement so the
	// presented token is single-use even if issuance fails. The revoke is
	// conditional; when a concurrent rotation already spent this record,
	// exactly one of the racers gets past this line.
	if err := service.refreshRepository.Revoke(context, record.ID); err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Refresh token has been revoked")
		}
		return nil, fmt.Errorf("identity_service_rotation_revoke_failed: %w", err)
	}

	// Fetch the user to rebuild current claims (role or name may have changed).
	user, err := service.userRepository.FindByID(context, payload.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("User not found or suspended")
	}

	return service.issueSession(context, user, record.Subdomain)
}

/*
VerifyAccessToken validates an access token and returns its payload.

Description: Pure signature/claims verification; no storage round-trip.
Middleware calls this on every authenticated request.

Parameters:
  - tokenString: string

Returns:
  - *sec.TokenPayload: Verified claims
  - error: Unauthorized on any verification failure
*/
func (service *Service) VerifyAccessToken(tokenString string) (*sec.TokenPayload, error) {
	payload, err := service.tokenProvider.VerifyAccess(tokenString)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return payload, nil
}

// VerifyAccess satisfies [middleware.TokenVerifier].
func (service *Service) VerifyAccess(tokenString string) (*sec.TokenPayload, error) {
	return service.VerifyAccessToken(tokenString)
}

/*
findLiveRefreshRecord locates the stored hash record matching a raw refresh
token among the user's active records.

Description: The scan is bounded by the user's live session count (typically
single digits) and each candidate is compared in constant time against the
presented token's digest.

Parameters:
  - context: context.Context
  - userID: string
  - refreshToken: string

Returns:
  - *RefreshToken: The matching live record
  - error: apperr.NotFound when no live record matches
*/
func (service *Service) findLiveRefreshRecord(context context.Context, userID, refreshToken string) (*RefreshToken, error) {
	records, err := service.refreshRepository.FindActiveByUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_find_refresh_failed: %w", err)
	}

	for _, record := range records {
		if sec.HashMatches(refreshToken, record.TokenHash) {
			return record, nil
		}
	}

	return nil, apperr.NotFound("Refresh token record")
}
