// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
	"github.com/minhvodang/lucent/internal/platform/validate"
)

// # Cross-Subdomain SSO
//
// An authenticated user on the apex app hops to a product subdomain via a
// short-lived single-use authorization code:
//
//  1. Authorize — validate the callback against the trusted-domain
//     allow-list, mint a subdomain-scoped session, record the access grant,
//     and hand back a redirect URL carrying only the code.
//  2. Exchange — the subdomain backend redeems the code (atomically,
//     exactly once) for a fresh token pair and a minimal profile.
//  3. Verify — any subdomain checks an access token and its scope without
//     a storage round-trip.

// SSOAuthorizeInput describes an authorization request from a signed-in user.
type SSOAuthorizeInput struct {
	UserID    string
	Subdomain string
	Callback  string
}

// SSOGrant is the outcome of a successful authorization.
type SSOGrant struct {
	// RedirectURL is the callback decorated with the code and subdomain.
	// Raw tokens never appear in a URL.
	RedirectURL string

	// Session is the subdomain-scoped pair minted alongside the code, set
	// by the transport as first-party cookies on the apex response.
	Session *AuthSession
}

/*
SSOAuthorize begins a cross-subdomain hop for an authenticated user.

Description: The callback host is checked against the trusted-domain
allow-list BEFORE any token or code is minted, so a rejected destination
leaves no artifacts behind. On success the user gets a subdomain-scoped
session, an access-grant row, and a 60-second single-use code embedded in
the redirect URL.

Parameters:
  - context: context.Context
  - input: SSOAuthorizeInput

Returns:
  - *SSOGrant: Redirect URL and scoped session
  - error: Validation, Forbidden, or storage failures
*/
func (service *Service) SSOAuthorize(context context.Context, input SSOAuthorizeInput) (*SSOGrant, error) {

	// Validate the request shape
	input.Subdomain = strings.ToLower(strings.TrimSpace(input.Subdomain))
	validator := &validate.Validator{}
	validator.Required(FieldSubdomain, input.Subdomain).Subdomain(FieldSubdomain, input.Subdomain)
	validator.Required(FieldCallback, input.Callback)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Allow-list gate. Nothing is minted for an untrusted destination.
	if err := service.checkCallbackAllowed(input.Callback); err != nil {
		return nil, err
	}

	// Load the authorizing user
	user, err := service.userRepository.FindByID(context, input.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("User not found or suspended")
	}

	// Mint the subdomain-scoped session
	session, err := service.issueSession(context, user, input.Subdomain)
	if err != nil {
		return nil, err
	}

	// Record the access grant
	if err := service.subdomainRepository.Upsert(context, user.ID, input.Subdomain); err != nil {
		return nil, fmt.Errorf("identity_service_sso_grant_failed: %w", err)
	}

	// Mint the single-use code
	code, err := sec.GenerateSecureToken(AuthCodeByteLength)
	if err != nil {
		return nil, fmt.Errorf("identity_service_sso_code_failed: %w", err)
	}
	grant := AuthCodeGrant{UserID: user.ID, Subdomain: input.Subdomain}
	if err := service.authCodeStore.Create(context, code, grant, AuthCodeTTL); err != nil {
		return nil, fmt.Errorf("identity_service_sso_code_store_failed: %w", err)
	}

	// Decorate the callback with code and subdomain
	redirect, err := buildRedirectURL(input.Callback, code, input.Subdomain)
	if err != nil {
		return nil, err
	}

	return &SSOGrant{RedirectURL: redirect, Session: session}, nil
}

/*
checkCallbackAllowed validates a callback URL against the trusted-domain
allow-list.

Description: A host is accepted when it equals a trusted domain exactly or
is a subdomain of one. Scheme must be https outside of localhost targets
used in development.

Parameters:
  - callback: string

Returns:
  - error: apperr.Forbidden for untrusted or malformed callbacks
*/
func (service *Service) checkCallbackAllowed(callback string) error {
	rejected := apperr.Forbidden("Callback URL is not on the trusted domain list")

	parsed, err := url.Parse(callback)
	if err != nil || parsed.Host == "" {
		return rejected
	}

	host := strings.ToLower(parsed.Hostname())
	if parsed.Scheme != "https" && host != "localhost" && host != "127.0.0.1" {
		return rejected
	}

	for _, trusted := range service.trustedDomains {
		if host == trusted || strings.HasSuffix(host, "."+trusted) {
			return nil
		}
	}

	return rejected
}

// buildRedirectURL appends the code and subdomain query parameters to the
// validated callback.
func buildRedirectURL(callback, code, subdomain string) (string, error) {
	parsed, err := url.Parse(callback)
	if err != nil {
		return "", apperr.Forbidden("Callback URL is not on the trusted domain list")
	}

	query := parsed.Query()
	query.Set(FieldCode, code)
	query.Set(FieldSubdomain, subdomain)
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

/*
SSOExchange redeems a single-use authorization code for a fresh token pair.

Description: The code is consumed atomically — expired, unknown, and
already-redeemed codes are indistinguishable. The presenting subdomain must
match the one the code was minted for.

Parameters:
  - context: context.Context
  - code: string
  - subdomain: string

Returns:
  - *AuthSession: Fresh subdomain-scoped pair with the minimal user profile
  - error: Unauthorized or storage failures
*/
func (service *Service) SSOExchange(context context.Context, code, subdomain string) (*AuthSession, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	invalid := apperr.Unauthorized("Authorization code is invalid or expired")

	// Atomic single-use consumption
	grant, err := service.authCodeStore.Consume(context, code)
	if err != nil {
		return nil, invalid
	}

	// The code is bound to the subdomain it was minted for
	if grant.Subdomain != subdomain {
		return nil, invalid
	}

	// Load the granted user
	user, err := service.userRepository.FindByID(context, grant.UserID)
	if err != nil {
		return nil, invalid
	}

	// Refresh the access grant and issue the pair
	if err := service.subdomainRepository.Upsert(context, user.ID, subdomain); err != nil {
		return nil, fmt.Errorf("identity_service_sso_exchange_grant_failed: %w", err)
	}

	return service.issueSession(context, user, subdomain)
}

/*
SSOVerify checks an access token on behalf of a subdomain backend.

Description: Pure claims verification plus a scope check — a token scoped to
one subdomain is not valid on another. An unscoped (first-party) token is
accepted everywhere on the apex domain's behalf.

Parameters:
  - tokenString: string
  - subdomain: string

Returns:
  - *sec.TokenPayload: Verified claims
  - error: Unauthorized on verification or scope failure
*/
func (service *Service) SSOVerify(tokenString, subdomain string) (*sec.TokenPayload, error) {
	payload, err := service.tokenProvider.VerifyAccess(tokenString)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain != "" && payload.Subdomain != "" && payload.Subdomain != subdomain {
		return nil, apperr.Unauthorized("Token is not valid for this subdomain")
	}

	return payload, nil
}
