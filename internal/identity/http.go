// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

/*
HTTP delivery layer for the identity domain.

The handler acts as a thin mediation layer between the web and the domain
service:
  - Protocol: Standard RESTful JSON interface.
  - Security: JWT orchestration and refresh token cookie injection.
  - Throttling: Per-action rate limits are checked here, before the service
    runs, so throttled requests never touch storage.

This layer is strictly responsible for transport concerns (status codes,
headers, JSON).
*/

package identity

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/constants"
	"github.com/minhvodang/lucent/internal/platform/middleware"
	"github.com/minhvodang/lucent/internal/platform/ratelimit"
	requestutil "github.com/minhvodang/lucent/internal/platform/request"
	"github.com/minhvodang/lucent/internal/platform/respond"
	"github.com/minhvodang/lucent/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements identity-related HTTP endpoints.
//
// # Scope
//
// Everything related to the session lifecycle entry points: registration,
// login, token refresh, email verification, password recovery, proof
// sessions, and the SSO broker.
type Handler struct {
	identityService *Service
	limiter         *ratelimit.Limiter
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{identityService: service, limiter: limiter}
}

// Routes returns a [chi.Router] configured with the /auth route group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Proof sessions
	router.Post("/zk/request", handler.proofRequest)
	router.Post("/zk/verify", handler.proofVerify)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
		r.Post("/revoke-all", handler.revokeAll)
	})

	return router
}

// SSORoutes returns a [chi.Router] configured with the /sso route group.
func (handler *Handler) SSORoutes() chi.Router {
	router := chi.NewRouter()

	router.Post("/exchange", handler.ssoExchange)
	router.Post("/verify", handler.ssoVerify)

	// Authorize needs an authenticated apex session
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/authorize", handler.ssoAuthorize)
	})

	return router
}

// # Throttling

// allow checks the per-action limiter and writes a 429 when the budget is
// spent. It reports whether the request may proceed.
func (handler *Handler) allow(writer http.ResponseWriter, request *http.Request, action, identity string) bool {
	result := handler.limiter.Allow(action, identity)
	if result.Allowed {
		return true
	}

	retryAfter := int(result.RetryAfter / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	respond.Error(writer, request, apperr.RateLimited(retryAfter))
	return false
}

// # Cookies

// setRefreshCookie installs the rotated refresh token as an HttpOnly cookie
// scoped to the auth path.
func setRefreshCookie(writer http.ResponseWriter, session *AuthSession) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  session.RefreshTokenExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie on the client.
func clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFrom extracts the raw refresh token from the cookie or, for
// non-browser clients, the JSON body.
func refreshTokenFrom(request *http.Request) string {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := requestutil.DecodeJSON(request, &body); err == nil {
		return body.RefreshToken
	}
	return ""
}

// sessionResponse is the transport shape shared by every flow that ends in a
// signed-in session.
func sessionResponse(session *AuthSession) map[string]any {
	return map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int(AccessTokenTTL / time.Second),
		"user":           session.User,
	}
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ssoExchangeRequest struct {
	Code      string `json:"code"`
	Subdomain string `json:"subdomain"`
}

type ssoVerifyRequest struct {
	AccessToken string `json:"access_token"`
	Subdomain   string `json:"subdomain"`
}

// # Account Lifecycle

/*
register handles the creation of a new user account.

POST /api/v1/auth/register

Description: Validates input, checks for identity conflicts, persists the
profile with its credential commitment, and emails a verification link.

Request:
  - Body: RegisterInput (Email, Password, FirstName, LastName)

Response:
  - 201: RegisterResult: Created profile, pending verification
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if !handler.allow(writer, request, ratelimit.ActionRegister, middleware.RealIP(request)) {
		return
	}

	result, err := handler.identityService.Register(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, result)
}

/*
login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, enforces the verification gate, and
injects the refresh token cookie into the response.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Session: Access token and user profile
  - 401: ErrUnauthorized: Invalid credentials
  - 403: VERIFICATION_REQUIRED: Correct password, unverified account
  - 429: RATE_LIMITED: Attempt budget spent
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Throttle per target account, not per IP: credential stuffing rotates
	// source addresses but not victims.
	identity := validate.NormalizeEmail(input.Email)
	if !handler.allow(writer, request, ratelimit.ActionLogin, identity) {
		return
	}

	session, err := handler.identityService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// A successful login clears the failure budget
	handler.limiter.Reset(ratelimit.ActionLogin, identity)

	setRefreshCookie(writer, session)
	respond.OK(writer, sessionResponse(session))
}

/*
refresh rotates the session using a valid refresh token.

POST /api/v1/auth/refresh

Description: Validates the refresh token (cookie or body), revokes its
stored record, and issues a fresh rotated pair.

Response:
  - 200: Session: New access token credentials
  - 401: ErrUnauthorized: Missing, invalid, or already-used refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := refreshTokenFrom(request)
	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	session, err := handler.identityService.RefreshAccessToken(request.Context(), refreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)
	respond.OK(writer, sessionResponse(session))
}

/*
logout terminates the current user session.

POST /api/v1/auth/logout

Description: Revokes the refresh token (if present) and clears the security
cookie. Idempotent.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if refreshToken := refreshTokenFrom(request); refreshToken != "" {
		_ = handler.identityService.Logout(request.Context(), refreshToken)
	}

	clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
me returns the authenticated user's claims.

GET /api/v1/auth/me

Response:
  - 200: TokenPayload projection
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"id":        claims.UserID,
		"email":     claims.Email,
		"name":      claims.Name,
		"role":      claims.Role,
		"subdomain": claims.Subdomain,
	})
}

/*
revokeAll signs the user out of every device.

POST /api/v1/auth/revoke-all

Description: Revokes every live refresh token for the authenticated user and
clears the local cookie. Outstanding access tokens ride out their short TTL.

Response:
  - 204: No Content
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) revokeAll(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.RevokeUserTokens(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearRefreshCookie(writer)
	respond.NoContent(writer)
}

// # Email Verification

/*
verifyEmail confirms a user's email ownership.

POST /api/v1/auth/verify-email

Description: Consumes the emailed one-shot token, activates the account, and
signs the user in.

Request:
  - Body: tokenRequest (Token)

Response:
  - 200: Session: Fresh session for the activated account
  - 401: ErrUnauthorized: Invalid, expired, or already-used link
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input tokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "is required"))
		return
	}

	session, err := handler.identityService.VerifyEmail(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)
	respond.OK(writer, sessionResponse(session))
}

/*
resendVerification issues a fresh verification link.

POST /api/v1/auth/resend-verification

Description: Retires outstanding verification tokens and emails a new one.
Unknown addresses receive the same success response as real ones.

Request:
  - Body: emailRequest (Email)

Response:
  - 200: Success: Generic acknowledgement
  - 409: ErrConflict: Email is already verified
  - 429: RATE_LIMITED: Resend budget spent
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	identity := validate.NormalizeEmail(input.Email)
	if !handler.allow(writer, request, ratelimit.ActionResend, identity) {
		return
	}

	if err := handler.identityService.ResendVerificationEmail(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a verification link has been sent.",
	})
}

// # Password Recovery

/*
forgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Sends a reset link to the provided email if the account exists.
The response never reveals whether it does.

Request:
  - Body: emailRequest (Email)

Response:
  - 200: Success: Generic security message
  - 429: RATE_LIMITED: Request budget spent
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	identity := validate.NormalizeEmail(input.Email)
	if !handler.allow(writer, request, ratelimit.ActionForgot, identity) {
		return
	}

	if err := handler.identityService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
resetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Description: Consumes the reset token, updates the password, revokes every
live session, and signs the user back in.

Request:
  - Body: resetPasswordRequest (Token, NewPassword)

Response:
  - 200: Session: Fresh session under the new password
  - 400: ErrInvalidJSON: Weak password or validation failure
  - 401: ErrUnauthorized: Invalid, expired, or already-used link
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, PasswordMinLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.identityService.ResetPassword(request.Context(), input.Token, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)
	respond.OK(writer, sessionResponse(session))
}

// # Proof Sessions

/*
proofRequest mints an anonymous proof challenge.

POST /api/v1/auth/zk/request

Response:
  - 201: ProofChallenge: Session ID, challenge, expiry
  - 429: RATE_LIMITED: Challenge budget spent
*/
func (handler *Handler) proofRequest(writer http.ResponseWriter, request *http.Request) {
	if !handler.allow(writer, request, ratelimit.ActionProof, middleware.RealIP(request)) {
		return
	}

	challenge, err := handler.identityService.CreateProofRequest(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, challenge)
}

/*
proofVerify checks a submitted proof and signs the credential owner in.

POST /api/v1/auth/zk/verify

Request:
  - Body: VerifyProofInput (SessionID, PublicCommitment, Proof)

Response:
  - 200: Session: Fresh session for the credential owner
  - 401: ErrUnauthorized: Wrong proof, expired or consumed session
  - 403: VERIFICATION_REQUIRED: Credential owner not yet verified
*/
func (handler *Handler) proofVerify(writer http.ResponseWriter, request *http.Request) {
	var input VerifyProofInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if !handler.allow(writer, request, ratelimit.ActionProof, middleware.RealIP(request)) {
		return
	}

	session, err := handler.identityService.VerifyProof(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)
	respond.OK(writer, sessionResponse(session))
}

// # SSO Broker

/*
ssoAuthorize begins a cross-subdomain hop for the signed-in user.

GET /api/v1/sso/authorize?subdomain=<label>&callback=<url>

Description: Validates the callback against the trusted-domain allow-list,
mints a subdomain-scoped session plus a 60-second single-use code, and
redirects the browser to the callback.

Response:
  - 302: Redirect to callback?code=...&subdomain=...
  - 403: ErrForbidden: Callback host not trusted
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) ssoAuthorize(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !handler.allow(writer, request, ratelimit.ActionSSO, userID) {
		return
	}

	grant, err := handler.identityService.SSOAuthorize(request.Context(), SSOAuthorizeInput{
		UserID:    userID,
		Subdomain: request.URL.Query().Get(FieldSubdomain),
		Callback:  request.URL.Query().Get(FieldCallback),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, grant.Session)
	http.Redirect(writer, request, grant.RedirectURL, http.StatusFound)
}

/*
ssoExchange redeems a single-use authorization code.

POST /api/v1/sso/exchange

Description: Called server-side by a subdomain backend. The code is consumed
atomically; a second redemption fails.

Request:
  - Body: ssoExchangeRequest (Code, Subdomain)

Response:
  - 200: Session: Fresh scoped pair and minimal profile
  - 401: ErrUnauthorized: Invalid, expired, or already-used code
*/
func (handler *Handler) ssoExchange(writer http.ResponseWriter, request *http.Request) {
	var input ssoExchangeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCode, input.Code)
	validator.Required(FieldSubdomain, input.Subdomain)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.identityService.SSOExchange(request.Context(), input.Code, input.Subdomain)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		"refresh_token":  session.RefreshToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int(AccessTokenTTL / time.Second),
		"user":           session.User.Profile(),
	})
}

/*
ssoVerify checks an access token on behalf of a subdomain backend.

POST /api/v1/sso/verify

Request:
  - Body: ssoVerifyRequest (AccessToken, Subdomain)

Response:
  - 200: Claims: Verified token payload
  - 401: ErrUnauthorized: Invalid token or wrong subdomain scope
*/
func (handler *Handler) ssoVerify(writer http.ResponseWriter, request *http.Request) {
	var input ssoVerifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.AccessToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldAccessToken, "is required"))
		return
	}

	payload, err := handler.identityService.SSOVerify(input.AccessToken, input.Subdomain)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"valid":     true,
		"id":        payload.UserID,
		"email":     payload.Email,
		"role":      payload.Role,
		"subdomain": payload.Subdomain,
	})
}
