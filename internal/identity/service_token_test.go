// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodang/lucent/internal/identity"
	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
)

/*
TestRefresh_RotatesAndRevokes checks the rotation contract: a refresh yields
a new pair and the presented token is permanently dead afterwards.
*/
func TestRefresh_RotatesAndRevokes(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	rotated, err := fixture.service.RefreshAccessToken(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
	assert.NotEmpty(t, rotated.AccessToken)

	// The old token was revoked by the rotation
	_, err = fixture.service.RefreshAccessToken(ctx, session.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))

	// The rotated token still works
	_, err = fixture.service.RefreshAccessToken(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

/*
TestRefresh_RejectsAccessToken checks class confusion: an access token can
never be used where a refresh token is expected, even though both are validly
signed by the same key.
*/
func TestRefresh_RejectsAccessToken(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	_, err = fixture.service.RefreshAccessToken(ctx, session.AccessToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))
}

/*
TestVerifyAccessToken_RejectsRefreshToken checks the opposite direction of
the class check.
*/
func TestVerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	// Access token verifies and carries the expected claims
	payload, err := fixture.service.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, payload.UserID)
	assert.Equal(t, sec.ClassAccess, payload.Class)

	// Refresh token is rejected on the access surface
	_, err = fixture.service.VerifyAccessToken(session.RefreshToken)
	require.Error(t, err)
}

/*
TestRefresh_SignedButUnpersistedTokenFails checks that a structurally valid
refresh token with no live stored record (e.g. revoked out-of-band) is
rejected.
*/
func TestRefresh_SignedButUnpersistedTokenFails(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	// Revoke everything behind the service's back
	require.NoError(t, fixture.service.RevokeUserTokens(ctx, session.User.ID))

	_, err = fixture.service.RefreshAccessToken(ctx, session.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))
}

// rendezvousRefreshRepo serializes the in-memory repo behind a mutex and
// holds every caller at the end of FindActiveByUser until all expected
// callers have completed their scan. That forces the interleaving where
// both rotations see the same live record before either revokes it.
type rendezvousRefreshRepo struct {
	inner   *memRefreshRepo
	mutex   sync.Mutex
	scanned *sync.WaitGroup
}

func (repo *rendezvousRefreshRepo) Create(ctx context.Context, token *identity.RefreshToken) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	return repo.inner.Create(ctx, token)
}

func (repo *rendezvousRefreshRepo) FindActiveByUser(ctx context.Context, userID string) ([]*identity.RefreshToken, error) {
	repo.mutex.Lock()
	records, err := repo.inner.FindActiveByUser(ctx, userID)
	repo.mutex.Unlock()

	repo.scanned.Done()
	repo.scanned.Wait()
	return records, err
}

func (repo *rendezvousRefreshRepo) Revoke(ctx context.Context, tokenID string) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	return repo.inner.Revoke(ctx, tokenID)
}

func (repo *rendezvousRefreshRepo) RevokeAll(ctx context.Context, userID string) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	return repo.inner.RevokeAll(ctx, userID)
}

/*
TestRefresh_ConcurrentRotationSingleWinner checks that two simultaneous
rotations of the same raw refresh token cannot both succeed: the conditional
revocation lets exactly one caller spend the record, the other gets
UNAUTHORIZED, and exactly one live chain remains.
*/
func TestRefresh_ConcurrentRotationSingleWinner(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	scanned := &sync.WaitGroup{}
	scanned.Add(2)
	gated := &rendezvousRefreshRepo{inner: fixture.refresh, scanned: scanned}

	service := identity.NewService(identity.Deps{
		Users:          fixture.users,
		Credentials:    fixture.credentials,
		RefreshTokens:  gated,
		ActionTokens:   fixture.actions,
		ProofSessions:  fixture.proofs,
		Subdomains:     fixture.subdomains,
		AuthCodes:      fixture.codes,
		Tokens:         fixture.tokens,
		Mailer:         fixture.mailer,
		TrustedDomains: []string{"lucent.app", "localhost"},
	})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := service.RefreshAccessToken(ctx, session.RefreshToken)
			results <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}

	// Exactly one rotation wins; the loser is told the token is revoked.
	require.Len(t, failures, 1)
	assert.True(t, apperr.IsCode(failures[0], "UNAUTHORIZED"))
	assert.Equal(t, 1, fixture.refresh.liveCount(session.User.ID))
}

/*
TestLogout_IsIdempotent checks that logging out twice (or with garbage)
always reports success while killing the live record exactly once.
*/
func TestLogout_IsIdempotent(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	require.Equal(t, 1, fixture.refresh.liveCount(session.User.ID))

	require.NoError(t, fixture.service.Logout(ctx, session.RefreshToken))
	assert.Equal(t, 0, fixture.refresh.liveCount(session.User.ID))

	// Repeat and garbage calls still succeed
	require.NoError(t, fixture.service.Logout(ctx, session.RefreshToken))
	require.NoError(t, fixture.service.Logout(ctx, "not-a-token"))
}

/*
TestRefresh_PreservesSubdomainScope checks that rotating an SSO-scoped chain
keeps its subdomain claim.
*/
func TestRefresh_PreservesSubdomainScope(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	session, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)

	grant, err := fixture.service.SSOAuthorize(ctx, identity.SSOAuthorizeInput{
		UserID:    session.User.ID,
		Subdomain: "billing",
		Callback:  "https://billing.lucent.app/sso/callback",
	})
	require.NoError(t, err)

	rotated, err := fixture.service.RefreshAccessToken(ctx, grant.Session.RefreshToken)
	require.NoError(t, err)

	payload, err := fixture.service.VerifyAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "billing", payload.Subdomain)
}
