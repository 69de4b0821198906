// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sort"
	"time"

	"github.com/minhvodang/lucent/internal/identity"
	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
)

// In-memory repository fakes. They implement the same contracts as the
// postgres/redis stores, including the filtering the real queries do
// (live-only credential lookups, conditional proof transitions), so the
// service under test sees identical semantics.

type memUserRepo struct {
	users map[string]*identity.User // keyed by ID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*identity.User)}
}

func (repo *memUserRepo) FindByID(_ context.Context, id string) (*identity.User, error) {
	user, ok := repo.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	clone := *user
	return &clone, nil
}

func (repo *memUserRepo) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, user := range repo.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memUserRepo) Create(_ context.Context, user *identity.User) error {
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *memUserRepo) UpdatePassword(_ context.Context, userID, newHash string) error {
	if user, ok := repo.users[userID]; ok {
		user.PasswordHash = newHash
	}
	return nil
}

func (repo *memUserRepo) MarkVerified(_ context.Context, userID string) error {
	if user, ok := repo.users[userID]; ok {
		user.IsVerified = true
	}
	return nil
}

func (repo *memUserRepo) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	if user, ok := repo.users[userID]; ok {
		stamp := at
		user.LastLoginAt = &stamp
	}
	return nil
}

type memCredentialRepo struct {
	credentials map[string]*identity.ZkCredential // keyed by ID
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{credentials: make(map[string]*identity.ZkCredential)}
}

func (repo *memCredentialRepo) Create(_ context.Context, credential *identity.ZkCredential) error {
	clone := *credential
	repo.credentials[credential.ID] = &clone
	return nil
}

func (repo *memCredentialRepo) FindByCommitment(_ context.Context, commitment string) (*identity.ZkCredential, error) {
	for _, credential := range repo.credentials {
		if credential.PublicCommitment != commitment || credential.IsRevoked {
			continue
		}
		if credential.ExpiresAt != nil && !credential.ExpiresAt.After(time.Now()) {
			continue
		}
		clone := *credential
		return &clone, nil
	}
	return nil, apperr.NotFound("Credential")
}

func (repo *memCredentialRepo) Revoke(_ context.Context, credentialID string) error {
	if credential, ok := repo.credentials[credentialID]; ok {
		credential.IsRevoked = true
	}
	return nil
}

type memRefreshRepo struct {
	tokens map[string]*identity.RefreshToken // keyed by ID
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{tokens: make(map[string]*identity.RefreshToken)}
}

func (repo *memRefreshRepo) Create(_ context.Context, token *identity.RefreshToken) error {
	clone := *token
	repo.tokens[token.ID] = &clone
	return nil
}

func (repo *memRefreshRepo) FindActiveByUser(_ context.Context, userID string) ([]*identity.RefreshToken, error) {
	var live []*identity.RefreshToken
	for _, token := range repo.tokens {
		if token.UserID == userID && !token.IsRevoked && token.ExpiresAt.After(time.Now()) {
			clone := *token
			live = append(live, &clone)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	return live, nil
}

func (repo *memRefreshRepo) Revoke(_ context.Context, tokenID string) error {
	token, ok := repo.tokens[tokenID]
	if !ok || token.IsRevoked {
		return apperr.Unauthorized("Refresh token has been revoked")
	}
	token.IsRevoked = true
	return nil
}

func (repo *memRefreshRepo) RevokeAll(_ context.Context, userID string) error {
	for _, token := range repo.tokens {
		if token.UserID == userID {
			token.IsRevoked = true
		}
	}
	return nil
}

// liveCount reports the number of usable refresh records for a user.
func (repo *memRefreshRepo) liveCount(userID string) int {
	count := 0
	for _, token := range repo.tokens {
		if token.UserID == userID && !token.IsRevoked && token.ExpiresAt.After(time.Now()) {
			count++
		}
	}
	return count
}

type memActionTokenRepo struct {
	tokens map[string]*identity.ActionToken // keyed by ID
}

func newMemActionTokenRepo() *memActionTokenRepo {
	return &memActionTokenRepo{tokens: make(map[string]*identity.ActionToken)}
}

func (repo *memActionTokenRepo) Create(_ context.Context, token *identity.ActionToken) error {
	clone := *token
	repo.tokens[token.ID] = &clone
	return nil
}

func (repo *memActionTokenRepo) FindBySelector(_ context.Context, kind, selector string) (*identity.ActionToken, error) {
	for _, token := range repo.tokens {
		if token.Kind == kind && token.Selector == selector {
			clone := *token
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Token")
}

func (repo *memActionTokenRepo) Consume(_ context.Context, tokenID string, at time.Time) error {
	if token, ok := repo.tokens[tokenID]; ok && token.ConsumedAt == nil {
		stamp := at
		token.ConsumedAt = &stamp
	}
	return nil
}

func (repo *memActionTokenRepo) InvalidateOutstanding(_ context.Context, userID, kind, exceptID string) error {
	now := time.Now()
	for _, token := range repo.tokens {
		if token.UserID == userID && token.Kind == kind && token.ConsumedAt == nil && token.ID != exceptID {
			stamp := now
			token.ConsumedAt = &stamp
		}
	}
	return nil
}

type memProofRepo struct {
	sessions map[string]*identity.ProofSession // keyed by SessionID
}

func newMemProofRepo() *memProofRepo {
	return &memProofRepo{sessions: make(map[string]*identity.ProofSession)}
}

func (repo *memProofRepo) Create(_ context.Context, session *identity.ProofSession) error {
	clone := *session
	repo.sessions[session.SessionID] = &clone
	return nil
}

func (repo *memProofRepo) FindBySessionID(_ context.Context, sessionID string) (*identity.ProofSession, error) {
	session, ok := repo.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("Proof session")
	}
	clone := *session
	return &clone, nil
}

func (repo *memProofRepo) MarkVerified(_ context.Context, sessionID, userID string, at time.Time) error {
	session, ok := repo.sessions[sessionID]
	if !ok || session.Status != identity.ProofStatusPending {
		return apperr.Unauthorized("Proof session already used")
	}
	stamp := at
	session.Status = identity.ProofStatusVerified
	session.UserID = userID
	session.VerifiedAt = &stamp
	return nil
}

type memSubdomainRepo struct {
	grants map[string]time.Time // keyed by userID + "/" + subdomain
}

func newMemSubdomainRepo() *memSubdomainRepo {
	return &memSubdomainRepo{grants: make(map[string]time.Time)}
}

func (repo *memSubdomainRepo) Upsert(_ context.Context, userID, subdomain string) error {
	repo.grants[userID+"/"+subdomain] = time.Now()
	return nil
}

type memAuthCodeStore struct {
	codes map[string]codeEntry
}

type codeEntry struct {
	grant     identity.AuthCodeGrant
	expiresAt time.Time
}

func newMemAuthCodeStore() *memAuthCodeStore {
	return &memAuthCodeStore{codes: make(map[string]codeEntry)}
}

func (store *memAuthCodeStore) Create(_ context.Context, code string, grant identity.AuthCodeGrant, ttl time.Duration) error {
	store.codes[code] = codeEntry{grant: grant, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (store *memAuthCodeStore) Consume(_ context.Context, code string) (*identity.AuthCodeGrant, error) {
	entry, ok := store.codes[code]
	delete(store.codes, code)
	if !ok || !entry.expiresAt.After(time.Now()) {
		return nil, apperr.NotFound("Authorization code")
	}
	grant := entry.grant
	return &grant, nil
}

// memMailer captures outbound tokens so tests can redeem emailed links.
type memMailer struct {
	verificationTokens map[string]string // email -> last raw token
	resetTokens        map[string]string
}

func newMemMailer() *memMailer {
	return &memMailer{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (mailer *memMailer) SendVerification(_ context.Context, toEmail, rawToken string) error {
	mailer.verificationTokens[toEmail] = rawToken
	return nil
}

func (mailer *memMailer) SendPasswordReset(_ context.Context, toEmail, rawToken string) error {
	mailer.resetTokens[toEmail] = rawToken
	return nil
}

// # Test Harness

// testKey is generated once; RSA keygen is the slow part of these tests.
var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

type serviceFixture struct {
	service     *identity.Service
	users       *memUserRepo
	credentials *memCredentialRepo
	refresh     *memRefreshRepo
	actions     *memActionTokenRepo
	proofs      *memProofRepo
	subdomains  *memSubdomainRepo
	codes       *memAuthCodeStore
	mailer      *memMailer
	tokens      *sec.TokenService
}

// newFixture wires a service instance against fresh in-memory fakes and a
// real RS256 token service.
func newFixture() *serviceFixture {
	fixture := &serviceFixture{
		users:       newMemUserRepo(),
		credentials: newMemCredentialRepo(),
		refresh:     newMemRefreshRepo(),
		actions:     newMemActionTokenRepo(),
		proofs:      newMemProofRepo(),
		subdomains:  newMemSubdomainRepo(),
		codes:       newMemAuthCodeStore(),
		mailer:      newMemMailer(),
		tokens:      sec.NewTokenServiceFromKey(testKey, "lucent.app", identity.AccessTokenTTL, identity.RefreshTokenTTL),
	}

	fixture.service = identity.NewService(identity.Deps{
		Users:          fixture.users,
		Credentials:    fixture.credentials,
		RefreshTokens:  fixture.refresh,
		ActionTokens:   fixture.actions,
		ProofSessions:  fixture.proofs,
		Subdomains:     fixture.subdomains,
		AuthCodes:      fixture.codes,
		Tokens:         fixture.tokens,
		Mailer:         fixture.mailer,
		TrustedDomains: []string{"lucent.app", "localhost"},
	})

	return fixture
}

// register enrolls a user and returns the created entity.
func (fixture *serviceFixture) register(ctx context.Context, email, password string) (*identity.RegisterResult, error) {
	return fixture.service.Register(ctx, identity.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Minh",
		LastName:  "Vo",
	})
}

// registerVerified enrolls a user and redeems the verification link.
func (fixture *serviceFixture) registerVerified(ctx context.Context, email, password string) (*identity.AuthSession, error) {
	if _, err := fixture.register(ctx, email, password); err != nil {
		return nil, err
	}
	return fixture.service.VerifyEmail(ctx, fixture.mailer.verificationTokens[email])
}
