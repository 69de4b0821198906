// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodang/lucent/internal/identity"
	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
)

// proofFor computes the answer a client would derive locally for a challenge.
func proofFor(challenge, commitment string) string {
	return sec.Commitments().ExpectedProof(challenge, commitment)
}

// registeredCommitment returns the public commitment stored at enrollment.
func registeredCommitment(fixture *serviceFixture) string {
	for _, credential := range fixture.credentials.credentials {
		return credential.PublicCommitment
	}
	return ""
}

/*
TestProof_FullFlow walks a commitment proof end to end: request a challenge,
answer it, and come back signed in.
*/
func TestProof_FullFlow(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	commitment := registeredCommitment(fixture)
	require.NotEmpty(t, commitment)

	challenge, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.SessionID)
	assert.NotEmpty(t, challenge.Challenge)
	assert.WithinDuration(t, time.Now().Add(identity.ProofSessionTTL), challenge.ExpiresAt, 5*time.Second)

	session, err := fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            proofFor(challenge.Challenge, commitment),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "minh@lucent.app", session.User.Email)
	assert.NotNil(t, session.User.LastLoginAt)
}

/*
TestProof_SessionIsOneShot checks that a session verifies at most once.
*/
func TestProof_SessionIsOneShot(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	commitment := registeredCommitment(fixture)

	challenge, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)

	input := identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            proofFor(challenge.Challenge, commitment),
	}

	_, err = fixture.service.VerifyProof(ctx, input)
	require.NoError(t, err)

	// A second submission of the very same valid proof is rejected
	_, err = fixture.service.VerifyProof(ctx, input)
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "Proof session already used", ae.Message)
}

/*
TestProof_ExpiredSession checks that a correct proof against a stale
challenge is rejected and the session is not consumed by the attempt.
*/
func TestProof_ExpiredSession(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	commitment := registeredCommitment(fixture)

	challenge, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)

	// Age the stored session past its deadline
	fixture.proofs.sessions[challenge.SessionID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            proofFor(challenge.Challenge, commitment),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "Proof session expired", ae.Message)

	// The failed attempt did not transition the session
	assert.Equal(t, identity.ProofStatusPending, fixture.proofs.sessions[challenge.SessionID].Status)
}

/*
TestProof_WrongAnswersAreGeneric checks that a wrong proof and an unknown
commitment produce the same client-visible failure.
*/
func TestProof_WrongAnswersAreGeneric(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.registerVerified(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	commitment := registeredCommitment(fixture)

	challenge, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)

	// Wrong proof value
	_, err = fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            "deadbeef",
	})
	require.Error(t, err)
	wrongProof := apperr.As(err).Message

	// Unknown commitment, correct-looking proof
	challenge2, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)
	_, err = fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge2.SessionID,
		PublicCommitment: "0000",
		Proof:            proofFor(challenge2.Challenge, "0000"),
	})
	require.Error(t, err)
	wrongCommitment := apperr.As(err).Message

	assert.Equal(t, wrongProof, wrongCommitment)

	// Neither failure consumed its session: a correct proof still works
	_, err = fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            proofFor(challenge.Challenge, commitment),
	})
	require.NoError(t, err)
}

/*
TestProof_UnknownSession checks the missing-session path.
*/
func TestProof_UnknownSession(t *testing.T) {
	fixture := newFixture()

	_, err := fixture.service.VerifyProof(context.Background(), identity.VerifyProofInput{
		SessionID:        "00000000-0000-0000-0000-000000000000",
		PublicCommitment: "abc",
		Proof:            "def",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "NOT_FOUND"))
}

/*
TestProof_UnverifiedOwnerIsGated checks that a valid proof for an unverified
account still hits the verification gate.
*/
func TestProof_UnverifiedOwnerIsGated(t *testing.T) {
	fixture := newFixture()
	ctx := context.Background()

	_, err := fixture.register(ctx, "minh@lucent.app", "correct-horse-9")
	require.NoError(t, err)
	commitment := registeredCommitment(fixture)

	challenge, err := fixture.service.CreateProofRequest(ctx)
	require.NoError(t, err)

	_, err = fixture.service.VerifyProof(ctx, identity.VerifyProofInput{
		SessionID:        challenge.SessionID,
		PublicCommitment: commitment,
		Proof:            proofFor(challenge.Challenge, commitment),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "VERIFICATION_REQUIRED"))
}
