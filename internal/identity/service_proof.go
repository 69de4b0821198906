// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/sec"
	"github.com/minhvodang/lucent/internal/platform/validate"
	"github.com/minhvodang/lucent/pkg/uuid"
)

// # Proof Sessions
//
// The proof flow lets a client authenticate by demonstrating knowledge of a
// registered credential commitment without transmitting the password:
//
//  1. The client requests a challenge (anonymous, short-lived session).
//  2. The client computes proof = H(challenge, commitment) locally and
//     submits it with the commitment.
//  3. The server recomputes the expected proof from its own copy of the
//     challenge and the stored commitment and compares.
//
// The commitment itself is a stable public value, so this scheme hides the
// password but NOT the commitment; see the sec package notes.

// ProofChallenge is handed to a client starting a proof session.
type ProofChallenge struct {
	SessionID string    `json:"session_id"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

/*
CreateProofRequest mints an anonymous challenge session.

Description: No user identity is attached at this stage — the session binds
to the credential owner only when a valid proof arrives. The challenge is
fresh randomness, so proofs can never be precomputed or replayed across
sessions.

Parameters:
  - context: context.Context

Returns:
  - *ProofChallenge: Session identifier, challenge, and expiry
  - error: Generation or persistence failures
*/
func (service *Service) CreateProofRequest(context context.Context) (*ProofChallenge, error) {

	// Fresh per-session randomness
	challenge, err := sec.GenerateSecureToken(ChallengeByteLength)
	if err != nil {
		return nil, fmt.Errorf("identity_service_challenge_failed: %w", err)
	}

	session := &ProofSession{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Challenge: challenge,
		ProofType: ProofTypeCommitment,
		Status:    ProofStatusPending,
		ExpiresAt: service.now().Add(ProofSessionTTL),
	}

	if err := service.proofRepository.Create(context, session); err != nil {
		return nil, fmt.Errorf("identity_service_proof_session_failed: %w", err)
	}

	return &ProofChallenge{
		SessionID: session.SessionID,
		Challenge: session.Challenge,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// VerifyProofInput carries a client's answer to a proof challenge.
type VerifyProofInput struct {
	SessionID        string `json:"session_id"`
	PublicCommitment string `json:"public_commitment"`
	Proof            string `json:"proof"`
}

/*
VerifyProof checks a submitted proof and, on success, signs the credential
owner in.

Description: The session must be pending and unexpired, the commitment must
resolve to a live credential, and the submitted proof must equal the
server-side recomputation. A wrong commitment and a wrong proof are
indistinguishable to the caller. Session state transitions exactly once;
a second submission against the same session fails as already used.

Parameters:
  - context: context.Context
  - input: VerifyProofInput

Returns:
  - *AuthSession: Fresh session for the credential owner
  - error: Unauthorized, VerificationRequired, or storage failures
*/
func (service *Service) VerifyProof(context context.Context, input VerifyProofInput) (*AuthSession, error) {

	// Validate the submission shape
	validator := &validate.Validator{}
	validator.Required(FieldSessionID, input.SessionID)
	validator.Required(FieldCommitment, input.PublicCommitment)
	validator.Required(FieldProof, input.Proof)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Resolve the session
	session, err := service.proofRepository.FindBySessionID(context, input.SessionID)
	if err != nil {
		return nil, apperr.NotFound("Proof session")
	}

	// One-shot: a consumed session never verifies again.
	if session.Status != ProofStatusPending {
		return nil, apperr.Unauthorized("Proof session already used")
	}

	// Expiry: a stale challenge is worthless even with a correct proof.
	if !session.ExpiresAt.After(service.now()) {
		return nil, apperr.Unauthorized("Proof session expired")
	}

	// Resolve the credential. Generic failure — a wrong commitment must look
	// exactly like a wrong proof.
	failed := apperr.Unauthorized("Proof verification failed")
	credential, err := service.credentialRepository.FindByCommitment(context, input.PublicCommitment)
	if err != nil {
		return nil, failed
	}

	// Recompute the expected answer from our copy of the challenge and the
	// stored commitment, then compare in constant time.
	expected := sec.Commitments().ExpectedProof(session.Challenge, credential.PublicCommitment)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(input.Proof)) != 1 {
		return nil, failed
	}

	// The credential owner must have a usable, verified account.
	user, err := service.userRepository.FindByID(context, credential.UserID)
	if err != nil {
		return nil, failed
	}
	if !user.IsVerified {
		return nil, apperr.VerificationRequired()
	}

	// Transition the session; the conditional update rejects a concurrent
	// double-spend of the same session.
	if err := service.proofRepository.MarkVerified(context, session.SessionID, user.ID, service.now()); err != nil {
		return nil, err
	}

	// Stamp the successful login and issue the pair
	loginTime := service.now()
	if err := service.userRepository.UpdateLastLogin(context, user.ID, loginTime); err != nil {
		return nil, fmt.Errorf("identity_service_proof_stamp_failed: %w", err)
	}
	user.LastLoginAt = &loginTime

	return service.issueSession(context, user, "")
}
