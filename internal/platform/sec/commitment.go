// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package sec

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"
)

/*
CommitmentEngine derives credential commitments and proof responses using a
fixed-arity hash over elements of a prime field.

# Mechanism

A commitment is H(secret, salt) where both inputs are mapped into the field
by hashing; the expected proof response for a session is H(challenge,
commitment). The verifier holds the commitment, so this is a shared-secret
challenge/response construction — it is NOT a zero-knowledge proof and makes
no soundness claim against a verifier that does not already hold the
commitment. The behavior is preserved as designed; do not "upgrade" it to a
real proof system without a product decision.

# Concurrency

The engine's round constants are expensive to derive, so the shared instance
is built lazily exactly once and is read-only afterwards. It is safe for
concurrent readers.
*/
type CommitmentEngine struct {
	modulus *big.Int
	rounds  []*big.Int
}

// fieldModulusHex is the BN254 scalar field prime, the field the original
// credential scheme committed over. Commitments are stable across releases
// only while this value is unchanged.
const fieldModulusHex = "30644e72e131a029b85045b68181585d2833e84879b9709143e1f593f0000001"

// commitmentRounds is the number of mixing rounds in the fixed-arity hash.
const commitmentRounds = 64

var (
	commitmentOnce   sync.Once
	commitmentShared *CommitmentEngine
)

// Commitments returns the shared, lazily-initialized engine instance.
func Commitments() *CommitmentEngine {
	commitmentOnce.Do(func() {
		commitmentShared = newCommitmentEngine()
	})
	return commitmentShared
}

// newCommitmentEngine derives the field modulus and per-round constants.
func newCommitmentEngine() *CommitmentEngine {
	modulus, _ := new(big.Int).SetString(fieldModulusHex, 16)

	// Round constants are derived deterministically by chain-hashing a
	// domain tag, so every process arrives at the same read-only table.
	rounds := make([]*big.Int, commitmentRounds)
	seed := sha256.Sum256([]byte("lucent.credential.commitment.v1"))
	for i := range rounds {
		rounds[i] = new(big.Int).Mod(new(big.Int).SetBytes(seed[:]), modulus)
		seed = sha256.Sum256(seed[:])
	}

	return &CommitmentEngine{modulus: modulus, rounds: rounds}
}

// # Field Mapping

// FieldElement maps an arbitrary string into the engine's prime field.
func (engine *CommitmentEngine) FieldElement(value string) *big.Int {
	digest := sha256.Sum256([]byte(value))
	return new(big.Int).Mod(new(big.Int).SetBytes(digest[:]), engine.modulus)
}

// HashPair is the fixed-arity (2) hash primitive over field elements.
//
// Each round absorbs the running state with a round constant through
// SHA-256 and reduces back into the field.
func (engine *CommitmentEngine) HashPair(left, right *big.Int) *big.Int {
	state := new(big.Int).Mod(new(big.Int).Add(left, right), engine.modulus)

	buffer := make([]byte, 0, 96)
	for _, constant := range engine.rounds {
		buffer = buffer[:0]
		buffer = appendPadded(buffer, state)
		buffer = appendPadded(buffer, left)
		buffer = appendPadded(buffer, constant)

		digest := sha256.Sum256(buffer)
		state = new(big.Int).Mod(new(big.Int).SetBytes(digest[:]), engine.modulus)
	}

	return state
}

// appendPadded appends a 32-byte big-endian encoding of the element.
func appendPadded(buffer []byte, element *big.Int) []byte {
	var word [32]byte
	element.FillBytes(word[:])
	return append(buffer, word[:]...)
}

// # Credential Derivation

// Commit derives the public commitment for a secret and per-registration salt.
//
// Registration calls this with secret = password+email; the result is stored
// on the credential record and is what proof-session verification recomputes
// against.
func (engine *CommitmentEngine) Commit(secret, salt string) string {
	result := engine.HashPair(engine.FieldElement(secret), engine.FieldElement(salt))
	return encodeElement(result)
}

// CredentialHash derives the secondary credential digest stored alongside
// the commitment. It is domain-separated from Commit so the two values are
// never interchangeable.
func (engine *CommitmentEngine) CredentialHash(secret, salt string) string {
	result := engine.HashPair(engine.FieldElement("credential:"+secret), engine.FieldElement(salt))
	return encodeElement(result)
}

// ExpectedProof recomputes the response a prover must present for a
// challenge, given the stored public commitment.
func (engine *CommitmentEngine) ExpectedProof(challenge, commitment string) string {
	result := engine.HashPair(engine.FieldElement(challenge), engine.FieldElement(commitment))
	return encodeElement(result)
}

// encodeElement renders a field element as 64 lowercase hex characters.
func encodeElement(element *big.Int) string {
	var word [32]byte
	element.FillBytes(word[:])
	return hex.EncodeToString(word[:])
}
