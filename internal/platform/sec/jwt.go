// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing,
// credential commitments) from the domain logic. It acts as an Infrastructure
// service injected into the Application layer via narrow interfaces.
package sec

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClass discriminates access tokens from refresh tokens inside the
// signed payload.
//
// The class claim is what prevents a long-lived refresh token from being
// replayed on an access-token surface (and vice versa): every verification
// path checks it explicitly.
type TokenClass string

const (
	// ClassAccess marks short-lived per-request credentials.
	ClassAccess TokenClass = "access"

	// ClassRefresh marks long-lived rotation credentials.
	ClassRefresh TokenClass = "refresh"
)

// TokenPayload represents the payload embedded inside a Lucent JWT.
//
// # Why custom claims?
//
// By embedding the UserID, Email, and Name directly inside the JWT,
// middleware can reconstruct the active user context WITHOUT querying the
// database on every single API request. The Subdomain claim scopes
// SSO-issued pairs to the product that requested them.
type TokenPayload struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID    string     `json:"uid"`
	Email     string     `json:"eml"`
	Name      string     `json:"nam,omitempty"`
	Role      string     `json:"rol,omitempty"`
	Subdomain string     `json:"sdm,omitempty"`
	Class     TokenClass `json:"cls"`
}

// TokenPair bundles a freshly signed access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService handles generation and verification of JWT tokens using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	keyID      string

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths. A missing or
// malformed key is a startup-fatal configuration error.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		keyID:      deriveKeyID(publicKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// NewTokenServiceFromKey builds a TokenService from an in-memory private key.
// Used by tests and tooling that generate throwaway keys.
func NewTokenServiceFromKey(privateKey *rsa.PrivateKey, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		keyID:      deriveKeyID(&privateKey.PublicKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// # Issuance

// PairSubject describes the identity a token pair is minted for.
type PairSubject struct {
	UserID    string
	Email     string
	Name      string
	Role      string
	Subdomain string
}

// GeneratePair signs a new access/refresh pair for the subject.
//
// Both tokens carry the same identity claims; only the class and expiry
// differ. The raw refresh token must additionally be persisted (hashed) by
// the caller so it can be revoked before natural expiry.
func (service *TokenService) GeneratePair(subject PairSubject) (*TokenPair, error) {
	accessToken, err := service.sign(subject, ClassAccess, service.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := service.sign(subject, ClassRefresh, service.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: time.Now().Add(service.refreshTTL),
	}, nil
}

// sign builds and signs a single token of the given class.
func (service *TokenService) sign(subject PairSubject, class TokenClass, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := TokenPayload{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.UserID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:    subject.UserID,
		Email:     subject.Email,
		Name:      subject.Name,
		Role:      subject.Role,
		Subdomain: subject.Subdomain,
		Class:     class,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = service.keyID

	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// # Verification

// VerifyAccess checks signature, issuer, expiry, and the access class claim.
//
// Any failure yields a nil payload — callers never receive a partially
// validated result.
func (service *TokenService) VerifyAccess(tokenString string) (*TokenPayload, error) {
	return service.verify(tokenString, ClassAccess)
}

// DecodeRefresh checks signature, issuer, expiry, and the refresh class claim.
//
// A structurally valid refresh token is NOT sufficient to rotate — the caller
// must still match it against a live stored hash record.
func (service *TokenService) DecodeRefresh(tokenString string) (*TokenPayload, error) {
	return service.verify(tokenString, ClassRefresh)
}

func (service *TokenService) verify(tokenString string, wantClass TokenClass) (*TokenPayload, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenPayload{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return service.publicKey, nil
		},
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	payload, ok := token.Claims.(*TokenPayload)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	// Class confusion check: a refresh token presented as an access token
	// (or the reverse) is rejected outright.
	if payload.Class != wantClass {
		return nil, fmt.Errorf("sec: token class mismatch")
	}

	return payload, nil
}

// KeyID returns the public key fingerprint used as the JWT 'kid' header.
func (service *TokenService) KeyID() string {
	return service.keyID
}

// PublicKey exposes the verification key for the JWKS discovery document.
func (service *TokenService) PublicKey() *rsa.PublicKey {
	return service.publicKey
}

// deriveKeyID fingerprints the public key modulus so the kid survives restarts.
func deriveKeyID(key *rsa.PublicKey) string {
	digest := sha256.Sum256(key.N.Bytes())
	return hex.EncodeToString(digest[:8])
}
