// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package sec

import (
	"github.com/go-jose/go-jose/v4"
)

// JWKS returns the public JSON Web Key Set describing the signing key.
//
// The document carries the algorithm, use, and kid only — verification
// material, never private key material. Served on the well-known discovery
// endpoint so subdomain services can validate tokens locally.
func (service *TokenService) JWKS() jose.JSONWebKeySet {
	key := jose.JSONWebKey{
		Key:       service.publicKey,
		KeyID:     service.keyID,
		Algorithm: "RS256",
		Use:       "sig",
	}

	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{key.Public()}}
}
