// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package api

import (
	"net/http"

	"github.com/go-jose/go-jose/v4"

	"github.com/minhvodang/lucent/internal/platform/respond"
)

// KeySetProvider exposes the verification keys for public discovery.
type KeySetProvider interface {
	JWKS() jose.JSONWebKeySet
}

// NewJWKSHandler serves the JSON Web Key Set at /.well-known/jwks.json.
//
// Subdomain backends and third parties fetch this document to verify
// RS256 access tokens locally, without calling back into the identity
// service. Only public key material is ever included.
func NewJWKSHandler(provider KeySetProvider) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		// Key rotation is infrequent; let intermediaries cache the document.
		writer.Header().Set("Cache-Control", "public, max-age=3600")
		respond.OK(writer, provider.JWKS())
	}
}
