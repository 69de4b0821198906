// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhvodang/lucent/internal/platform/apperr"
	"github.com/minhvodang/lucent/internal/platform/constants"
)

// # Authorization Code Store

// RedisAuthCodeStore implements AuthCodeStore using Redis.
//
// Redis gives us the two properties authorization codes need for free:
// TTL-based expiry and an atomic consume (GETDEL), so a code can never be
// redeemed twice even under concurrent presentation.
type RedisAuthCodeStore struct {
	client *redis.Client
}

// NewAuthCodeStore creates a new Redis-backed AuthCodeStore.
func NewAuthCodeStore(client *redis.Client) *RedisAuthCodeStore {
	return &RedisAuthCodeStore{client: client}
}

/*
Create stores the grant under the code for a limited duration.

Parameters:
  - context: context.Context
  - code: string
  - grant: AuthCodeGrant
  - ttl: time.Duration

Returns:
  - error: Marshal or storage failures
*/
func (store *RedisAuthCodeStore) Create(context context.Context, code string, grant AuthCodeGrant, ttl time.Duration) error {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixAuthCode, code)

	// Serialize the grant payload
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("redis_auth_code_marshal_failed: %w", err)
	}

	// Set the code with TTL
	if err := store.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_auth_code_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Consume atomically retrieves and deletes the grant for the code.

Description: Uses GETDEL so only one caller can ever observe the grant;
absent, expired, and already-consumed codes are indistinguishable.

Parameters:
  - context: context.Context
  - code: string

Returns:
  - *AuthCodeGrant: The bound grant
  - error: apperr.NotFound or connectivity errors
*/
func (store *RedisAuthCodeStore) Consume(context context.Context, code string) (*AuthCodeGrant, error) {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixAuthCode, code)

	// Atomically fetch and delete the code
	payload, err := store.client.GetDel(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Authorization code is invalid or expired")
		}
		return nil, fmt.Errorf("redis_auth_code_getdel_failed: %w", err)
	}

	// Deserialize the grant payload
	grant := &AuthCodeGrant{}
	if err := json.Unmarshal([]byte(payload), grant); err != nil {
		return nil, fmt.Errorf("redis_auth_code_unmarshal_failed: %w", err)
	}

	// Return the grant
	return grant, nil
}
