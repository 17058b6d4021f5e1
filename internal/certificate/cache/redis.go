// Package cache provides a Redis-backed cache for verification results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"attest/internal/certificate/models"
	"attest/internal/fingerprint"
	platformredis "attest/internal/platform/redis"
)

// Redis caches verification results keyed by fingerprint. Entries expire
// after the configured TTL. Lookups populate the cache with Add, which
// never replaces an existing entry; revocation publishes the fresh result
// with Set, which does. A lookup racing a revocation therefore cannot put
// a stale active entry back over the revoked one. Results for unknown
// fingerprints are not cached, so a later issuance is visible immediately.
type Redis struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedis(client *platformredis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(fp fingerprint.Digest) string {
	return "verify:" + fp.Hex(false)
}

// Get returns the cached result and whether the key was present.
func (c *Redis) Get(ctx context.Context, fp fingerprint.Digest) (*models.VerificationResult, bool, error) {
	raw, err := c.client.Get(ctx, key(fp)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var result models.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &result, true, nil
}

// Add stores the result with the configured TTL, keeping any entry that is
// already present.
func (c *Redis) Add(ctx context.Context, fp fingerprint.Digest, result *models.VerificationResult) error {
	raw, err := encode(result)
	if err != nil {
		return err
	}
	if err := c.client.SetNX(ctx, key(fp), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache add: %w", err)
	}
	return nil
}

// Set stores the result with the configured TTL, replacing any entry.
func (c *Redis) Set(ctx context.Context, fp fingerprint.Digest, result *models.VerificationResult) error {
	raw, err := encode(result)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key(fp), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func encode(result *models.VerificationResult) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return raw, nil
}
