package pdp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
)

// CachingClient wraps a Client with a short-TTL Redis decision cache keyed
// by the request's canonical hash. Redis is an optimization, never an
// authority: any cache error (connection refused, timeout, a nil client)
// fails OPEN straight to the wrapped Client. A cache HIT still decodes and
// schema-validates exactly like a live response would, so a corrupted cache
// entry cannot silently widen access — it simply fails to decode and falls
// through to a live evaluation.
type CachingClient struct {
	next   Client
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingClient wraps next with a Redis-backed decision cache. A nil
// logger defaults to slog.Default().
func NewCachingClient(next Client, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingClient{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func (c *CachingClient) Evaluate(ctx context.Context, req authz.EvaluationRequest) (authz.EvaluationResponse, error) {
	key, keyErr := c.cacheKey(req)
	if keyErr == nil && c.redis != nil {
		if resp, ok := c.lookup(ctx, key); ok {
			return resp, nil
		}
	}

	resp, err := c.next.Evaluate(ctx, req)
	if err != nil {
		return resp, err
	}

	if keyErr == nil && c.redis != nil {
		c.store(ctx, key, resp)
	}
	return resp, nil
}

func (c *CachingClient) cacheKey(req authz.EvaluationRequest) (string, error) {
	hash, err := authz.CanonicalRequestHash(req)
	if err != nil {
		return "", err
	}
	return "authz:decision:" + hash, nil
}

func (c *CachingClient) lookup(ctx context.Context, key string) (authz.EvaluationResponse, bool) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a normal cache miss; anything else is a cache
		// failure we fail open on, logged at Debug since it never gates
		// the decision.
		if err != redis.Nil {
			c.logger.Debug("authz: decision cache lookup failed, falling back to live evaluation", "error", err)
		}
		return authz.EvaluationResponse{}, false
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.logger.Warn("authz: decision cache entry could not be decoded, discarding", "error", err)
		return authz.EvaluationResponse{}, false
	}
	if err := authz.ValidateResponsePayload(decoded); err != nil {
		c.logger.Warn("authz: decision cache entry failed schema validation, discarding", "error", err)
		return authz.EvaluationResponse{}, false
	}

	var resp authz.EvaluationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("authz: decision cache entry could not be unmarshaled into response, discarding", "error", err)
		return authz.EvaluationResponse{}, false
	}
	return resp, true
}

func (c *CachingClient) store(ctx context.Context, key string, resp authz.EvaluationResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.Debug("authz: decision cache encode failed, skipping store", "error", err)
		return
	}
	if err := c.redis.SetEx(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("authz: decision cache store failed", "error", err)
	}
}
