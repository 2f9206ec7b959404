package pdp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
)

// newTestRedis connects to a local Redis and skips the test if one isn't
// reachable, matching how this core's teacher tests its own Redis-backed
// limiter store.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		t.Skip("skipping decision cache test: redis not available")
	}
	return rdb
}

func TestCachingClientIntegration_HitAndMiss(t *testing.T) {
	rdb := newTestRedis(t)
	defer rdb.Close()

	tid := uuid.New()
	next := &stubClient{resp: authz.EvaluationResponse{
		Decision: true,
		Constraints: []authz.Constraint{
			{Predicates: []authz.Predicate{authz.InPredicate{Property: "owner_tenant_id", Values: []uuid.UUID{tid}}}},
		},
	}}
	client := NewCachingClient(next, rdb, time.Minute, slog.Default())

	req := authz.EvaluationRequest{
		Subject:  authz.Subject{ID: uuid.New()},
		Action:   authz.Action{Name: "widgets.read"},
		Resource: authz.Resource{ResourceType: "widget"},
		Context:  authz.Context{RequireConstraints: true},
	}

	key, err := client.cacheKey(req)
	require.NoError(t, err)
	defer rdb.Del(context.Background(), key)

	resp1, err := client.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp1.Decision)
	assert.Equal(t, 1, next.calls)

	// Second call must be served from cache, without invoking next again.
	resp2, err := client.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, resp1.Decision, resp2.Decision)
	assert.Equal(t, 1, next.calls)
}

func TestCachingClientIntegration_CorruptEntryFailsThrough(t *testing.T) {
	rdb := newTestRedis(t)
	defer rdb.Close()

	next := &stubClient{resp: authz.EvaluationResponse{Decision: true}}
	client := NewCachingClient(next, rdb, time.Minute, slog.Default())

	req := authz.EvaluationRequest{
		Subject:  authz.Subject{ID: uuid.New()},
		Action:   authz.Action{Name: "widgets.read"},
		Resource: authz.Resource{ResourceType: "widget"},
	}

	key, err := client.cacheKey(req)
	require.NoError(t, err)
	defer rdb.Del(context.Background(), key)

	require.NoError(t, rdb.Set(context.Background(), key, "{not json", time.Minute).Err())

	resp, err := client.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Decision)
	assert.Equal(t, 1, next.calls, "a corrupt cache entry must fall through to a live evaluation")
}

func TestCachingClientEvaluateFailsOpenWhenRedisNil(t *testing.T) {
	next := &stubClient{resp: authz.EvaluationResponse{Decision: true}}
	client := NewCachingClient(next, nil, time.Minute, nil)

	resp, err := client.Evaluate(context.Background(), authz.EvaluationRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Decision)
	assert.Equal(t, 1, next.calls)
}
