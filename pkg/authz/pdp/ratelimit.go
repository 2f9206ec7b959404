package pdp

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
)

// RateLimitedClient wraps a Client with a token-bucket limiter protecting a
// remote PDP backend from caller-side overload. A request that cannot
// acquire a token before its context is done surfaces as
// ServiceUnavailable — explicitly retriable per the transport error
// taxonomy — rather than hanging indefinitely or silently granting access.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps next with a limiter allowing rps requests per
// second, with the given burst.
func NewRateLimitedClient(next Client, rps rate.Limit, burst int) *RateLimitedClient {
	return &RateLimitedClient{next: next, limiter: rate.NewLimiter(rps, burst)}
}

func (c *RateLimitedClient) Evaluate(ctx context.Context, req authz.EvaluationRequest) (authz.EvaluationResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return authz.EvaluationResponse{}, NewError(CodeServiceUnavailable, "rate limit wait failed", err)
	}
	return c.next.Evaluate(ctx, req)
}
