package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Action names a rate-limited operation. It is the first half of every
// limiter key.
type Action string

const (
	ActionAPICreate Action = "api-create"
	ActionAPIClose  Action = "api-close"
	ActionWSCreate  Action = "ws-create"
	ActionWSJoin    Action = "ws-join"
)

// Policy is a token bucket shape.
type Policy struct {
	Capacity     float64
	RefillPerSec float64
}

// DefaultPolicies are the per-action budgets.
var DefaultPolicies = map[Action]Policy{
	ActionAPICreate: {Capacity: 20, RefillPerSec: 0.5},
	ActionAPIClose:  {Capacity: 20, RefillPerSec: 0.5},
	ActionWSCreate:  {Capacity: 10, RefillPerSec: 0.2},
	ActionWSJoin:    {Capacity: 20, RefillPerSec: 0.5},
}

// LimiterFactory builds the limiter backing one action.
type LimiterFactory func(Policy) Limiter

// MemoryLimiters builds in-process limiters.
func MemoryLimiters(p Policy) Limiter {
	return NewTokenBucketLimiter(p.Capacity, p.RefillPerSec)
}

// RateLimits holds one long-lived limiter per action.
type RateLimits struct {
	limiters map[Action]Limiter
}

func NewRateLimits(policies map[Action]Policy, factory LimiterFactory) *RateLimits {
	limiters := make(map[Action]Limiter, len(policies))
	for action, policy := range policies {
		limiters[action] = factory(policy)
	}
	return &RateLimits{limiters: limiters}
}

// Allow checks the bucket "<action>:<identity>". Actions without a policy
// are always admitted.
func (r *RateLimits) Allow(ctx context.Context, action Action, identity string) bool {
	limiter, ok := r.limiters[action]
	if !ok {
		return true
	}
	if limiter.Allow(ctx, string(action)+":"+identity) {
		return true
	}
	log.Warn().
		Str("action", string(action)).
		Str("identity", identity).
		Msg("rate limit exceeded")
	return false
}
