package middleware

import (
	"net/http"

	"github.com/oneshare/signal-server-go/internal/audit"
	apperrors "github.com/oneshare/signal-server-go/internal/errors"
	"github.com/oneshare/signal-server-go/internal/httputil"
	"github.com/oneshare/signal-server-go/internal/service"
)

// RateLimitMiddleware charges one token from the caller's bucket for action
// on every request.
type RateLimitMiddleware struct {
	limits *service.RateLimits
	action service.Action
}

func NewRateLimitMiddleware(limits *service.RateLimits, action service.Action) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limits: limits,
		action: action,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r)

		if !m.limits.Allow(r.Context(), m.action, ip) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"action": string(m.action)},
			})
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
