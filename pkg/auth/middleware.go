// Package auth gates the HTTP surface with static API keys and a
// per-caller rate limit. Identity itself comes from an external
// provider; callers pass the acting user's email per request.
package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chatdb/pkg/logger"
	"chatdb/pkg/metrics"
)

// Gate holds the configured key set and limiter pool.
type Gate struct {
	keys    map[string]struct{}
	limiter limiterPool
}

// NewGate builds a Gate. An empty key list disables the key check
// (local development); the rate limit always applies.
func NewGate(apiKeys []string, rps float64, burst int) *Gate {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Gate{keys: keys, limiter: limiterPool{rps: rps, burst: burst}}
}

// Middleware enforces the API key and rate limit for every request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if len(g.keys) > 0 {
			if _, ok := g.keys[key]; !ok {
				logger.Log.Warn("invalid_api_key", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
		}
		limitKey := key
		if limitKey == "" {
			limitKey = r.RemoteAddr
		}
		if !g.limiter.Allow(limitKey) {
			metrics.RateLimitHits.Inc()
			logger.Log.Warn("rate_limited", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
