package middleware

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/observability"
)

const defaultBurst = 10

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit throttles requests per client IP with a token bucket.
// It is a no-op when cfg is nil or cfg.RPS <= 0.
func RateLimit(cfg *config.RateLimitConfig) Middleware {
	if cfg == nil || cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	limiters := &limiterPool{
		m:     make(map[string]*rate.Limiter),
		rps:   rate.Limit(cfg.RPS),
		burst: burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiters.Allow(key) {
				observability.FromContext(r.Context()).Warn("rate limit exceeded",
					observability.String("client", key))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
