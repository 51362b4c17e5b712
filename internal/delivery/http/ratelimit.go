package http

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"socialnet/infrastructure/cache"

	"golang.org/x/time/rate"
)

const visitorTTL = 10 * time.Minute

// RateLimiter hands out one token bucket per client IP. Buckets live in a MemCache and are
// evicted after visitorTTL without requests.
type RateLimiter struct {
	visitors *cache.MemCache
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(visitors *cache.MemCache, rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: visitors,
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	v := rl.visitors.GetOrCreate("ratelimit:"+ip, visitorTTL, func() any {
		return rate.NewLimiter(rl.rps, rl.burst)
	})
	return v.(*rate.Limiter)
}

// retryAfter is the whole number of seconds until one more token is available.
func (rl *RateLimiter) retryAfter() int {
	if rl.rps <= 0 {
		return int(visitorTTL.Seconds())
	}
	return max(1, int(math.Ceil(1/float64(rl.rps))))
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !rl.limiter(ip).Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
