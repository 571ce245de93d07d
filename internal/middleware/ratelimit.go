package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ampflux/internal/models"
)

// RateLimitConfig describes a per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 // sustained rate (tokens per second)
	Burst             int     // burst ceiling
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per-IP token-bucket limit. Exceeding it yields 429
// with a Retry-After hint. Keyed by RemoteAddr only: X-Forwarded-For is
// spoofable and must not be trusted for limiting.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	// drop limiters not seen for a while
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for ip, cl := range clients {
				if time.Since(cl.lastSeen) > 10*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	getLimiter := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if cl, ok := clients[ip]; ok {
			cl.lastSeen = time.Now()
			return cl.limiter
		}
		cl := &clientLimiter{
			limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			lastSeen: time.Now(),
		}
		clients[ip] = cl
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !getLimiter(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				models.WriteProblem(w, http.StatusTooManyRequests,
					"Too Many Requests", "rate limit exceeded", nil)
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
