package rankinghttp

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// pruneAbove is the bucket count past which idle clients are dropped.
	pruneAbove = 500
	// idleAfter is how long a client may go unseen before its bucket is dropped.
	idleAfter = 10 * time.Minute
)

// Limit is the request budget of one traffic class.
type Limit struct {
	Rate  rate.Limit
	Burst int
}

// RouteLimits holds the budgets of the two traffic classes. Read routes are
// keyed by client IP; admin routes by the token subject.
type RouteLimits struct {
	Read  *ClientLimiter
	Admin *ClientLimiter
}

// NewRouteLimits builds a limiter per traffic class.
func NewRouteLimits(read, admin Limit) RouteLimits {
	return RouteLimits{Read: NewClientLimiter(read), Admin: NewClientLimiter(admin)}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key.
type ClientLimiter struct {
	limit Limit
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewClientLimiter creates a limiter granting each client the budget l.
func NewClientLimiter(l Limit) *ClientLimiter {
	return &ClientLimiter{
		limit:   l,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may make a request now.
func (c *ClientLimiter) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.buckets) > pruneAbove {
		for k, b := range c.buckets {
			if now.Sub(b.lastSeen) > idleAfter {
				delete(c.buckets, k)
			}
		}
	}

	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(c.limit.Rate, c.limit.Burst)}
		c.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (c *ClientLimiter) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// retryAfter is the whole number of seconds until one token refills.
func (c *ClientLimiter) retryAfter() string {
	if c.limit.Rate <= 0 || c.limit.Rate == rate.Inf {
		return "60"
	}
	return strconv.Itoa(max(1, int(math.Ceil(1/float64(c.limit.Rate)))))
}

// LimitByIP rejects clients that exceed their budget, keyed by remote IP.
func LimitByIP(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return limitBy(limiter, clientIP)
}

// LimitBySubject rejects admin callers that exceed their budget. It must run
// after BearerAuth; requests without claims fall back to the remote IP.
func LimitBySubject(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return limitBy(limiter, func(r *http.Request) string {
		if claims, ok := ClaimsFrom(r.Context()); ok && claims.Subject != "" {
			return "sub:" + claims.Subject
		}
		return clientIP(r)
	})
}

func limitBy(limiter *ClientLimiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(key(r)) {
				w.Header().Set("Retry-After", limiter.retryAfter())
				writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
