// Package ratelimit throttles public endpoints per client IP with a token
// bucket per client.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	dErrors "certify/pkg/domain-errors"
	"certify/pkg/platform/httputil"
	"certify/pkg/requestcontext"
)

// idleExpiry drops limiters for clients that have gone quiet.
const idleExpiry = 10 * time.Minute

// PerClient holds one limiter per client IP.
type PerClient struct {
	limit    rate.Limit
	burst    int
	limiters *gocache.Cache
	mu       sync.Mutex
	logger   *slog.Logger
}

// New returns a limiter allowing perSecond sustained requests and burst
// extra. A non-positive perSecond disables limiting.
func New(perSecond float64, burst int, logger *slog.Logger) *PerClient {
	if burst <= 0 {
		burst = 1
	}
	return &PerClient{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: gocache.New(idleExpiry, idleExpiry),
		logger:   logger,
	}
}

func (p *PerClient) limiterFor(client string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters.Get(client); ok {
		p.limiters.SetDefault(client, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters.SetDefault(client, l)
	return l
}

// Allow reports whether the client may proceed now and, when not, how long
// it should wait.
func (p *PerClient) Allow(client string) (bool, time.Duration) {
	if p.limit <= 0 {
		return true, 0
	}
	r := p.limiterFor(client).Reserve()
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Middleware answers 429 with Retry-After once a client exhausts its bucket.
// It relies on the metadata middleware for the client IP.
func (p *PerClient) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		client := requestcontext.ClientIP(ctx)
		if client == "" {
			client = r.RemoteAddr
		}
		ok, wait := p.Allow(client)
		if !ok {
			p.logger.WarnContext(ctx, "rate limit exceeded",
				"client_ip", client,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
