package middlewares

import (
	"net"
	"net/http"
	"sync"
	"time"

	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter throttles per caller with a token bucket and blocks callers
// that exhaust it for blockTime. Callers are keyed by identity when one is
// present, otherwise by IP.
type RateLimiter struct {
	log       *zap.Logger
	limiters  map[string]*rate.Limiter
	blocked   map[string]time.Time
	mu        sync.Mutex
	requests  int
	per       time.Duration
	blockTime time.Duration
}

func NewRateLimiter(log *zap.Logger, requests int, per, blockTime time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &RateLimiter{
		log:       log,
		limiters:  make(map[string]*rate.Limiter),
		blocked:   make(map[string]time.Time),
		requests:  requests,
		per:       per,
		blockTime: blockTime,
	}
}

func (r *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := limiterKey(req)

		if !r.allow(key, time.Now()) {
			r.log.Warn("RateLimiter.Limit rejected request",
				zap.String(constvars.LoggingRequestIDKey, utils.GetRequestIDFromContext(req.Context())),
				zap.String(constvars.LoggingDataKey, key),
			)
			utils.BuildErrorResponse(r.log, w, exceptions.ErrTooManyRequests(nil))
			return
		}

		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blockedUntil, found := r.blocked[key]; found {
		if now.Before(blockedUntil) {
			return false
		}
		delete(r.blocked, key)
	}

	limiter, exists := r.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(r.per/time.Duration(r.requests)), r.requests)
		r.limiters[key] = limiter
	}

	if !limiter.AllowN(now, 1) {
		r.blocked[key] = now.Add(r.blockTime)
		return false
	}
	return true
}

func limiterKey(req *http.Request) string {
	if participant, ok := utils.GetIdentityFromContext(req.Context()); ok {
		return "user:" + participant.UserID
	}
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		ip = req.RemoteAddr
	}
	return "ip:" + ip
}

// StreamConnectLimiter throttles how often one caller may open session streams.
func (m *Middlewares) StreamConnectLimiter() *RateLimiter {
	return NewRateLimiter(
		m.Log,
		m.InternalConfig.Stream.ConnectsPerMinute,
		time.Minute,
		time.Duration(m.InternalConfig.Stream.ConnectBlockTimeInSeconds)*time.Second,
	)
}
