// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with
// per-caller buckets. Every inbound message may cost a model call, so the
// limiter guards the webhooks and the REST API alike; health checks, metric
// scrapes and the audio Twilio fetches back are exempt.
//
// The limiter is process-local, like the reminder store.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Bucket key prefixes.
const (
	keyPrefixIdentity = "id:"
	keyPrefixSender   = "from:"
	keyPrefixIP       = "ip:"
)

// throttledTwiML is answered to a throttled Twilio sender. Twilio treats a
// non-2xx reply as a failed webhook and the user would hear nothing.
const throttledTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Message>Estás enviando muchos mensajes seguidos. Esperá un momento y probá de nuevo.</Message></Response>`

// keyFunc selects the caller used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIdentityOrIP keys buckets by the request identity when one is bound,
// by the Twilio sender for webhook form posts (Twilio calls from a shared
// pool of addresses), and by client IP otherwise.
func KeyByIdentityOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := IdentityFrom(c); id != "" {
			return keyPrefixIdentity + id
		}
		if from := twilioSender(c); from != "" {
			return keyPrefixSender + from
		}
		return keyPrefixIP + c.ClientIP()
	}
}

func twilioSender(c *gin.Context) string {
	if c.Request.Method != http.MethodPost || !strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		return ""
	}
	return c.PostForm("From")
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. Buckets idle
// for longer than ttl are swept at most once per ttl. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	skip  []string

	mu        sync.Mutex
	visitors  map[string]*visitor
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter returns a limiter granting rps tokens per second with the
// given burst (coerced to >= 1). Requests whose path starts with one of
// skipPrefixes are never limited.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, skipPrefixes ...string) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		keyFn:     keyFn,
		skip:      skipPrefixes,
		visitors:  make(map[string]*visitor),
		ttl:       10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// getVisitor returns the limiter for key, creating it if absent. Idle
// buckets are swept before the lookup, so an expired bucket is replaced by
// a full one.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which is served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (rl *RateLimiter) skipped(path string) bool {
	for _, p := range rl.skip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler returns a Gin middleware that enforces per-key limits. A throttled
// Twilio sender gets a polite TwiML reply with status 200; anyone else gets
// 429 with Retry-After set to the seconds until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.skipped(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		lim := rl.getVisitor(key)
		if lim.Allow() {
			c.Next()
			return
		}

		if strings.HasPrefix(key, keyPrefixSender) {
			c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(throttledTwiML))
			c.Abort()
			return
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the whole number of seconds until lim grants a token, at
// least 1.
func retryAfter(lim *rate.Limiter) int {
	r := lim.Reserve()
	defer r.Cancel()
	if !r.OK() {
		return 1
	}
	return max(1, int(math.Ceil(r.Delay().Seconds())))
}
