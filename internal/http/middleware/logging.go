// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the correlation ID, panic recovery and the accessor for
// the request-scoped logger. Chain order is RequestID, RedactingLogger,
// then Recovery, so panics are logged with the correlation ID.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// twilioTokenHeader is unique per webhook delivery and repeated on
	// Twilio's own retries, which makes it a good correlation ID.
	twilioTokenHeader = "I-Twilio-Idempotency-Token"

	maxQueryLogLength = 2048
)

// Client-supplied IDs end up in logs and headers, so only a safe subset is
// accepted.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// panicTwiML keeps a Twilio conversation alive when a webhook handler panics.
const panicTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Message>Perdón, tuve un problema para responder. ¿Probamos de nuevo?</Message></Response>`

// RequestID attaches a correlation ID to the request. A valid X-Request-ID
// is reused, then Twilio's idempotency token, otherwise a new UUIDv4. The ID
// is echoed in X-Request-ID and stored in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = c.GetHeader(twilioTokenHeader)
			if !requestIDPattern.MatchString(rid) {
				rid = uuid.NewString()
			}
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery turns a panic into a logged stack trace and a 500 JSON error.
// Twilio webhooks get a 200 TwiML apology instead, since Twilio drops the
// reply on any non-2xx status.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := asString(c.Value(requestIDKey))
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			if twilioSender(c) != "" {
				c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(panicTwiML))
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger attached by RedactingLogger, or the global
// logger when there is none.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to at most max bytes on a rune boundary and appends an
// ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
