// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders. The web chat page is served from the
// same origin as the API, so the content policy allows same-origin scripts,
// the websocket back to this host, and microphone capture for voice notes.
// HSTS is opt-in and only sent on HTTPS requests.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultContentSecurityPolicy fits the bundled web client.
const DefaultContentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; media-src 'self' blob:; connect-src 'self' ws: wss:; frame-ancestors 'none'"

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge time.Duration // defaults to 180 days

	// NoStorePrefixes disables caching for paths with one of these prefixes,
	// such as the API and webhook replies. Static assets stay cacheable.
	NoStorePrefixes []string

	// EnablePolicy adds Permissions-Policy and a Content-Security-Policy.
	EnablePolicy bool
	// ContentSecurityPolicy overrides DefaultContentSecurityPolicy.
	ContentSecurityPolicy string
}

// SecurityHeaders returns a Gin middleware adding security headers to every
// response:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// plus the optional policy, no-store and HSTS headers described on
// SecurityOptions. X-Request-ID is added to Access-Control-Expose-Headers
// so the web client can show it in error reports.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	csp := opt.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultContentSecurityPolicy
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(self), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			h.Set("Content-Security-Policy", csp)
		}

		if hasAnyPrefix(c.Request.URL.Path, opt.NoStorePrefixes) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get(requestIDHeader) != "" {
			const hdr = "Access-Control-Expose-Headers"
			switch cur := h.Get(hdr); {
			case cur == "":
				h.Set(hdr, requestIDHeader)
			case !strings.Contains(cur, requestIDHeader):
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request used HTTPS directly or behind a proxy
// that set X-Forwarded-Proto: https. Twilio signatures are computed over
// the public https URL, so the webhook check relies on this too.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
