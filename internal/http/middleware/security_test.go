package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveWithSecurity(opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_BaselineOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := serveWithSecurity(SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/api/v1/reminders", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Content-Security-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct{ existing, want string }{
		"empty":     {"", "X-Request-ID"},
		"append":    {"Idempotency-Replayed", "Idempotency-Replayed, X-Request-ID"},
		"no repeat": {"X-Request-ID, Retry-After", "X-Request-ID, Retry-After"},
	}
	for name, tc := range cases {
		pre := func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-1")
			if tc.existing != "" {
				c.Header("Access-Control-Expose-Headers", tc.existing)
			}
			c.Next()
		}
		h := serveWithSecurity(SecurityOptions{}, pre, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
			t.Fatalf("%s: expose = %q; want %q", name, got, tc.want)
		}
	}
}

func TestSecurityHeaders_WithPolicy_NoStore_HSTS_TLS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{
		EnableHSTS:      true,
		HSTSMaxAge:      24 * time.Hour, // 86400
		NoStorePrefixes: []string{"/api/v1", "/webhook/"},
		EnablePolicy:    true,
	}))
	r.GET("/api/v1/reminders", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.GET("/app.js", func(c *gin.Context) { c.String(http.StatusOK, "//") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders", nil)
	// simulate HTTPS via TLS
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)

	h := w.Header()
	// policy headers
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if !strings.Contains(h.Get("Permissions-Policy"), "microphone=(self)") {
		t.Fatalf("voice notes need same-origin microphone access: %q", h.Get("Permissions-Policy"))
	}
	if csp := h.Get("Content-Security-Policy"); csp != DefaultContentSecurityPolicy || !strings.Contains(csp, "connect-src 'self' ws: wss:") {
		t.Fatalf("web client needs its websocket in CSP: %q", csp)
	}
	// cache headers on the API
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	// HSTS
	wantHSTS := "max-age=86400; includeSubDomains; preload"
	if h.Get("Strict-Transport-Security") != wantHSTS {
		t.Fatalf("expected HSTS %q, got %q", wantHSTS, h.Get("Strict-Transport-Security"))
	}

	// static assets stay cacheable
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Fatalf("static asset must be cacheable, got %q", w.Header().Get("Cache-Control"))
	}
}

func TestSecurityHeaders_CustomCSP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnablePolicy: true, ContentSecurityPolicy: "default-src 'none'"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Content-Security-Policy"); got != "default-src 'none'" {
		t.Fatalf("custom CSP = %q", got)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	plain := serveWithSecurity(opt, nil, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := plain.Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS on plain http: %q", got)
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if got := serveWithSecurity(opt, nil, proxied).Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS behind proxy = %q", got)
	}
}

func Test_hasAnyPrefix(t *testing.T) {
	prefixes := []string{"", "/api/v1", "/webhook/", "/process_voice"}
	cases := map[string]bool{
		"/api/v1/reminders": true,
		"/webhook/whatsapp": true,
		"/process_voice":    true,
		"/tts/reply.mp3":    false,
		"/":                 false,
		"/webhook":          false,
	}
	for path, want := range cases {
		if got := hasAnyPrefix(path, prefixes); got != want {
			t.Fatalf("hasAnyPrefix(%q) = %v; want %v", path, got, want)
		}
	}
	if hasAnyPrefix("/anything", nil) {
		t.Fatalf("no prefixes must never match")
	}
}
