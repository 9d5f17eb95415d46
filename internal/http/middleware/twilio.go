package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SignatureVerifier checks a webhook signature for a public URL and its form
// parameters.
type SignatureVerifier interface {
	Valid(url string, params map[string]string, signature string) bool
}

// TwilioSignature rejects webhook posts whose X-Twilio-Signature does not
// match. Twilio signs the public URL it called, so publicBaseURL (scheme and
// host as seen by Twilio) replaces the local host; when empty, the request's
// own scheme and host are used.
func TwilioSignature(v SignatureVerifier, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, vv := range c.Request.PostForm {
			if len(vv) > 0 {
				params[k] = vv[0]
			}
		}
		base := publicBaseURL
		if base == "" {
			base = RequestBaseURL(c.Request)
		}
		if !v.Valid(base+c.Request.URL.RequestURI(), params, c.GetHeader("X-Twilio-Signature")) {
			LoggerFrom(c).Warn().Msg("twilio signature rejected")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// RequestBaseURL returns scheme://host for r, honoring X-Forwarded-Proto.
func RequestBaseURL(r *http.Request) string {
	scheme := "http"
	if isHTTPS(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
