package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller's identity on the REST API.
const HeaderUserID = "X-User-ID"

const ctxKeyIdentity = "identity"

// maxIdentityLen matches the reminders.identity column width.
const maxIdentityLen = 128

// Identity stashes the X-User-ID header as the request identity. Requests
// without it keep an empty identity; handlers that need one reject them.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" && len(id) <= maxIdentityLen {
			c.Set(ctxKeyIdentity, id)
		}
		c.Next()
	}
}

// SetIdentity binds identity to the request, e.g. from a webhook's From field.
func SetIdentity(c *gin.Context, identity string) {
	c.Set(ctxKeyIdentity, identity)
}

// IdentityFrom returns the identity bound to the request, or "".
func IdentityFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
