package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const BearerContextKey = "middleware.bearer"

// Bearer copies the token of an "Authorization: Bearer <token>" header into
// the gin context. A missing or malformed header leaves it unset; handlers
// decide whether a token is required.
func Bearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := parseBearer(c.GetHeader("Authorization")); ok {
			c.Set(BearerContextKey, token)
		}
		c.Next()
	}
}

// BearerFromContext returns the token and whether an Authorization header was
// sent at all (even an unparseable one).
func BearerFromContext(c *gin.Context) (string, bool) {
	if v, ok := c.Get(BearerContextKey); ok {
		return v.(string), true
	}
	return "", c.GetHeader("Authorization") != ""
}

func parseBearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
