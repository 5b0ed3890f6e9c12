package middleware

import (
	"strings"

	"github.com/erp/stockflow/internal/infrastructure/backend"
	"github.com/gin-gonic/gin"
)

// ForwardAuthToken copies the caller's bearer token into the request context so backend
// calls made on its behalf carry the same credentials. Tokens are passed through as is;
// the backend is responsible for validating them.
func ForwardAuthToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			c.Request = c.Request.WithContext(backend.WithAuthToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
