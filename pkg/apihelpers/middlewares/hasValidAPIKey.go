package middlewares

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const HeaderAPIKey = "Api-Key"

// HasValidAPIKey guards service-to-service endpoints, such as the session timeout sweep.
func HasValidAPIKey(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		keysInHeader := c.Request.Header.Values(HeaderAPIKey)
		if len(keysInHeader) < 1 {
			slog.Warn("A valid API key missing", slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "A valid API key missing"})
			return
		}

		for _, k := range keysInHeader {
			for _, vk := range validKeys {
				if vk != "" && subtle.ConstantTimeCompare([]byte(k), []byte(vk)) == 1 {
					c.Next()
					return
				}
			}
		}

		// If no keys matched:
		slog.Warn("A valid API key missing", slog.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "A valid API key missing"})
	}
}
