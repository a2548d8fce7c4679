package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jwthandling "github.com/case-framework/field-survey-backend/pkg/jwt-handling"
	"github.com/gin-gonic/gin"
)

const HeaderAuthorization = "Authorization"

// GetAndValidateFieldUserJWT is a middleware that extracts the JWT from the request and validates it
func GetAndValidateFieldUserJWT(tokenSignKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			slog.Warn("no Authorization token found")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		// Parse and validate token
		parsedToken, ok, err := jwthandling.ValidateFieldUserToken(token, tokenSignKey)
		if err != nil || !ok {
			errMsg := "invalid token"
			if err != nil {
				errMsg = err.Error()
			}
			slog.Warn("token validation failed", slog.String("error", errMsg))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "error during token validation"})
			c.Abort()
			return
		}
		if parsedToken.Subject == "" {
			slog.Warn("token without subject")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "error during token validation"})
			c.Abort()
			return
		}
		c.Set("validatedToken", parsedToken)
	}
}

func extractToken(c *gin.Context) (string, error) {
	req := c.Request

	var token string
	tokens, ok := req.Header[HeaderAuthorization]
	if ok && len(tokens) > 0 {
		token = tokens[0]
		token = strings.TrimPrefix(token, "Bearer ")
		if len(token) == 0 {
			return token, errors.New("No token found in Authorization header")
		}
	} else {
		return token, errors.New("No Authorization header found")
	}
	return token, nil
}
