package jwthandling

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// user roles
const (
	ROLE_ENUMERATOR = "enumerator"
	ROLE_ADMIN      = "admin"
)

// Information a token enocodes
type FieldUserClaims struct {
	Role    string            `json:"role,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
	jwt.RegisteredClaims
}

func (c *FieldUserClaims) IsAdmin() bool {
	return c.Role == ROLE_ADMIN
}

func GenerateNewFieldUserToken(expiresIn time.Duration, id string, role string, payload map[string]string, secretKey string) (tokenString string, err error) {
	claims := FieldUserClaims{
		role,
		payload,
		jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   id,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err = token.SignedString([]byte(secretKey))
	return
}

func ValidateFieldUserToken(tokenString string, secretKey string) (claims *FieldUserClaims, valid bool, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &FieldUserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if token == nil {
		return
	}
	claims, valid = token.Claims.(*FieldUserClaims)
	valid = valid && token.Valid
	return
}
