package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "wardgate_principal"

// ErrNoPrincipal is returned when a handler runs without an authenticated principal.
var ErrNoPrincipal = errors.New("no principal in request context")

// BearerAuth validates the Authorization bearer token and stores the
// authenticated principal (JWT subject) on the gin context. Requests without
// a valid token are rejected before any handler logic runs.
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}

		c.Set(principalKey, sub)
		c.Next()
	}
}

// WithPrincipal injects a fixed principal, standing in for BearerAuth in
// tests.
func WithPrincipal(principal string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the principal set by BearerAuth.
func PrincipalFromContext(c *gin.Context) (string, error) {
	v, ok := c.Get(principalKey)
	if !ok {
		return "", ErrNoPrincipal
	}
	principal, ok := v.(string)
	if !ok || principal == "" {
		return "", ErrNoPrincipal
	}
	return principal, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
