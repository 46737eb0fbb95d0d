package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders adds common security headers to every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Next()
	}
}
