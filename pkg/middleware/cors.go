package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DeviceFingerprintHeader carries the opaque client-supplied device token.
const DeviceFingerprintHeader = "X-Device-Fingerprint"

// CORS returns a permissive CORS policy. The evaluate endpoint is called
// directly from browser session-establishment code, so any origin is allowed
// and the device-fingerprint header is whitelisted for preflight.
func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", DeviceFingerprintHeader},
		MaxAge:          12 * time.Hour,
	}
	return cors.New(cfg)
}
