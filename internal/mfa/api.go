package mfa

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/dhawalhost/wardgate/pkg/middleware"
)

const totpIssuer = "WardGate"

// VerifyRequest is the request to verify a TOTP code after a challenge
// decision.
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// EnrollResponse contains the secret and provisioning URL for enrollment.
type EnrollResponse struct {
	Secret  string `json:"secret"`
	OTPAuth string `json:"otpauth_url"`
}

// HTTPHandler handles MFA challenge resolution over HTTP.
type HTTPHandler struct {
	store  TOTPStore
	logger *zap.Logger
}

// NewHTTPHandler creates a new MFA HTTP handler.
func NewHTTPHandler(store TOTPStore, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{store: store, logger: logger}
}

// RegisterRoutes registers MFA routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mfa := rg.Group("/mfa")
	{
		mfa.POST("/enroll", h.enroll)
		mfa.POST("/verify", h.verify)
	}
}

func (h *HTTPHandler) enroll(c *gin.Context) {
	principal, err := middleware.PrincipalFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: principal,
	})
	if err != nil {
		h.logger.Error("Failed to generate TOTP key", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate secret"})
		return
	}

	secret := &TOTPSecret{PrincipalID: principal, Secret: key.Secret()}
	if err := h.store.Upsert(c.Request.Context(), secret); err != nil {
		h.logger.Error("Failed to store TOTP secret", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store secret"})
		return
	}

	c.JSON(http.StatusOK, EnrollResponse{Secret: key.Secret(), OTPAuth: key.URL()})
}

func (h *HTTPHandler) verify(c *gin.Context) {
	principal, err := middleware.PrincipalFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	secret, err := h.store.GetByPrincipal(c.Request.Context(), principal)
	if err != nil {
		h.logger.Error("Failed to load TOTP secret", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load secret"})
		return
	}
	if secret == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not enrolled"})
		return
	}

	if !totp.Validate(req.Code, secret.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": "invalid code"})
		return
	}

	if !secret.Verified {
		if err := h.store.MarkVerified(c.Request.Context(), secret.ID); err != nil {
			h.logger.Warn("Failed to mark TOTP secret verified", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}
