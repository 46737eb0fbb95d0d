package access

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dhawalhost/wardgate/pkg/middleware"
)

// EvaluateRequest is the body of an access evaluation call.
type EvaluateRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	ActionType string `json:"action_type"`
}

// HTTPHandler exposes the conditional access API.
type HTTPHandler struct {
	svc      *Service
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new access HTTP handler.
func NewHTTPHandler(svc *Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger, validate: validator.New()}
}

// RegisterRoutes registers the access routes on an authenticated group.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/access/evaluate", h.evaluate)
}

func (h *HTTPHandler) evaluate(c *gin.Context) {
	principal, err := middleware.PrincipalFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	meta := RequestMeta{
		ForwardedFor: c.GetHeader("X-Forwarded-For"),
		RealIP:       c.GetHeader("X-Real-IP"),
		UserAgent:    c.GetHeader("User-Agent"),
		Fingerprint:  c.GetHeader(middleware.DeviceFingerprintHeader),
		ActionType:   req.ActionType,
	}

	result := h.svc.Evaluate(c.Request.Context(), principal, req.SessionID, meta)
	c.JSON(http.StatusOK, result)
}
