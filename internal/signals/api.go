package signals

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// IngestRequest is the payload for reporting a security event.
type IngestRequest struct {
	PrincipalID string `json:"principal_id" validate:"required"`
	SessionID   string `json:"session_id"`
	EventType   string `json:"event_type" validate:"required"`
	Severity    string `json:"severity" validate:"omitempty,oneof=low medium high"`
	Reason      string `json:"reason"`
	EventTime   string `json:"event_time"` // RFC3339, optional
}

// HTTPHandler handles security event HTTP requests.
type HTTPHandler struct {
	store    Store
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new signals HTTP handler.
func NewHTTPHandler(store Store, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{store: store, logger: logger, validate: validator.New()}
}

// RegisterRoutes registers signal ingestion routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signals", h.ingest)
}

func (h *HTTPHandler) ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &SecurityEvent{
		PrincipalID: req.PrincipalID,
		SessionID:   req.SessionID,
		EventType:   req.EventType,
		Severity:    req.Severity,
		Reason:      req.Reason,
	}
	if req.EventTime != "" {
		t, err := time.Parse(time.RFC3339, req.EventTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_time must be RFC3339"})
			return
		}
		event.EventTime = t
	}

	if err := h.store.Ingest(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to ingest security event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest event"})
		return
	}

	c.JSON(http.StatusCreated, event)
}
