package audit

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler handles audit log HTTP requests.
type HTTPHandler struct {
	svc    Service
	logger *zap.Logger
}

// NewHTTPHandler creates a new audit HTTP handler.
func NewHTTPHandler(svc Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers audit routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	audit := rg.Group("/audit")
	{
		audit.GET("", h.queryLogs)
		audit.GET("/export", h.exportLogs)
		audit.GET("/:id", h.getRecord)
	}
}

func parseQueryParams(c *gin.Context) QueryParams {
	params := QueryParams{}

	if v := c.Query("principal_id"); v != "" {
		params.PrincipalID = &v
	}
	if v := c.Query("session_id"); v != "" {
		params.SessionID = &v
	}
	if v := c.Query("action"); v != "" {
		params.Action = &v
	}
	if v := c.Query("risk_level"); v != "" {
		params.RiskLevel = &v
	}
	if v := c.Query("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := c.Query("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}
	return params
}

func (h *HTTPHandler) queryLogs(c *gin.Context) {
	params := parseQueryParams(c)

	records, total, err := h.svc.Query(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("Failed to query audit logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   params.Limit,
		"offset":  params.Offset,
	})
}

func (h *HTTPHandler) getRecord(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTPHandler) exportLogs(c *gin.Context) {
	records, err := h.svc.Export(c.Request.Context(), parseQueryParams(c))
	if err != nil {
		h.logger.Error("Failed to export audit logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export audit logs"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=auth_audit_logs.csv")

	writer := csv.NewWriter(c.Writer)
	writer.Write([]string{"Time", "Principal", "Session", "IP Address", "Score", "Level", "Action", "Reason"})
	for _, r := range records {
		writer.Write([]string{
			r.CreatedAt.Format(time.RFC3339),
			r.PrincipalID,
			r.SessionID,
			r.IPAddress,
			strconv.Itoa(r.RiskScore),
			r.RiskLevel,
			r.Action,
			r.Reason,
		})
	}
	writer.Flush()
}
