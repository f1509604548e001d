package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"astro-report-backend/internal/apperr"
	"astro-report-backend/internal/generation"
	"astro-report-backend/internal/model"
)

// submitResponse is the API response for a report submission.
type submitResponse struct {
	ReportID      string `json:"reportId"`
	FreeReuse     bool   `json:"freeReuse"`
	DaysRemaining int    `json:"daysRemaining,omitempty"`
	Deduplicated  bool   `json:"deduplicated,omitempty"`
}

// SubmitReport handles the POST /api/reports request.
func (h *Handler) SubmitReport(c *gin.Context) {
	var query generation.BirthQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.controller.Submit(c.Request.Context(), &query)
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.FreeReuse || result.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, submitResponse{
		ReportID:      result.ReportID,
		FreeReuse:     result.FreeReuse,
		DaysRemaining: result.DaysRemaining,
		Deduplicated:  result.Deduplicated,
	})
}

// generateResponse is the API response for a generation request.
type generateResponse struct {
	Status       generation.Status `json:"status"`
	ReportID     string            `json:"reportId"`
	CoreIdentity string            `json:"coreIdentity,omitempty"`
	Report       string            `json:"report,omitempty"`
	Cached       bool              `json:"cached,omitempty"`
	RetryAfter   int               `json:"retryAfter,omitempty"` // seconds
}

// GenerateReport handles the POST /api/reports/{id}/generate request.
func (h *Handler) GenerateReport(c *gin.Context) {
	result, err := h.controller.RequestGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		// Exhausted retries is a terminal outcome, not a transport failure.
		if apperr.IsCode(err, apperr.CodeExhaustedRetries) {
			c.JSON(http.StatusOK, generateResponse{
				Status:   generation.StatusFailed,
				ReportID: c.Param("id"),
			})
			return
		}
		abortWithError(c, err)
		return
	}

	resp := generateResponse{
		Status:       result.Status,
		ReportID:     result.ReportID,
		CoreIdentity: result.CoreIdentity,
		Report:       result.Report,
		Cached:       result.Cached,
	}
	if result.Status == generation.StatusGenerating {
		resp.RetryAfter = int(result.RetryAfter / time.Second)
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// reportResponse is the read view of a stored report.
type reportResponse struct {
	ReportID     string            `json:"reportId"`
	Status       generation.Status `json:"status"`
	BirthDate    string            `json:"birthDate"`
	BirthPlace   string            `json:"birthPlace"`
	CoreIdentity string            `json:"coreIdentity,omitempty"`
	Report       string            `json:"report,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// GetReport handles the GET /api/reports/{id} request. Completed reports are
// immutable, so they are served with a long client cache lifetime.
func (h *Handler) GetReport(c *gin.Context) {
	record, err := h.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := reportResponse{
		ReportID:   record.ID,
		BirthDate:  record.BirthDate,
		BirthPlace: record.BirthPlaceLabel(),
	}
	switch record.State(h.cfg.Generation.MaxRetries) {
	case model.StateCompleted:
		resp.Status = generation.StatusCompleted
		resp.CoreIdentity = record.CoreIdentity
		resp.Report = record.AIReport
		resp.CompletedAt = record.CompletedAt
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cfg.Server.CacheTTLSeconds))
	case model.StateFailed:
		resp.Status = generation.StatusFailed
	default:
		resp.Status = generation.StatusGenerating
	}

	c.JSON(http.StatusOK, resp)
}
