package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"astro-report-backend/config"
	"astro-report-backend/internal/apperr"
	"astro-report-backend/internal/generation"
	"astro-report-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg        *config.Config
	store      store.Store
	controller *generation.Controller
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, s store.Store, controller *generation.Controller) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      s,
		controller: controller,
	}
}

// abortWithError maps an application error onto an HTTP response.
func abortWithError(c *gin.Context, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.CodeNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
