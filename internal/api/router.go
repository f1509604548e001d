package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"astro-report-backend/config"
	"astro-report-backend/internal/generation"
	"astro-report-backend/internal/mw"
	"astro-report-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, controller *generation.Controller) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(cfg, s, controller)

	rateLimiter := mw.RateLimiter(&cfg.Server)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/reports", handler.SubmitReport)
		api.POST("/reports/:id/generate", handler.GenerateReport)
		api.GET("/reports/:id", caching, handler.GetReport)

		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
