package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saiten-app/core/internal/middleware"
	"github.com/saiten-app/core/internal/modules/grading"
	"github.com/saiten-app/core/internal/modules/health"
	"github.com/saiten-app/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api/v1")

	health.RegisterRoutes(api, a.redis)

	limiter := middleware.NewLimiter(
		a.cfg.RateLimit.Max,
		time.Duration(a.cfg.RateLimit.WindowSec)*time.Second,
	)

	var idempotence gin.HandlerFunc
	if a.redis != nil {
		idempotence = middleware.Idempotence(a.redis.Raw())
	} else {
		idempotence = middleware.Idempotence(nil)
	}

	gradingGroup := api.Group("/grading",
		middleware.Auth(),
		middleware.RateLimit(limiter),
		idempotence,
	)
	grading.NewHandler(a.grading, a.logger).Register(gradingGroup)
}
