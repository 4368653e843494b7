package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkgredis "github.com/saiten-app/core/internal/pkg/redis"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var processStart = time.Now()

// RegisterRoutes mounts the liveness probe. A missing redis client is not a
// degradation: the idempotence guard is optional.
func RegisterRoutes(rg *gin.RouterGroup, rc *pkgredis.Client) {
	rg.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK

		redisOK := true
		if rc != nil {
			redisOK = rc.Ping(c.Request.Context()) == nil
			if !redisOK {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":  status,
			"version": Version,
			"uptime":  int64(time.Since(processStart).Seconds()),
			"redis":   redisOK,
		})
	})
}
