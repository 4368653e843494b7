package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saiten-app/core/internal/config"
	"github.com/saiten-app/core/internal/middleware"
	"github.com/saiten-app/core/internal/modules/grading"
	"github.com/saiten-app/core/internal/modules/regrade"
	"github.com/saiten-app/core/internal/modules/usage"
	"github.com/saiten-app/core/internal/pkg/jwt"
	pkgredis "github.com/saiten-app/core/internal/pkg/redis"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	redis   *pkgredis.Client
	logger  *zap.Logger
	grading *grading.Service
}

// New initializes the application: config → redis → pipeline → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.AuthSecret != "" {
		jwt.SetSecret(cfg.AuthSecret)
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		var err error
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	provider := cfg.AI.ActiveProvider("")
	client, err := grading.NewModelClient(provider)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}

	var transcriber grading.Transcriber = grading.NoopTranscriber{}
	if cfg.AI.EnableTranscription && provider.TranscribeModel != "" {
		transcriber = &grading.ModelTranscriber{Client: client, Model: provider.TranscribeModel}
	}

	tokens := regrade.NewService(cfg.Regrade)
	if !tokens.Enabled() {
		logger.Warn("regrade signing secret not configured, free-regrade tokens are disabled")
	}
	quota := usage.NewClient(cfg.UsageService)
	svc := grading.NewService(logger, client, provider, transcriber, tokens, quota, cfg.RequestTimeout())

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(buildCORS(cfg))

	app := &App{cfg: cfg, router: router, redis: rc, logger: logger, grading: svc}
	app.registerRoutes()

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown releases held connections.
func (a *App) Shutdown() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}
