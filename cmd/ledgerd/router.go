package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/config"
	"github.com/jmerrifield20/recordchain/internal/identity"
	"github.com/jmerrifield20/recordchain/internal/ledger"
	"github.com/jmerrifield20/recordchain/internal/records/handler"
	"github.com/jmerrifield20/recordchain/internal/records/service"
)

// newRouter wires middleware and routes. tokens may be nil, in which case
// uploads are unauthenticated.
func newRouter(ctx context.Context, cfg *config.Config, l *ledger.Ledger, tokens *identity.TokenIssuer, logger *zap.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := cfg.Server.CORSOrigins
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", handler.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", handler.RequestIDHeader},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(handler.SecurityHeaders())
	router.Use(handler.RequestID())
	router.Use(handler.BodyLimit(cfg.Server.MaxUploadBytes))
	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	// Health and metrics (public, no auth)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "blocks": l.Len(c.Request.Context())})
	})
	router.GET("/metrics", handler.MetricsHandler())

	svc := service.NewUploadService(l, l.Algorithm(), logger)
	var uploadMW []gin.HandlerFunc
	if tokens != nil {
		uploadMW = append(uploadMW, handler.RequireUploadToken(tokens))
	}
	handler.NewUploadHandler(svc, logger).Register(router, uploadMW...)

	ledgerHandler := handler.NewLedgerHandler(l, logger)
	ledgerHandler.RegisterChain(router)
	ledgerHandler.Register(router.Group("/api/v1"))

	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
