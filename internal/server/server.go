package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyscan/complyscan/internal/analyzer"
	"github.com/complyscan/complyscan/internal/balance"
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	"github.com/complyscan/complyscan/internal/billing"
	billingdomain "github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/identity"
	identitydomain "github.com/complyscan/complyscan/internal/identity/domain"
	"github.com/complyscan/complyscan/internal/observability"
	obsmiddleware "github.com/complyscan/complyscan/internal/observability/logger"
	obsmetrics "github.com/complyscan/complyscan/internal/observability/metrics"
	obstracing "github.com/complyscan/complyscan/internal/observability/tracing"
	"github.com/complyscan/complyscan/internal/ratelimit"
	"github.com/complyscan/complyscan/internal/scan"
	scandomain "github.com/complyscan/complyscan/internal/scan/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	clock.Module,
	identity.Module,
	balance.Module,
	analyzer.Module,
	scan.Module,
	billing.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	catalog    *config.CatalogHolder
	obsMetrics *obsmetrics.Metrics
	verifier   identitydomain.Verifier
	limiter    *ratelimit.FixedWindow
	balanceSvc balancedomain.Service
	scanSvc    scandomain.Service
	billingSvc billingdomain.Service
	webhookSvc billingdomain.WebhookService
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Catalog    *config.CatalogHolder
	ObsMetrics *obsmetrics.Metrics
	Verifier   identitydomain.Verifier
	Limiter    *ratelimit.FixedWindow `optional:"true"`
	BalanceSvc balancedomain.Service
	ScanSvc    scandomain.Service
	BillingSvc billingdomain.Service
	WebhookSvc billingdomain.WebhookService
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		catalog:    p.Catalog,
		obsMetrics: p.ObsMetrics,
		verifier:   p.Verifier,
		limiter:    p.Limiter,
		balanceSvc: p.BalanceSvc,
		scanSvc:    p.ScanSvc,
		billingSvc: p.BillingSvc,
		webhookSvc: p.WebhookSvc,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/api/v1/catalog", s.GetCatalog)
	s.engine.POST("/webhooks/billing/:provider", s.RateLimited("webhook"), s.IngestBillingWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.UserRequired())
	api.POST("/scans", s.RateLimited("scan"), s.CreateScan)
	api.GET("/balance", s.GetBalance)
	api.GET("/balance/history", s.GetBalanceHistory)
	api.POST("/billing/sync", s.RateLimited("sync"), s.SyncBillingCredits)
}
