package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dhawalhost/wardgate/internal/access"
	"github.com/dhawalhost/wardgate/internal/audit"
	"github.com/dhawalhost/wardgate/internal/config"
	"github.com/dhawalhost/wardgate/internal/directory"
	"github.com/dhawalhost/wardgate/internal/mfa"
	"github.com/dhawalhost/wardgate/internal/session"
	"github.com/dhawalhost/wardgate/internal/signals"
	"github.com/dhawalhost/wardgate/pkg/database"
	"github.com/dhawalhost/wardgate/pkg/logger"
	"github.com/dhawalhost/wardgate/pkg/middleware"
	"github.com/dhawalhost/wardgate/pkg/observability"
)

const serviceName = "wardgate"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracer(context.Background()) //nolint:errcheck

	metrics := observability.NewMetrics()

	// Stores
	auditStore := audit.NewStore(db)
	sessionStore := session.NewStore(db)
	roleStore := directory.NewRoleStore(db)
	eventStore := signals.NewStore(db)
	totpStore := mfa.NewTOTPStore(db)

	// Signal providers: benign static defaults, with the breach and travel
	// seams wired to the event feed and audit history.
	providers := access.StaticProviders()
	providers.Breach = access.NewEventBreachChecker(eventStore, 30*24*time.Hour)
	providers.Travel = access.NewHistoryTravelChecker(auditStore, time.Hour)

	extractor := access.NewExtractor(auditStore, roleStore, providers, log)
	scorer := access.NewScorer(access.DefaultScoreConfig())

	policyCfg := access.DefaultPolicyConfig()
	if err := policyCfg.Validate(); err != nil {
		log.Fatal("invalid policy configuration", zap.Error(err))
	}
	evaluator := access.NewEvaluator(access.DefaultRules(), policyCfg)

	accessSvc := access.NewService(extractor, scorer, evaluator, auditStore, sessionStore, eventStore, metrics, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.Recovery(log),
		middleware.CORS(),
		middleware.SecurityHeaders(),
		middleware.RateLimit(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
		observability.PrometheusMiddleware(metrics),
		otelgin.Middleware(serviceName),
	)

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(observability.PrometheusHandler()))

	api := router.Group("/api/v1")
	api.Use(middleware.BearerAuth(cfg.JWTSecret))

	access.NewHTTPHandler(accessSvc, log).RegisterRoutes(api)
	audit.NewHTTPHandler(audit.NewService(auditStore), log).RegisterRoutes(api)
	signals.NewHTTPHandler(eventStore, log).RegisterRoutes(api)
	mfa.NewHTTPHandler(totpStore, log).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
