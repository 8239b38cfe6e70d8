package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/events"
	"github.com/venturelab/accelerator_backend/kpiledger"
	"github.com/venturelab/accelerator_backend/matching"
	"github.com/venturelab/accelerator_backend/middlewares"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/oracles"
	"github.com/venturelab/accelerator_backend/request"
	"github.com/venturelab/accelerator_backend/roadmap"
	"github.com/venturelab/accelerator_backend/store"
	"github.com/venturelab/accelerator_backend/workflow"
)

const defaultPort = "8080"

var tracer = otel.Tracer("accelerator-backend")

// Engines are wired once dependencies are up; the readiness gate returns 503
// until then.
var (
	roadmapEngine  *roadmap.Engine
	matchingEngine *matching.Engine
	requestService *request.Service
	kpiLedger      *kpiledger.Ledger
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func initEngines(logger *logrus.Logger) error {
	recordStore := store.NewGormStore(config.GetDB())
	sink := events.NewOutboxSink()

	scoring, err := oracles.NewHTTPScoringOracle()
	if err != nil {
		return fmt.Errorf("scoring oracle: %w", err)
	}
	ranking, err := oracles.NewHTTPRankingOracle()
	if err != nil {
		return fmt.Errorf("ranking oracle: %w", err)
	}

	roadmapEngine = roadmap.NewEngine(recordStore, scoring, sink, logger)
	matchingEngine = matching.NewEngine(recordStore, ranking, logger)
	requestService = request.NewService(recordStore, sink, logger)
	kpiLedger = kpiledger.NewLedger(recordStore, sink, roadmapEngine, logger)
	return nil
}

func registerRoutes(r *gin.Engine) {
	r.POST("/auth/register", registerHandler())
	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", logoutHandler())
	r.GET("/auth/me", meHandler())
	r.POST("/auth/change-password", changePasswordHandler())

	r.GET("/levels", listLevelsHandler())

	founder := middlewares.RequireRole(models.RoleFounder)
	partner := middlewares.RequireRole(models.RolePartner)
	reviewer := middlewares.RequireRole(models.RoleMentor, models.RoleAdmin)
	admin := middlewares.RequireRole(models.RoleAdmin)

	r.POST("/startups", founder, createStartupHandler())
	r.GET("/startups/me", founder, myStartupHandler())
	r.GET("/startups/:id", getStartupHandler())
	r.PUT("/startups/:id", founder, updateStartupHandler())
	r.POST("/startups/:id/logo", founder, uploadStartupLogoHandler())
	r.POST("/startups/:id/curriculum", founder, assignCurriculumHandler())
	r.GET("/startups/:id/roadmap", getRoadmapHandler())
	r.GET("/startups/:id/matches", founder, matchesHandler())
	r.GET("/startups/:id/requests", founder, startupRequestsHandler())
	r.POST("/startups/:id/kpis", founder, appendKPIHandler())
	r.GET("/startups/:id/kpis", founder, kpiHistoryHandler())
	r.GET("/startups/:id/risk", founder, riskHandler())

	r.GET("/tasks/:id", getTaskHandler())
	r.POST("/tasks/:id/submit", founder, submitDeliverableHandler())
	r.POST("/tasks/:id/decide", reviewer, decideReviewHandler())

	r.POST("/partners", partner, createPartnerHandler())
	r.GET("/partners", listPartnersHandler())
	r.GET("/partners/me", partner, myPartnerHandler())
	r.GET("/partners/me/requests", partner, partnerInboxHandler())
	r.GET("/partners/:id", getPartnerHandler())
	r.PUT("/partners/:id", partner, updatePartnerHandler())

	r.POST("/requests", founder, createRequestHandler())
	r.POST("/requests/:id/decide", partner, decideRequestHandler())
	r.GET("/requests/:id/contact", requestContactHandler())

	r.POST("/admin/levels/import", admin, importLevelsHandler())
	r.POST("/admin/partners/import", admin, importPartnersHandler())
	r.POST("/admin/partners/:id/verify", admin, verifyPartnerHandler())
	r.GET("/admin/histories", admin, historiesHandler())
	r.GET("/admin/events/:subjectId", admin, domainEventsHandler())
	r.POST("/admin/accounts/:id/deactivate", admin, deactivateAccountHandler())
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until DB/Redis
	// are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || roadmapEngine == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if err := initEngines(logger); err != nil {
		logger.WithFields(logrus.Fields{"field": "engines"}).Panic(err.Error())
	}

	// Start the outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if workflow.ShouldRunEventDispatcher() {
		go workflow.NewEventDispatcher(db, logger).Run(dispatcherCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't pick up new work mid-drain.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
