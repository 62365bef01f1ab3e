package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/config"
	"github.com/hikitugu/handover/internal/database"
	"github.com/hikitugu/handover/internal/datasources"
	"github.com/hikitugu/handover/internal/documents"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/health"
	"github.com/hikitugu/handover/internal/templates"
	"gorm.io/gorm"
)

const sessionName = "handover_session"

type routerDeps struct {
	db          *gorm.DB
	auth        *auth.Handlers
	service     *generation.Service
	templates   *templates.Service
	dataSources *datasources.Service
	logger      *slog.Logger
}

func newRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.ReadyHandler(map[string]health.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, d.db) },
	})))

	authGroup := r.Group("/auth")
	authGroup.GET("/me", auth.RequireAuth(), d.auth.HandleMe)
	authGroup.GET("/status", auth.RequireAuth(), d.auth.HandleStatus)
	authGroup.GET("/:provider", d.auth.HandleLogin)
	authGroup.GET("/:provider/callback", d.auth.HandleCallback)
	authGroup.POST("/logout", d.auth.HandleLogout)
	if !cfg.IsProduction() && cfg.DevSeed {
		authGroup.POST("/dev-login", d.auth.HandleDevLogin(database.DevUserEmail))
	}

	docs := documents.NewHandler(d.service, cfg.FrontendURL, d.logger)
	r.GET("/shared/:token", docs.Shared)

	api := r.Group("/api", auth.RequireAuth())
	docs.Register(api.Group("/documents"))
	templates.NewHandler(d.templates, d.logger).Register(api.Group("/templates"))

	ds := api.Group("/data-sources")
	ds.GET("", datasources.StatusHandler(d.dataSources))
	ds.GET("/slack/channels", datasources.ChannelsHandler(d.dataSources))
	ds.GET("/slack/messages", datasources.SlackMessagesHandler(d.dataSources))
	ds.GET("/calendar/events", datasources.CalendarEventsHandler(d.dataSources))
	ds.GET("/spreadsheets", datasources.SpreadsheetsHandler(d.dataSources))
	ds.GET("/spreadsheets/:id", datasources.SpreadsheetHandler(d.dataSources))
	ds.POST("/preview", datasources.PreviewHandler(d.service))

	return r
}

// requestLogger logs one line per request, skipping probes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			return
		}
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
