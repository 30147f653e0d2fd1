package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/movienight/backend/internal/access"
	"github.com/movienight/backend/internal/attendees"
	"github.com/movienight/backend/internal/checkin"
	"github.com/movienight/backend/internal/metrics"
	"github.com/movienight/backend/internal/middleware"
	"github.com/movienight/backend/internal/realtime"
	"github.com/movienight/backend/internal/registrations"
	"github.com/movienight/backend/pkg/response"
)

// app holds the constructed services the router exposes.
type app struct {
	logger        *zap.Logger
	corsOrigins   string
	staticDir     string
	registrations *registrations.Service
	checkin       *checkin.Service
	attendees     *attendees.Service
	gate          *access.Gate
	hub           *realtime.Hub
	metrics       *metrics.Metrics
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(a.corsOrigins))
	router.Use(middleware.Logger(a.logger, "/health", "/metrics"))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	accessHandler := access.NewHandler(a.gate, a.logger)
	registrationHandler := registrations.NewHandler(a.registrations)
	checkinHandler := checkin.NewHandler(a.checkin)
	attendeesHandler := attendees.NewHandler(a.attendees, a.logger)

	api := router.Group("/api")
	{
		// Public: guests register themselves
		api.POST("/register", registrationHandler.Register)
		api.GET("/access", accessHandler.Status)
		api.POST("/access", accessHandler.Login)
	}

	// Operator routes (open unless ACCESS_PASSPHRASE is set)
	operator := api.Group("")
	operator.Use(middleware.RequireAccess(a.gate))
	{
		operator.POST("/checkin", checkinHandler.CheckIn)
		operator.GET("/attendees", attendeesHandler.List)
		operator.DELETE("/attendees/:serial", attendeesHandler.Delete)
	}

	// WebSocket (token in query; no Authorization header required)
	if a.hub != nil {
		router.GET("/ws/checkins", middleware.RequireAccess(a.gate), realtime.ServeWs(a.hub, a.logger))
	}

	if a.staticDir != "" {
		router.NoRoute(serveSPA(a.staticDir))
	}
	return router
}

// serveSPA serves the built front end, falling back to index.html so
// client-side routes resolve. Unknown /api paths stay JSON 404s.
func serveSPA(dir string) gin.HandlerFunc {
	root, _ := filepath.Abs(dir)
	index := filepath.Join(root, "index.html")
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
			response.NotFound(c, "Not found")
			return
		}
		file := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+path)))
		if strings.HasPrefix(file, root) {
			if info, err := os.Stat(file); err == nil && !info.IsDir() {
				c.File(file)
				return
			}
		}
		c.File(index)
	}
}
