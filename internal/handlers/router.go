package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/config"
	"github.com/smarttransit/segment-booking/internal/middleware"
	"github.com/smarttransit/segment-booking/pkg/jwt"
)

// RouterDeps holds everything the HTTP surface is built from
type RouterDeps struct {
	CORS     config.CORSConfig
	JWT      *jwt.Service
	Search   *SearchHandler
	Bookings *BookingHandler
	Admin    *AdminHandler
	// Ping checks the backing store; nil means an in-process store
	Ping    func(ctx context.Context) error
	Version string
	Logger  *logrus.Logger
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORS.AllowedOrigins,
		AllowMethods:     d.CORS.AllowedMethods,
		AllowHeaders:     d.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !containsWildcard(d.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(d.Ping, d.Version))

	auth := middleware.AuthMiddleware(d.JWT, d.Logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stops", d.Search.Stops)
		v1.GET("/search", d.Search.Search)
		v1.GET("/runs/:id/seats", d.Search.SeatAvailability)
		v1.GET("/runs/:id/seats/all", d.Search.AllSeats)

		bookings := v1.Group("/bookings", auth)
		{
			bookings.POST("", d.Bookings.BookSeats)
			bookings.GET("/me", d.Bookings.MyBookings)
			bookings.PATCH("/:id/cancel", d.Bookings.Cancel)
			bookings.GET("/:id/ticket", d.Bookings.Ticket)
		}

		admin := v1.Group("/admin", auth, middleware.RequireRole("admin"))
		{
			admin.POST("/runs", d.Admin.CreateRun)
			admin.GET("/runs/:id", d.Admin.GetRun)
			admin.PUT("/runs/:id/legs/:seq/fare", d.Admin.UpdateLegFare)
			admin.GET("/schedule/today", d.Admin.TodaySchedule)
			admin.GET("/bookings", d.Admin.AllBookings)
			admin.PATCH("/bookings/:id/cancel", d.Admin.CancelBooking)
			admin.POST("/riders", d.Admin.RegisterRider)
			admin.POST("/maintenance/recompute-fares", d.Admin.RecomputeFares)
		}
	}

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func healthCheckHandler(ping func(ctx context.Context) error, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := "memory"
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":   "unhealthy",
					"database": "unhealthy",
					"error":    err.Error(),
				})
				return
			}
			store = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  store,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
