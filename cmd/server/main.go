package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/config"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/handlers"
	"github.com/smarttransit/segment-booking/internal/services"
	"github.com/smarttransit/segment-booking/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores bundles the persistence backends the services are built on
type stores struct {
	runs     database.RunStore
	riders   database.RiderStore
	bookings database.BookingStore
	audit    database.AuditStore
	ping     func(ctx context.Context) error
	close    func() error
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit segment booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Invalid booking timezone: %v", err)
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer st.close()

	// Initialize services
	calendar := services.NewCalendar(loc)
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(st.audit, logger)
	routeService := services.NewRouteService(st.runs, calendar, logger)
	bookingService := services.NewBookingService(st.riders, st.bookings, auditService, cfg.Booking.TxTimeout, logger)
	reservationService := services.NewReservationService(
		st.runs,
		st.riders,
		st.bookings,
		auditService,
		calendar,
		cfg.Booking.TxTimeout,
		logger,
	)
	searchService := services.NewSearchService(st.runs, st.bookings, calendar, logger)
	ticketService := services.NewTicketService(st.runs)

	if cfg.Maintenance.SeedFile != "" && cfg.Store.Driver == config.StoreDriverMemory {
		loader := services.NewSeedLoader(routeService, bookingService, logger)
		if err := loader.LoadFile(context.Background(), cfg.Maintenance.SeedFile); err != nil {
			logger.Fatalf("Failed to load seed file: %v", err)
		}
	}

	cronService := services.NewCronService(routeService, cfg.Maintenance.FareRepairSchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		CORS:     cfg.CORS,
		JWT:      jwtService,
		Search:   handlers.NewSearchHandler(searchService, logger),
		Bookings: handlers.NewBookingHandler(reservationService, bookingService, ticketService, logger),
		Admin:    handlers.NewAdminHandler(routeService, bookingService, logger),
		Ping:     st.ping,
		Version:  version,
		Logger:   logger,
	})

	// Booking requests may hold a transaction for the full timeout
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Booking.TxTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"store":    cfg.Store.Driver,
			"timezone": loc.String(),
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func openStores(cfg *config.Config, logger *logrus.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := database.NewMemoryStore()
		return &stores{
			runs:     mem,
			riders:   mem,
			bookings: mem,
			audit:    mem,
			close:    func() error { return nil },
		}, nil
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background(), logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &stores{
		runs:     database.NewRunRepository(db.DB),
		riders:   database.NewRiderRepository(db.DB),
		bookings: database.NewBookingRepository(db.DB),
		audit:    database.NewAuditRepository(db.DB),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}
