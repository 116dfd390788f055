package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/config"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/services"
	"github.com/spf13/pflag"
)

func main() {
	dbURLFlag := pflag.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	timeout := pflag.Duration("timeout", 5*time.Minute, "abort the repair after this long")
	migrate := pflag.Bool("migrate", false, "apply pending migrations first")
	pflag.Parse()

	// Optional .env in the working directory
	_ = godotenv.Load()

	dbURL := *dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and --database-url was not provided")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *migrate {
		if err := db.Migrate(ctx, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	routes := services.NewRouteService(database.NewRunRepository(db.DB), services.NewCalendar(time.UTC), logger)
	report, err := routes.RecomputeAllFares(ctx)
	if err != nil {
		log.Fatalf("fare repair failed: %v", err)
	}

	fmt.Printf("Checked %d runs, rebuilt %d\n", report.RunsChecked, report.RunsUpdated)
	for _, id := range report.UpdatedRuns {
		fmt.Printf("  run %d\n", id)
	}
}
