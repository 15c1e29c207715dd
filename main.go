package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alpenclub/tour-report-backend/api"
	"github.com/alpenclub/tour-report-backend/config"
	"github.com/alpenclub/tour-report-backend/database"
	"github.com/alpenclub/tour-report-backend/models"
	"github.com/alpenclub/tour-report-backend/services"
)

func main() {
	fmt.Println("Initializing app...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	connStr := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", ""),
		getEnv("DB_NAME", "tour_reports"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_SSLMODE", "disable"),
	)

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt: false,
		Logger:      newLogger,
	})
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		fmt.Printf("Error enabling uuid-ossp extension: %v\n", err)
		os.Exit(1)
	}

	// Test database connection
	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		fmt.Printf("Error testing database connection: %v\n", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.Event{},
		&models.EventParticipation{},
		&models.Report{},
		&models.StoredImage{},
	); err != nil {
		fmt.Printf("Error migrating schema: %v\n", err)
		os.Exit(1)
	}

	currentDB := database.New(db)

	c := config.New()
	reportCfg := config.NewReport(c)

	notifier := services.NewResendNotifier(
		config.GetString(c, "RESEND_API_KEY", ""),
		config.GetString(c, "RESEND_FROM_EMAIL", "noreply@alpenclub.example"),
	)

	lifecycle := services.NewLifecycle(
		reportCfg,
		currentDB.ReportRepo(),
		currentDB.EventRepo(),
		currentDB.ParticipationRepo(),
		currentDB.StoredImageRepo(),
		notifier,
	)
	uploader := services.NewUploader(reportCfg, currentDB.ReportRepo())
	metadata := services.NewImageMetadata(reportCfg, currentDB.StoredImageRepo())
	maintenance := services.NewMaintenance(
		currentDB.ReportRepo(),
		currentDB.EventRepo(),
		currentDB.StoredImageRepo(),
		reportCfg.ImageDir,
	)

	go runMaintenance(maintenance, config.GetInt(c, "MAINTENANCE_INTERVAL_HOURS", 24))

	errChannel := make(chan error)
	defer close(errChannel)

	server, err := api.NewServer(api.Services{
		Lifecycle:   lifecycle,
		Uploader:    uploader,
		Metadata:    metadata,
		Maintenance: maintenance,
	})
	if err != nil {
		fmt.Printf("Error initializing server: %v\n", err)
		os.Exit(1)
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	fmt.Printf("Closing server: %v\n", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

// runMaintenance purges stale drafts and refreshes event snapshots on a
// fixed interval.
func runMaintenance(m *services.Maintenance, intervalHours int) {
	ticker := time.NewTicker(time.Duration(intervalHours) * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		summary, err := m.Run(context.Background())
		if err != nil {
			zlog.Error().Err(err).Msg("maintenance run failed")
			continue
		}
		zlog.Info().
			Int("purged", summary.Purged).
			Int("refreshed", summary.Refreshed).
			Int("orphanDirsRemoved", summary.OrphanDirsRemoved).
			Msg("maintenance run finished")
	}
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}

// getEnv returns the value of the environment variable key or a fallback value.
func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
