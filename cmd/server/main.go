package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/brightpath/screening-lifecycle/internal/application/service"
	"github.com/brightpath/screening-lifecycle/internal/application/validation"
	"github.com/brightpath/screening-lifecycle/internal/config"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/repository"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/sqlite"
	httpadapter "github.com/brightpath/screening-lifecycle/internal/interfaces/http"
	"github.com/brightpath/screening-lifecycle/pkg/database"
	"github.com/brightpath/screening-lifecycle/pkg/utils"
)

func main() {
	// Environment overrides from .env, if present
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting screening lifecycle service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer sqlDB.Close()

	// Run migrations
	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB, logger)

	// Initialize repositories
	screeningRepo := repository.NewScreeningRepository(db, logger)
	consentRepo := repository.NewConsentRepository(db, logger)
	batchRepo := repository.NewBatchRepository(db, logger)
	studentRepo := repository.NewStudentRepository(db, logger)
	caseRepo := repository.NewCaseRepository(db, logger)

	kvLogger := utils.NewKVLogger(logger)
	clk := clock.SystemClock{}

	// Initialize services
	screeningService := service.NewScreeningService(screeningRepo, clk, kvLogger)
	consentService := service.NewConsentService(consentRepo, clk, service.ConsentPolicy{
		AutoConsentWindowDays: cfg.Policy.AutoConsentWindowDays,
		ValidityDays:          cfg.Policy.ConsentValidityDays,
	}, kvLogger)
	pipeline := validation.NewPipeline(validation.Config{
		GradeMin: cfg.Policy.GradeMin,
		GradeMax: cfg.Policy.GradeMax,
	})
	importService := service.NewImportService(batchRepo, studentRepo, pipeline, db, kvLogger)
	caseService := service.NewCaseService(caseRepo, clk, kvLogger)

	// Initialize HTTP server
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, screeningService, consentService, importService, caseService, kvLogger)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
