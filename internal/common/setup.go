package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mojgrad-go/internal/api"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/config"
	"mojgrad-go/internal/database"
	"mojgrad-go/internal/formance"
	"mojgrad-go/internal/location"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"
	"mojgrad-go/internal/storage"
	"mojgrad-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine; variables can come from the environment
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Journal   *formance.Service
	Tracker   *location.Tracker
	Hub       *notify.Hub
	Notifier  notify.Notifier
	Tokens    *auth.TokenService
	Api       *api.Service
	// FilesDir is set when images are stored on the local filesystem
	FilesDir string
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the database, points journal, object storage,
// notification hub and application service. Tokens are only built when a
// JWT secret is configured; the HTTP server requires one.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService}

	var journal store.PointsJournal
	if cfg.Formance.Enabled() {
		zap.L().Info("Connecting to Formance points ledger", zap.String("ledger", cfg.Formance.LedgerName))
		formanceService, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Journal = formanceService
		journal = formanceService
	} else {
		zap.L().Info("Formance not configured, points are kept in SQLite only")
	}

	objects, err := storage.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if local, ok := objects.(*storage.LocalStore); ok {
		services.FilesDir = local.Root()
	}
	zap.L().Info("Using object storage", zap.String("backend", cfg.Storage.Backend))

	if cfg.Auth.JwtSecret != "" {
		tokens, err := auth.NewTokenService(cfg.Auth.JwtSecret, cfg.Auth.TokenTTL)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Tokens = tokens
	}

	categories, err := config.LoadCategoriesOrDefault(cfg.CategoriesFile)
	if err != nil {
		services.Close()
		return nil, err
	}
	zap.L().Info("Loaded problem categories", zap.Strings("categories", config.CategoryNames(categories)))

	services.Tracker = location.NewTracker(location.TrackerConfig{
		Persister:          dbService,
		MinPersistInterval: cfg.Location.MinPersistInterval,
	})
	services.Hub = notify.NewHub()
	services.Notifier = notify.LogNotifier{}

	services.Api = api.NewService(api.ServiceConfig{
		Store:      dbService,
		Tracker:    services.Tracker,
		Journal:    journal,
		Uploader:   storage.NewUploader(objects, cfg.Storage.PublicUrl),
		Tokens:     services.Tokens,
		Passwords:  auth.NewPasswordService(cfg.Auth.BcryptCost),
		Categories: categories,
		Proximity:  cfg.Proximity,
	})

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for user management from the command line
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Journal != nil {
		cs.Journal.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
