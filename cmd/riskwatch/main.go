package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/psicapp/riskwatch/internal/api"
	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/chat"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/detection"
	"github.com/psicapp/riskwatch/internal/directory"
	"github.com/psicapp/riskwatch/internal/fanout"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/notifications"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/psicapp/riskwatch/internal/riskreport"
	"github.com/psicapp/riskwatch/internal/scheduler"
	"github.com/psicapp/riskwatch/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting riskwatch")

	repos, closer, err := openRepositories(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closer.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	notificationService := notifications.NewService(cfg, m)
	notifier := fanout.NewNotifier(directory.NewAdminDirectory(repos.Profiles), repos.Notifications, notificationService, m)

	resolver := auth.ContextResolver{}
	reports := riskreport.NewService(repos.Reports, repos.Profiles, resolver, notifier, m)
	triage := riskreport.NewTriage(reports, repos.Profiles, repos.Notifications, resolver)

	detector := detection.NewDetector(cfg.RiskKeywords)
	assistant := chat.NewAssistant(detector, reports, newCompleter(cfg), m, cfg.ChatHistoryLimit)

	schedulerService, err := scheduler.NewService(cfg, reports, notificationService)
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewServer(api.Deps{
		Detector:  detector,
		Metrics:   m,
		Gatherer:  registry,
		Assistant: assistant,
		Sessions:  chat.NewSessions(),
		Reports:   reports,
		Triage:    triage,
		Profiles:  repos.Profiles,
	}).Router()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openRepositories selects the persistence backend named by STORE_BACKEND
func openRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, io.Closer, error) {
	switch cfg.StoreBackend {
	case "azure":
		blobs, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			return nil, nil, err
		}
		logrus.Infof("Using Azure Blob Storage container %s", cfg.StorageContainer)
		return repository.NewBlobStore(blobs).Repositories(), nopCloser{}, nil
	case "memory":
		logrus.Warn("Using in-memory storage; reports are lost on restart")
		return repository.NewBlobStore(storage.NewMemoryStorage()).Repositories(), nopCloser{}, nil
	default:
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logrus.Infof("Using SQLite database at %s", cfg.SQLitePath)
		return store.Repositories(), store, nil
	}
}

// newCompleter uses the configured model endpoint, or canned replies when
// no API key is set
func newCompleter(cfg *config.Config) chat.Completer {
	if cfg.ChatAPIKey == "" {
		logrus.Warn("CHAT_API_KEY not set, using scripted assistant replies")
		return chat.NewScriptedCompleter()
	}
	return chat.NewOpenAIClient(cfg.ChatAPIKey, cfg.ChatBaseURL, cfg.ChatModel, cfg.ChatTemperature, cfg.ChatMaxTokens)
}
