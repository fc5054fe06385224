package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/fablebot/fable-api/internal/config"
	"github.com/fablebot/fable-api/internal/generation"
	"github.com/fablebot/fable-api/internal/platform/gemini"
	"github.com/fablebot/fable-api/internal/platform/googlechat"
	"github.com/fablebot/fable-api/internal/platform/openai"
	"github.com/fablebot/fable-api/internal/platform/postgres"
	"github.com/fablebot/fable-api/internal/service/auth"
	"github.com/fablebot/fable-api/internal/service/conversation"
	"github.com/fablebot/fable-api/internal/store"
	"github.com/fablebot/fable-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	threadStore     store.ThreadStore
	credentialStore store.CredentialStore
	taskStore       task.Store

	// Outbound integrations
	generator generation.Generator
	messenger googlechat.Messenger

	// Trust roots: one for the chat platform's webhooks, one for the
	// task queue's execution callbacks.
	platformVerifier auth.Verifier
	queueVerifier    auth.Verifier

	// Conversation orchestration
	conversation *conversation.Service

	// Task dispatch
	dispatcher *task.Dispatcher
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.threadStore = postgres.NewPostgresThreadStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db)

	credentialStore, err := postgres.NewPostgresCredentialStore(db, cfg.Auth.CredentialCipherKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	app.credentialStore = credentialStore

	// Create the LLM generator service
	app.generator, err = setupGenerator(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "provider", cfg.LLM.Provider)

	// Initialize the chat platform message client
	app.messenger = googlechat.NewClient(
		cfg.Chat.BaseURL,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Chat.APIToken}),
	)

	// Initialize the trust roots
	app.platformVerifier, err = setupVerifier(cfg.Auth.Platform)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize platform trust root: %w", err)
	}
	app.queueVerifier, err = setupVerifier(cfg.Auth.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue trust root: %w", err)
	}

	// Initialize the task dispatcher
	app.dispatcher, err = setupDispatcher(app)
	if err != nil {
		return nil, fmt.Errorf("failed to setup task dispatcher: %w", err)
	}

	// Initialize the conversation service
	app.conversation = conversation.NewService(
		app.threadStore,
		app.credentialStore,
		app.generator,
		app.messenger,
		app.dispatcher,
		conversation.Config{
			AllowSharedFallback: cfg.Auth.AllowSharedFallback,
			FallbackAPIKey:      cfg.Auth.FallbackAPIKey,
		},
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupGenerator selects the generation backend from configuration.
func setupGenerator(cfg config.LLMConfig) (generation.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewGenerator(openai.Config{
			ChatModel:   cfg.ChatModel,
			ImageModel:  cfg.ImageModel,
			Temperature: cfg.Temperature,
		}), nil
	case "gemini":
		return gemini.NewGenerator(gemini.Config{
			ChatModel:   cfg.ChatModel,
			Temperature: cfg.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// setupVerifier builds a token verifier for one configured trust root.
func setupVerifier(cfg config.TrustRootConfig) (auth.Verifier, error) {
	root, err := auth.NewTrustRoot(cfg)
	if err != nil {
		return nil, err
	}
	return auth.NewVerifier(root), nil
}

// setupDispatcher initializes and starts the background task dispatcher.
// It uses the application struct to access required dependencies.
func setupDispatcher(app *application) (*task.Dispatcher, error) {
	minter, err := auth.NewTokenMinter(
		app.config.Auth.Queue,
		time.Duration(app.config.Task.TokenLifetimeMinutes)*time.Minute,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery token minter: %w", err)
	}

	dispatcher := task.NewDispatcher(app.taskStore, minter, task.DispatcherConfig{
		WorkerURL:       app.config.Task.WorkerURL,
		WorkerCount:     app.config.Task.WorkerCount,
		QueueSize:       app.config.Task.QueueSize,
		DeliveryTimeout: time.Duration(app.config.Task.DeliveryTimeoutSeconds) * time.Second,
		StuckTaskAge:    time.Duration(app.config.Task.StuckTaskAgeMinutes) * time.Minute,
	}, nil, app.logger.With("component", "task_dispatcher"))

	if err := dispatcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task dispatcher: %w", err)
	}

	return dispatcher, nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
