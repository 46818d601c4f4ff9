package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	accountapp "github.com/dfryer1193/racblog/account/application"
	accountdomain "github.com/dfryer1193/racblog/account/domain"
	accountpersistence "github.com/dfryer1193/racblog/account/persistence"
	"github.com/dfryer1193/racblog/blog/application"
	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/blog/persistence"
	"github.com/dfryer1193/racblog/contact"
	"github.com/dfryer1193/racblog/internal/config"
	"github.com/dfryer1193/racblog/internal/middleware"
	"github.com/dfryer1193/racblog/internal/rest"
	"github.com/dfryer1193/racblog/notify"
	"github.com/dfryer1193/racblog/shared/db"
	"github.com/dfryer1193/racblog/shared/db/postgres"
	"github.com/dfryer1193/racblog/shared/db/sqlite"
	"github.com/dfryer1193/racblog/shared/kv"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.SetupLogging()

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
	log.Info().Msg("Server stopped")
}

// run wires the application and serves until a shutdown signal arrives. It
// returns instead of exiting so deferred cleanup always runs.
func run(cfg config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	kvStore, err := kv.NewFileStore(filepath.Join(cfg.DataDir, "kv"))
	if err != nil {
		return fmt.Errorf("failed to open key-value store: %w", err)
	}

	var database db.Database
	if cfg.ContentStore == config.StoreSQL || cfg.AdminAuth == config.AuthIdentity {
		database, err = openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()
	}

	store, err := newContentStore(context.Background(), cfg, database, kvStore)
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	var (
		auth      accountdomain.Authenticator
		registrar rest.Registrar
	)
	switch cfg.AdminAuth {
	case config.AuthIdentity:
		identity, err := accountapp.NewIdentityService(accountpersistence.NewUserRepository(database), accountapp.IdentityConfig{
			Secret:            []byte(cfg.JWTSecret),
			TTL:               cfg.SessionTTL,
			AllowRegistration: cfg.AllowRegistration,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize identity service: %w", err)
		}
		auth, registrar = identity, identity
	case config.AuthSharedSecret:
		auth = accountapp.NewSharedSecretGate(cfg.AdminPassword, kvStore, cfg.SessionTTL)
	}

	var notifier application.Notifier = notify.Nop{}
	smtp := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.NotifyFrom,
		To:       cfg.NotifyTo,
	}
	if smtp.Enabled() {
		notifier = notify.NewMailNotifier(smtp, cfg.SiteBaseURL)
	}

	blog := application.NewBlogService(store,
		application.NewLikedSet(kvStore),
		application.NewMarkdownRenderer(cfg.SiteBaseURL),
		notifier,
		application.SiteInfo{
			Title:       cfg.SiteTitle,
			Description: cfg.SiteDescription,
			BaseURL:     cfg.SiteBaseURL,
			Author:      cfg.DefaultAuthor,
		},
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))
	rest.NewApi(r, rest.Deps{
		Blog:      blog,
		Auth:      auth,
		Registrar: registrar,
		Contact:   contact.NewForwarder(cfg.ContactWebhookURL),
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   cfg.CorsAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.ContentStore).
			Str("auth", cfg.AdminAuth).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// openDatabase connects to Postgres when DATABASE_URL is set and to the
// SQLite file otherwise.
func openDatabase(cfg config.Config) (db.Database, error) {
	var database db.Database
	if cfg.DatabaseURL != "" {
		database = postgres.NewPostgresDB(&postgres.PostgresConfig{URL: cfg.DatabaseURL})
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		database = sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.SQLitePath})
	}

	if err := database.Connect(); err != nil {
		return nil, err
	}
	log.Info().Str("dialect", database.Dialect().String()).Msg("Connected to database")
	return database, nil
}

func newContentStore(ctx context.Context, cfg config.Config, database db.Database, kvStore kv.Store) (domain.ContentStore, error) {
	seed := persistence.DefaultSeed
	if cfg.SeedDir != "" {
		seed = persistence.DirSeed(cfg.SeedDir)
	}

	switch cfg.ContentStore {
	case config.StoreLocal:
		log.Warn().Msg("Using the local content store; intended for demos and single-editor setups")
		return persistence.NewLocalStore(kvStore, cfg.DefaultAuthor, persistence.WithSeed(seed)), nil
	default:
		store := persistence.NewSQLStore(database, cfg.DefaultAuthor)
		if _, err := store.SeedIfEmpty(ctx, seed); err != nil {
			return nil, err
		}
		return store, nil
	}
}
