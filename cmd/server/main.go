package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/ledgerbook/backend/docs"
	"github.com/ledgerbook/backend/internal/audit"
	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/coa"
	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/database"
	"github.com/ledgerbook/backend/internal/handlers"
	"github.com/ledgerbook/backend/internal/logger"
	mW "github.com/ledgerbook/backend/internal/middleware"
	"github.com/ledgerbook/backend/internal/services"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/ledgerbook/backend/internal/store/memory"
	"github.com/ledgerbook/backend/internal/store/postgres"
	"github.com/spf13/pflag"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Bookkeeping Ledger API
// @version 1.0
// @description Multi-tenant double-entry bookkeeping ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		logger.Get().WithError(err).Fatal("Failed to load configuration")
	}

	if err := run(cfg); err != nil {
		logger.Get().WithError(err).Fatal("Server failed")
	}
	logger.Get().Info("Server stopped")
}

func run(cfg *config.Config) error {
	log := logger.Get()
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Memory store ids restart at 1 on every run, so cached entries would
	// outlive the data they describe.
	var redisClient *redis.Client
	if cfg.Ledger.Store != "memory" {
		redisClient = database.OpenRedis(ctx, cfg.Redis)
		if redisClient != nil {
			defer redisClient.Close()
		}
	}
	c := cache.New(redisClient, cfg.Ledger.CacheTTL)

	var template *coa.Template
	if cfg.Ledger.ChartTemplate != "" {
		template, err = coa.Load(cfg.Ledger.ChartTemplate)
		if err != nil {
			return fmt.Errorf("load chart template: %w", err)
		}
		log.WithField("template", template.Name).Info("Chart of accounts template loaded")
	}

	if !cfg.JWT.Enabled() {
		log.Warn("JWT_SECRET_KEY is not set, every authenticated request will be rejected")
	}

	accountService := services.NewAccountService(st, c)
	api := &handlers.API{
		Auth:         handlers.NewAuthHandler(services.NewAuthService(st, c, accountService, template, cfg.JWT, cfg.Argon2)),
		Company:      handlers.NewCompanyHandler(services.NewTenantService(st)),
		Accounts:     handlers.NewAccountHandler(accountService),
		Partners:     handlers.NewPartnerHandler(services.NewPartnerService(st, c)),
		Transactions: handlers.NewTransactionHandler(services.NewLedgerService(st, c, audit.NewAuditLogger(), cfg.Ledger)),
		Users:        handlers.NewUserHandler(services.NewUserService(st, c)),
		Health:       handlers.NewHealthHandler(st, redisClient),
	}

	docs.SwaggerInfo.Host = hostFor(cfg.Server.Addr)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		api.Routes(r, mW.InitAuthMiddleware(cfg.JWT, c))
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).WithField("store", cfg.Ledger.Store).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Ledger.Store {
	case "memory":
		logger.Get().Warn("Using the in-memory store, data is lost on exit")
		return memory.New(), nil
	case "postgres", "":
		db, err := database.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.EnsureSchema {
			if err := database.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return postgres.New(db), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Ledger.Store)
}

func hostFor(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
