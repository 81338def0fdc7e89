// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the store, services,
// handlers and middleware, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB ─┬→ Registrar ──────┐
//	             ├→ RewardLedger ───┼→ UserHandler
//	             ├→ UserService ────┘
//	             └→ TransactionService → TransactionHandler
//	  PasswordService, TokenService, events.Publisher are shared by the above.
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/membership-ledger/internal/auth"
	"github.com/sakif/membership-ledger/internal/config"
	"github.com/sakif/membership-ledger/internal/events"
	"github.com/sakif/membership-ledger/internal/handler"
	"github.com/sakif/membership-ledger/internal/middleware"
	sqliteRepo "github.com/sakif/membership-ledger/internal/repository/sqlite"
	"github.com/sakif/membership-ledger/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the event publisher. Close
// releases both; Start calls it on the way out.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	publisher events.Publisher
}

// New creates a new Server from cfg.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	// ":memory:" has no directory; filepath.Dir returns "." for it.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		publisher: newPublisher(cfg, logger),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newPublisher sends events to Kafka when brokers are configured and to the
// log otherwise.
func newPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	logger.Info("publishing events to kafka",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → Liveness (store ping)
// POST   /api/users                        → Register (rate limited)
// GET    /api/users                        → List users
// PUT    /api/users/coins                  → Set coins by email      [operator]
// GET    /api/users/{userId}               → Get user
// PUT    /api/users/{userId}               → Update profile          [operator]
// DELETE /api/users/{userId}               → Delete user             [operator]
// PUT    /api/users/{userId}/status        → Change status + reward  [operator]
// GET    /api/users/{userId}/payment       → Payment record
// GET    /api/users/{userId}/transactions  → User's transactions
// POST   /api/transactions                 → Create transaction      [operator]
// GET    /api/transactions                 → List transactions
// GET    /api/transactions/{transId}       → Get transaction
// PUT    /api/transactions/{transId}       → Update transaction      [operator]
// DELETE /api/transactions/{transId}       → Delete transaction      [operator]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers (the rate limiter keys on it)
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Auth ===
	passwords, err := auth.NewPasswordService(s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	var tokens *auth.TokenService
	if s.config.JWTSecret == "" {
		s.logger.Warn("JWT_SECRET not set, operator routes are unauthenticated")
	} else {
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	}
	requireOperator := auth.RequireOperator(tokens)
	limiter := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst, s.logger)

	// === Services ===
	// s.db implements every repository interface; each service only sees the
	// interfaces it needs.
	registrar := service.NewRegistrar(
		s.db,
		passwords,
		service.NewIDAllocator(s.db, s.config.UserIDPrefix, s.logger),
		service.NewCodeGenerator(s.db, s.config.ReferralCodePrefix, nil),
		s.publisher,
		s.logger,
	)
	ledger := service.NewRewardLedger(s.db, s.config.ReferralReward, s.publisher, s.logger)
	userService := service.NewUserService(s.db, s.db, s.logger)
	transactionService := service.NewTransactionService(s.db, s.db, s.logger)

	// === Handlers ===
	userHandler := handler.NewUserHandler(registrar, ledger, userService, s.logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api/users", func(r chi.Router) {
		r.With(limiter.Handler).Post("/", userHandler.HandleRegister)
		r.Get("/", userHandler.HandleList)
		r.Get("/{userId}", userHandler.HandleGet)
		r.Get("/{userId}/payment", userHandler.HandleGetPayment)
		r.Get("/{userId}/transactions", transactionHandler.HandleListByUser)

		r.Group(func(r chi.Router) {
			r.Use(requireOperator)
			// Static segment wins over {userId} in chi's radix tree.
			r.Put("/coins", userHandler.HandleUpdateCoins)
			r.Put("/{userId}", userHandler.HandleUpdate)
			r.Delete("/{userId}", userHandler.HandleDelete)
			r.Put("/{userId}/status", userHandler.HandleUpdateStatus)
		})
	})

	s.router.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", transactionHandler.HandleList)
		r.Get("/{transId}", transactionHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireOperator)
			r.Post("/", transactionHandler.HandleCreate)
			r.Put("/{transId}", transactionHandler.HandleUpdate)
			r.Delete("/{transId}", transactionHandler.HandleDelete)
		})
	})

	return nil
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the event publisher and the database connection.
func (s *Server) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Flush the event publisher and close the database (Close)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("shutdown cleanup failed", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
