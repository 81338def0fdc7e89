// Command admintoken mints an operator token for the guarded API routes.
//
// Usage:
//
//	JWT_SECRET=... go run ./cmd/admintoken -sub ops@example.com -ttl 2h
//
// The token is printed to stdout, ready for an Authorization: Bearer header.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/membership-ledger/internal/auth"
	"github.com/sakif/membership-ledger/internal/config"
)

func main() {
	subject := flag.String("sub", "", "operator identity stored in the token subject (required)")
	ttl := flag.Duration("ttl", auth.DefaultTokenLifetime, "token lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set; the server accepts operator requests without a token")
		os.Exit(1)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		logger.Error("invalid JWT_SECRET", slog.String("error", err.Error()))
		os.Exit(1)
	}

	token, err := tokens.GenerateWithDuration(*subject, *ttl)
	if err != nil {
		logger.Error("failed to generate token", slog.String("error", err.Error()))
		flag.Usage()
		os.Exit(2)
	}
	fmt.Println(token)
}
