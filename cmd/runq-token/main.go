// Package main mints bearer tokens for the runq API using the daemon's
// configuration.
//
// Usage:
//
//	runq-token [-subject admin] [-lifetime 24h]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phrazzld/runq/internal/auth"
	"github.com/phrazzld/runq/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "runq-token: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runq-token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "token subject")
	lifetime := fs.Duration("lifetime", 0, "token lifetime (defaults to auth.token_lifetime_minutes)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.Auth.AuthEnabled() {
		return fmt.Errorf("auth is disabled: set %s_AUTH_JWT_SECRET", config.EnvPrefix)
	}

	ttl := *lifetime
	if ttl <= 0 {
		ttl = time.Duration(cfg.Auth.TokenLifetimeMinutes) * time.Minute
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	token, err := tokens.GenerateToken(context.Background(), *subject)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
