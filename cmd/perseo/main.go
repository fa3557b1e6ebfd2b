package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/perseo-cms/perseo/cmd/perseo/cli"
	"github.com/perseo-cms/perseo/internal/app"
	"github.com/perseo-cms/perseo/internal/platform/db"
)

const usage = `Perseo admin service.

Usage:
  perseo [serve]                     run the HTTP server (default)
  perseo seed [flags]                install permissions, roles and an optional admin
  perseo hash-password [--password]  print a bcrypt hash (reads stdin when omitted)

Configuration is read from the environment (APP_*, DB_*, REDIS_*, SESSION_*,
COOKIE_*, JWT_*, LOCALE*).
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		if err := flags.Parse(args); err != nil {
			return err
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return cli.Serve(ctx, cfg, logger)

	case "seed":
		var opts cli.SeedOptions
		flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
		flags.StringVar(&opts.LoginName, "login", "", "login name of the admin to create (skip to seed the catalog only)")
		flags.StringVar(&opts.Email, "email", "", "email of the admin to create")
		flags.StringVar(&opts.Password, "password", os.Getenv("PERSEO_ADMIN_PASSWORD"), "password of the admin to create")
		flags.StringVar(&opts.Role, "role", "", "role slug for the admin (default administrator)")
		if err := flags.Parse(args); err != nil {
			return err
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		pool, dialect, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, db.Options{})
		if err != nil {
			return err
		}
		defer pool.Close()
		result, err := cli.Seed(ctx, pool, dialect, opts)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", slog.Any("roles", result.RoleIDs))
		if result.Admin != nil {
			logger.Info("admin created",
				slog.Int64("id", result.Admin.ID),
				slog.String("ulid", result.Admin.ULID),
				slog.String("login", result.Admin.LoginName))
		}
		return nil

	case "hash-password":
		var password string
		flags := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
		flags.StringVarP(&password, "password", "p", "", "password to hash")
		if err := flags.Parse(args); err != nil {
			return err
		}
		return cli.HashPassword(password, stdin, stdout)

	case "help":
		fmt.Fprint(stdout, usage)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg), nil
}
