// Package main implements a cron-driven bot that polls rental listing
// searches and emails a digest of newly discovered listings.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/gilsadis1/rentalsbot/config"
	"github.com/gilsadis1/rentalsbot/email"
	"github.com/gilsadis1/rentalsbot/filter"
	"github.com/gilsadis1/rentalsbot/poll"
	"github.com/gilsadis1/rentalsbot/scraper"
	"github.com/gilsadis1/rentalsbot/storage"
)

const httpTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "rentalsbot",
		Usage: "poll rental searches and email a digest of new listings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "db",
				Value: "seen_listings.sqlite3",
				Usage: "path to the seen-listings database (delete to reset history)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "log the digest instead of sending it; seen-set is not updated",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Optional .env for local runs; in CI the secret is a real env var
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("Configuration loaded",
		"config", c.String("config"),
		"sources", len(cfg.Sources),
		"recipients", len(cfg.Email.ToEmails))

	dryRun := c.Bool("dry-run")

	var provider email.Provider
	if dryRun {
		provider = email.NewMockProvider(logger)
	} else {
		password := os.Getenv("GMAIL_APP_PASSWORD")
		if password == "" {
			return fmt.Errorf("GMAIL_APP_PASSWORD environment variable required")
		}
		provider = email.NewSMTPProvider(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.FromEmail,
			cfg.Email.FromName,
			password,
			logger)
	}

	store, err := storage.Open(c.String("db"), logger)
	if err != nil {
		return fmt.Errorf("open seen-set: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close seen-set", "error", err)
		}
	}()

	if n, err := store.Count(c.Context); err == nil {
		logger.Info("Seen-set loaded", "path", c.String("db"), "known_listings", n)
	}

	runner := poll.New(
		scraper.New(&http.Client{Timeout: httpTimeout}, logger),
		filter.New(cfg.Filters),
		store,
		email.New(provider, cfg.Email.ToEmails, logger),
		cfg.Sources,
		dryRun,
		logger)

	return runner.Run(c.Context)
}
