package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/markdave123-py/docembed/internal/app"
	"github.com/markdave123-py/docembed/internal/config"
	"github.com/markdave123-py/docembed/internal/core/ingestion_engine"
	"github.com/markdave123-py/docembed/internal/progress"
)

func main() {
	cliApp := &cli.App{
		Name:  "ingest",
		Usage: "Extract, chunk, embed and store every document under a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "directory",
				Aliases: []string{"d"},
				Usage:   "Root directory to ingest",
				Value:   "data",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not print per-file progress",
			},
		},
		Before: setupLogger,
		Action: ingestCommand,
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Handle SIGINT/SIGTERM: stop scheduling new files, keep committed batches
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-sig:
			slog.Warn("interrupt received, finishing in-flight files")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	var opts []ingestion_engine.Option
	if !c.Bool("no-progress") {
		opts = append(opts, ingestion_engine.WithObserver(progress.NewConsole(os.Stderr)))
	}

	application, err := app.NewApp(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer application.Close()

	report, err := application.Ingestor.Run(ctx, c.String("directory"))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if report != nil && len(report.Failures) > 0 {
		slog.Warn("some files were not ingested", "failures", len(report.Failures))
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
