package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/stackprefix/internal/app"
	"github.com/florianilch/stackprefix/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "stackprefix",
		Usage: "Prefix every stacked Evernote notebook with its stack name",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file read before the environment",
				Value: defaultEnvFile,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (auto|text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.IntFlag{
				Name:  "callback--port",
				Usage: "local port the OAuth callback listener binds",
				Value: app.DefaultConfigCallbackPort,
			},
			&cli.BoolFlag{
				Name:  "service--sandbox",
				Usage: "use the Evernote sandbox service",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "print the authorize URL instead of opening a browser",
			},
		},
		Action: rootAction,
	}

	return cmd.Run(ctx, args)
}

func rootAction(ctx context.Context, cmd *cli.Command) error {
	environ, err := withDotenv(cmd.String("env-file"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), string(cfg.LogExporter))
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		// Flush even when ctx was canceled
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Run(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "done")
	return nil
}
