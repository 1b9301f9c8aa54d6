package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/octopad/internal"
	"github.com/starford/octopad/internal/mcpserver"
	pkgconfig "github.com/starford/octopad/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// serveMCP speaks MCP on stdio, so logs go to stderr.
func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	board, err := internal.OpenBoard(cfg, logger)
	if err != nil {
		return err
	}
	defer board.Close()

	board.Coordinator.Reconcile(ctx, board.UserID)
	return mcpserver.New(board.Coordinator, board.UserID).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:   "octopad",
		Usage:  "Tiered launch-pad board with a local cache, share codes and a remote tier store",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the tier store HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Expose the local board as MCP tools over stdio",
				Action: serveMCP,
			},
			boardCommand(),
			registerCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
