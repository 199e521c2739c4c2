package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version string) error {
	cmd := &cli.Command{
		Name:    "relay",
		Usage:   "Anthropic-compatible relay for chat-completion backends",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			authCommand(),
		},
	}

	return cmd.Run(ctx, args)
}
