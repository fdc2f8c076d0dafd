package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/udisondev/hermesgo/internal/proxy"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in and keep a world session alive (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(cmd.Context())
		},
	}
}

func runProxy(ctx context.Context) error {
	p, err := proxy.New(cfg)
	if err != nil {
		return err
	}

	slog.Info("hermesproxy starting",
		"auth", cfg.AuthAddress(),
		"build", cfg.Build,
		"user", cfg.Username,
		"realm", cfg.Realm)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	slog.Info("hermesproxy stopped")
	return nil
}
