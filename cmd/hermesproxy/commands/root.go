package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/udisondev/hermesgo/internal/config"
)

var (
	configPath string
	realmName  string
	logLevel   string

	cfg config.Proxy
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "hermesproxy",
		Short:         "Legacy realm protocol proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if realmName != "" {
				loaded.Realm = realmName
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}

			level, err := loaded.Level()
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			})))

			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $"+config.EnvConfig+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&realmName, "realm", "", "realm name (default first online realm)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(runCmd(), realmsCmd(), buildsCmd())

	ctx, cancel := signalContext()
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("fatal", "err", err)
		return err
	}
	return nil
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
