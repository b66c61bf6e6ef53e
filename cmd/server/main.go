package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appraze/internal/app/server"
	"appraze/internal/platform/config"
	"appraze/internal/platform/db"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "appraze",
		Short:   "Appraze performance review API",
		Version: Version,
		// Running the binary bare starts the server, as the container expects.
		RunE: runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address, overrides APP_ADDR")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flag := cmd.Flags().Lookup("addr"); flag != nil && flag.Value.String() != "" {
		cfg.Addr = flag.Value.String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, cfg)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			slog.Info("migrations applied", "dir", cfg.MigrationsDir)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install plans and the optional admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()
			if err := db.Seed(cmd.Context(), pool, cfg); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			slog.Info("seed complete")
			return nil
		},
	}
}
