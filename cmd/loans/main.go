package main

import (
	"biblioteca/pkg/config"
	"biblioteca/pkg/database"
	"biblioteca/pkg/loans"
	"biblioteca/pkg/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "loans",
		Short:        "Loan, reservation and favorites service of the digital library",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LIBRARY_CONFIG"), "Path to a TOML config file")

	load := func() (config.Config, error) { return config.Load(configPath) }

	cmd.AddCommand(
		newServeCmd(load),
		newSweepCmd(load),
		newExportCmd(load),
		newImportCmd(load),
		newClearCmd(load),
	)
	return cmd
}

type configLoader func() (config.Config, error)

func openStore(cfg config.Config) (*gorm.DB, *storage.GormStore, error) {
	db, err := database.InitStoreDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, storage.NewGormStore(db, cfg.Loans.StorePrefix), nil
}

func newEngine(ctx context.Context, store storage.Store) (*loans.Engine, error) {
	return loans.NewEngine(ctx, store, loans.WithLogger(slog.Default().With("component", "loans")))
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newServeCmd(load configLoader) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the loans HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Loans.Port = port
			}

			db, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			engine, err := newEngine(cmd.Context(), store)
			if err != nil {
				return err
			}

			addr := ":" + cfg.Loans.Port
			srv := &http.Server{
				Addr:    addr,
				Handler: newRouter(&server{engine: engine, db: db}),
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Loans service starting", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down loans service...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Loans service stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides LOANS_PORT)")
	return cmd
}

func newSweepCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark active loans past their return date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			engine, err := newEngine(cmd.Context(), store)
			if err != nil {
				return err
			}
			n, err := engine.SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d loan(s) marked overdue\n", n)
			return nil
		},
	}
}

func newExportCmd(load configLoader) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every stored key as one JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			data, err := storage.Export(cmd.Context(), store)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "biblioteca-data.json", "Output file, - for stdout")
	return cmd
}

func newImportCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a document produced by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			db, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			n, err := storage.Import(cmd.Context(), store, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d key(s) imported\n", n)
			return nil
		},
	}
}

func newClearCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored key of this library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			n, err := storage.Clear(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d key(s) removed\n", n)
			return nil
		},
	}
}
