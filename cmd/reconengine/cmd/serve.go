package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-engine/cmd/reconengine/config"
	"payment-reconciliation-engine/internal/server"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the engine over HTTP: batch ingestion endpoints,
reconciliation runs, match listings and the discrepancy report.

Records live in the in-memory store unless --database-url (or
RECONENGINE_DATABASE_URL) points at PostgreSQL, in which case the
schema is migrated on startup.`,
	PreRunE: validateServeFlags,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String(config.KeyListen, ":8080", "address to listen on")
	serveCmd.Flags().String(config.KeyDatabaseURL, "", "PostgreSQL connection string (empty for in-memory store)")
	addMatchingFlags(serveCmd)
}

func validateServeFlags(cmd *cobra.Command, args []string) error {
	keys := append([]string{config.KeyListen, config.KeyDatabaseURL}, config.MatchingFlagKeys...)
	if err := bindFlags(cmd, keys...); err != nil {
		return err
	}

	if strings.TrimSpace(viper.GetString(config.KeyListen)) == "" {
		return apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			config.KeyListen,
			"blank listen address",
			nil,
		).WithSuggestion("pass an address like :8080 or 127.0.0.1:9090")
	}

	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	matchingCfg, err := config.BuildMatchingConfig()
	if err != nil {
		return err
	}

	st, closeStore, err := config.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	log := logger.GetGlobalLogger().WithComponent("serve")

	storeKind := "memory"
	if viper.GetString(config.KeyDatabaseURL) != "" {
		storeKind = "postgres"
	}

	listen := viper.GetString(config.KeyListen)
	srv := &http.Server{
		Addr:    listen,
		Handler: server.New(st, matchingCfg, version),
		// Reconciliation runs inside the request, so writes get a
		// generous deadline.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.WithFields(logger.Fields{
		"listen": listen,
		"store":  storeKind,
	}).Info("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return apperrors.Wrap(err, apperrors.CategoryNetwork, apperrors.CodeConnectionFailed,
			"HTTP server failed").WithSuggestion("check that the listen address is free and valid")
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryNetwork, apperrors.CodeTimeout,
			"HTTP server shutdown did not complete")
	}

	return nil
}
