package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product_sheet/internal/app"
	httpapi "product_sheet/internal/http"
	"product_sheet/internal/inventory"
	"product_sheet/internal/notifications"
	"product_sheet/internal/sheets"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	useMemory  bool
	pretty     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "product-sheet",
		Short: "HTTP API for a Google Sheets product list",
		Long: `product-sheet serves /add-product, /upload-excel and /fetch on top of one
Google Sheets worksheet, keeping a styled header, price-tier row colors and a
trailing SUM row in place after every write.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupEnvironment()
		},
		RunE: runServe,
	}
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: $HTTP_ADDR or :8000)")
	rootCmd.Flags().BoolVar(&useMemory, "memory", false, "Serve an in-memory worksheet instead of Google Sheets")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print every row of the worksheet as JSON",
		Args:  cobra.NoArgs,
		RunE:  runFetch,
	}
	fetchCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	rootCmd.AddCommand(fetchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig(!useMemory)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.HTTPAddr = listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sheet inventory.Sheet
	if useMemory {
		log.Warn().Str("sheet", cfg.SheetName).Msg("Using in-memory worksheet; data is lost on exit")
		sheet = sheets.NewMemory(cfg.SheetName)
	} else {
		ws, err := app.OpenWorksheet(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open worksheet: %w", err)
		}
		sheet = ws
	}

	notifier := app.InitializeNotificationClient(cfg)
	inv := app.NewInventory(sheet, notifier)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewApp(inv)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	return shutdown(srv, notifier, cfg.ShutdownTimeout)
}

func shutdown(srv *http.Server, notifier *notifications.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
		return err
	}
	if err := notifier.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Pending notifications abandoned")
	}
	log.Info().Msg("Server stopped")
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig(true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ws, err := app.OpenWorksheet(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open worksheet: %w", err)
	}

	rows, err := app.NewInventory(ws, nil).FetchAll(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rows)
}
