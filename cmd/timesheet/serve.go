package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/citypets/timesheet-engine/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 8080, "HTTP server port")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	cmd.Flags().StringSlice("allowed-origins", nil, "CORS origins (comma separated)")
	cmd.Flags().String("scenario", "", "load a demo scenario on startup (resets the database)")
	_ = viper.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("allowed_origins", cmd.Flags().Lookup("allowed-origins"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// token shares the key, so bind at run time.
	_ = viper.BindPFlag("jwt_secret", cmd.Flags().Lookup("jwt-secret"))
	secret := viper.GetString("jwt_secret")
	if secret == "" {
		return errors.New("jwt secret is required (--jwt-secret or TIMESHEET_JWT_SECRET)")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.Default()
	handler := api.NewHandler(store, logger)

	if id, _ := cmd.Flags().GetString("scenario"); id != "" {
		if err := handler.Load(cmd.Context(), cliAdmin, id); err != nil {
			return fmt.Errorf("failed to load scenario %s: %w", id, err)
		}
		logger.Info("scenario loaded", "scenario", id)
	}

	router := api.NewRouter(handler, api.Options{
		JWTSecret:      secret,
		AllowedOrigins: splitOrigins(viper.GetStringSlice("allowed_origins")),
	})

	port := viper.GetInt("port")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", viper.GetString("db"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// splitOrigins accepts both repeated flags and a comma-separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
