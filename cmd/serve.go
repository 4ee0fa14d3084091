// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/pkg/api"
	"github.com/quarrylabs/quarry/pkg/auth"
	"github.com/quarrylabs/quarry/pkg/config"
	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the S3 API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	reg, err := registry.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := bootstrapRootUser(ctx, reg, cfg); err != nil {
		return err
	}

	engine, err := auth.NewEngine(reg, reg)
	if err != nil {
		return err
	}
	server := api.NewServer(api.Config{
		Engine:   engine,
		Registry: reg,
		Users:    reg,
		TempDir:  cfg.TempDir,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("data_dir", cfg.DataDir).Msg("s3 api listening")
		errCh <- httpServer.ListenAndServe()
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", server.MetricsHandler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
			errCh <- metricsServer.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}

// bootstrapRootUser creates the configured root identity on first start so
// a fresh server is usable without the admin collaborator.
func bootstrapRootUser(ctx context.Context, reg *registry.Registry, cfg *config.Config) error {
	if cfg.RootUserEmail == "" || cfg.RootAccessKey == "" || cfg.RootSecretKey == "" {
		return nil
	}

	user, err := reg.GetUserByEmail(ctx, cfg.RootUserEmail)
	if errors.Is(err, iam.ErrUserNotFound) {
		user = &iam.User{
			GUID:        uuid.NewString(),
			DisplayName: "root",
			Email:       cfg.RootUserEmail,
			CreatedAt:   time.Now().UTC(),
		}
		if err := reg.CreateUser(ctx, user); err != nil {
			return err
		}
		logger.Info().Str("email", cfg.RootUserEmail).Msg("created root user")
	} else if err != nil {
		return err
	}

	_, _, err = reg.GetUserByAccessKey(ctx, cfg.RootAccessKey)
	if errors.Is(err, iam.ErrAccessKeyNotFound) {
		cred := &iam.Credential{
			AccessKey: cfg.RootAccessKey,
			SecretKey: cfg.RootSecretKey,
			UserGUID:  user.GUID,
			CreatedAt: time.Now().UTC(),
		}
		return reg.CreateCredential(ctx, cred)
	}
	return err
}
