package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CageChen/clarvfs/internal/config"
	"github.com/CageChen/clarvfs/internal/handler"
	"github.com/CageChen/clarvfs/internal/host"
	"github.com/CageChen/clarvfs/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a VFS host for the project directory",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting vfs host",
		zap.String("config", cfg.GetConfigFilePath()),
		zap.String("root", cfg.Root),
		zap.String("backend", cfg.Backend),
		zap.String("git_ref", cfg.GitRef),
		zap.Int("port", cfg.Port),
	)

	ws := handler.NewWSHandler(host.NewDispatcher(backend, logger), logger)

	// Change notifications only make sense when the disk is what we serve.
	if cfg.Watch && cfg.Backend == config.BackendLocal {
		w, err := watcher.New(cfg, logger)
		if err != nil {
			logger.Warn("failed to create file watcher", zap.Error(err))
		} else {
			w.OnChange(ws.OnFileChange)
			if err := w.Start(); err != nil {
				logger.Warn("failed to start file watcher", zap.Error(err))
			}
			defer func() { _ = w.Stop() }()
			logger.Info("file watcher enabled")
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.NewRouter(backend, ws),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("host listening", zap.String("url", fmt.Sprintf("ws://localhost:%d/api/vfs", cfg.Port)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapIf(err, "serve")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
