package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yatube/internal/config"
	"yatube/internal/db"
	"yatube/internal/logging"
	"yatube/internal/router"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/mdobak/go-xerrors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", slog.String("error", xerrors.Sprint(err)))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, cfg.IsDev(), cfg.LogLevel)
	slog.SetDefault(log)

	// Initialize Database
	gdb, err := db.Open(cfg.DBDriver, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.SeedDefaultGroups(ctx, gdb, log); err != nil {
		return err
	}

	cache, err := utils.NewFragmentStore(cfg.CacheBackend, cfg.CacheSize)
	if err != nil {
		return err
	}

	engine, err := router.New(router.App{
		Config: cfg,
		DB:     gdb,
		Cache:  cache,
		Images: services.NewImageStore(cfg.MediaRoot, cfg.MaxImageBytes),
		Logger: log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Yatube server starting", slog.String("addr", srv.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return xerrors.Newf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Newf("shutdown: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
