package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashadvance/pkg/logger"
	"cashadvance/pkg/metrics"
	"cashadvance/service"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg.warnings(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// `cashadvance migrate` runs migrations and seeding, then exits.
	migrateOnly := len(os.Args) > 1 && os.Args[1] == "migrate"
	if migrateOnly {
		cfg.AutoMigrate = true
	}

	st, err := initDB(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	auth := service.NewAuthService(st, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, log)
	apps := service.NewApplicationService(st, service.ApplicationOptions{AutoApprove: cfg.AutoApprove}, log, m)

	if err := seedDB(ctx, cfg, st, auth, log); err != nil {
		log.Warn("seeding failed", "err", err)
	}
	if migrateOnly {
		fmt.Println("migration and seeding completed")
		return nil
	}
	if n, err := st.DeleteExpiredRefreshTokens(ctx, time.Now()); err != nil {
		log.Warn("refresh token cleanup failed", "err", err)
	} else if n > 0 {
		log.Info("removed expired refresh tokens", "count", n)
	}

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(newServer(cfg, st, auth, apps, m, log))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "auto_approve", cfg.AutoApprove)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
