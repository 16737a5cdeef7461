package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"makequeue-backend/config"
	"makequeue-backend/internal/admin"
	"makequeue-backend/internal/api"
	"makequeue-backend/internal/clock"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/db"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/mw"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/reservation"
	"makequeue-backend/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a.cfg)
		},
	}
}

// services wires the domain services onto one database.
type services struct {
	db    *gorm.DB
	store store.Store
	perms *permission.Enforcer
	api   api.Services
}

func newServices(cfg *config.Config) (*services, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, err
	}

	opts := []store.Option{store.WithRetries(cfg.Database.TxRetries)}
	if cfg.Database.Driver == "postgres" {
		opts = append(opts, store.WithSerializable())
	}
	s := store.NewGormStore(gormDB, opts...)

	perms, err := permission.NewEnforcer(gormDB, cfg.Permission.ModelPath)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	gate := course.NewGate(perms)
	return &services{
		db:    gormDB,
		store: s,
		perms: perms,
		api: api.Services{
			Machines:     machine.NewService(s, gate, perms, clk),
			Reservations: reservation.NewService(s, gate, perms, clk, cfg.Booking.Location),
			Admin:        admin.NewService(s),
			Courses:      course.NewService(s),
			Permissions:  perms,
			Location:     cfg.Booking.Location,
		},
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("server")

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be configured")
	}
	gin.SetMode(cfg.Server.Mode)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	svc.perms.StartAutoReload(time.Duration(cfg.Permission.ReloadIntervalSec) * time.Second)
	defer svc.perms.StopAutoReload()

	limiter := mw.NewIPRateLimiter(
		rate.Limit(cfg.Server.RateLimitPerSec),
		cfg.Server.RateLimitBurst,
		time.Duration(cfg.Server.LimiterIdleMinutes)*time.Minute,
	)
	router := api.NewRouter(api.NewHandler(svc.api), api.RouterConfig{
		Limiter: limiter,
		Tokens:  mw.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Users:   svc.store,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	log.Info("server gracefully stopped")
	return nil
}
