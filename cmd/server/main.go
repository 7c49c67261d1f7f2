package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	router "github.com/dkeye/peerlink/internal/adapters/http"
	wssignal "github.com/dkeye/peerlink/internal/adapters/signal"
	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/app/orch"
	"github.com/dkeye/peerlink/internal/config"
	"github.com/dkeye/peerlink/internal/logging"
	"github.com/dkeye/peerlink/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console logger first so config.Load can already log.
	logging.Bootstrap()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logFile := logging.Setup(cfg)
	defer logFile.Close()

	reg := app.NewRegistry()
	m := metrics.New(reg.Len)
	rooms := app.NewRoomManager(reg, cfg.MaxUsersPerRoom, cfg.SupportedLanguages)

	joinLimiter := app.NewRateLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow)
	o := &orch.Orchestrator{
		Registry:           reg,
		Policy:             app.PolicyByName(cfg.BackpressurePolicy),
		JoinLimiter:        joinLimiter,
		Metrics:            m,
		GracePeriod:        cfg.GracePeriod,
		MaxUsersPerRoom:    cfg.MaxUsersPerRoom,
		SupportedLanguages: cfg.SupportedLanguages,
	}

	sig := wssignal.NewSignalWSController(o, m, wssignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	sweeper := app.NewSweeper(reg, cfg.SweepInterval, cfg.RoomIdleTTL)
	sweeper.Limiter = joinLimiter
	go sweeper.Run(ctx)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:    o,
		Rooms:   rooms,
		Signal:  sig,
		Metrics: m,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("PeerLink signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
