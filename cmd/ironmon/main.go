package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/ironmon/internal/acquire"
	"codeberg.org/mutker/ironmon/internal/config"
	"codeberg.org/mutker/ironmon/internal/decode"
	"codeberg.org/mutker/ironmon/internal/history"
	"codeberg.org/mutker/ironmon/internal/link"
	"codeberg.org/mutker/ironmon/internal/logger"
	"codeberg.org/mutker/ironmon/internal/pid"
	"codeberg.org/mutker/ironmon/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	store, err := history.New(cfg.Capacity)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create history store")
	}

	capture, err := telemetry.NewService(telemetry.Config{
		Enabled: cfg.Capture,
		DBPath:  cfg.CaptureDB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize sample capture")
	}
	defer func() {
		if err := capture.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close sample capture")
		}
	}()

	mgr := link.NewManager(link.SerialOpener(cfg.Port, cfg.Baud))
	svc := acquire.NewService(mgr, decode.New(decode.Protocol(cfg.Protocol)), store, capture)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	logger.Info().
		Str("port", cfg.Port).
		Int("baud", cfg.Baud).
		Str("protocol", cfg.Protocol).
		Int("capacity", cfg.Capacity).
		Msg("Starting acquisition")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("error in acquisition loop")
		}
	}()

	statusLoop(ctx, store, svc, mgr)

	wg.Wait()
	logger.Info().Msg("Exiting...")
}

// statusLoop is the render consumer: it polls the history store at the
// configured interval and reports the latest readings.
func statusLoop(ctx context.Context, store *history.Store, svc *acquire.Service, mgr *link.Manager) {
	ticker := time.NewTicker(time.Duration(cfg.StatusInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStatus(store, svc, mgr)
		}
	}
}

func logStatus(store *history.Store, svc *acquire.Service, mgr *link.Manager) {
	last, ok := store.Last()
	if !ok {
		logger.Info().
			Str("link", string(mgr.State())).
			Msg("No samples yet")
		return
	}

	if cfg.Debug {
		stats := store.Stats()
		logger.Debug().
			Str("link", string(mgr.State())).
			Uint64("epoch", last.Epoch).
			Float64("elapsed", last.Elapsed).
			Float64("temperature", last.Temperature).
			Float64("power", last.Power).
			Int("samples", stats.Count).
			Float64("temperature_min", stats.TemperatureMin).
			Float64("temperature_max", stats.TemperatureMax).
			Float64("temperature_avg", stats.TemperatureAvg).
			Float64("power_avg", stats.PowerAvg).
			Uint64("accepted", svc.Accepted()).
			Uint64("rejected", svc.Rejected()).
			Msg("")
	} else if cfg.Verbose {
		logger.Info().
			Float64("temperature", last.Temperature).
			Float64("power", last.Power).
			Int("samples", store.Len()).
			Msg("")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
