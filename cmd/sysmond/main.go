package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/sysmond/internal/alert"
	"codeberg.org/mutker/sysmond/internal/config"
	"codeberg.org/mutker/sysmond/internal/history"
	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
	"codeberg.org/mutker/sysmond/internal/pid"
	"codeberg.org/mutker/sysmond/internal/sampler"
)

// sessionTopProcesses is how many process names a session summary keeps.
const sessionTopProcesses = 3

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

	historyCfg := history.DefaultConfig()
	historyCfg.DBPath = cfg.Database
	historyCfg.MaxPoints = cfg.MaxHistoryPoints()
	historyCfg.MaxSessions = cfg.MaxSessions()
	historyCfg.AutosaveInterval = cfg.AutosaveInterval()

	historyRepo, err := history.NewRepository(historyCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open history storage")
	}
	defer func() {
		if err := historyRepo.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close history storage")
		}
	}()

	store, err := history.NewStore(historyCfg, historyRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize history store")
	}

	consumers := []monitor.Consumer{store}

	var engine *alert.Engine
	if cfg.NoAlerts {
		logger.Info().Msg("Alert evaluation disabled. Recording only...")
	} else {
		alertCfg := alert.DefaultConfig()
		alertCfg.DBPath = cfg.Database
		alertCfg.MaxEvents = cfg.MaxAlertEvents()

		alertRepo, err := alert.NewRepository(alertCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open alert storage")
		}
		defer func() {
			if err := alertRepo.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close alert storage")
			}
		}()

		engine, err = alert.New(alertCfg, alertRepo)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize alert engine")
		}
		consumers = append(consumers, engine)
	}

	monitorCfg := monitor.Config{
		Interval:        cfg.TickInterval(),
		ProcessThrottle: cfg.ProcessThrottle(),
		BatteryThrottle: cfg.BatteryThrottle(),
		HistoryLength:   cfg.HistoryLength,
		ProcessCount:    cfg.ProcessCount,
	}
	mon, err := monitor.New(monitorCfg, sampler.NewSet(), consumers...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize monitor")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	store.StartSession()
	baselineEvents := 0
	if engine != nil {
		baselineEvents = len(engine.Events())
	}

	logger.Info().
		Float64("interval", cfg.Interval).
		Int("history_length", cfg.HistoryLength).
		Msg("Monitoring started")

	if err := mon.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in monitor loop")
	}

	closeSession(store, engine, mon, baselineEvents)
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// closeSession ends the run's recording session with the alerts fired and
// the top process names from the last snapshot.
func closeSession(store *history.Store, engine *alert.Engine, mon *monitor.Monitor, baselineEvents int) {
	alertCount := 0
	if engine != nil {
		alertCount = len(engine.Events()) - baselineEvents
	}

	var topProcesses []string
	if snapshot := mon.Snapshot(); snapshot != nil {
		for i, proc := range snapshot.Processes {
			if i == sessionTopProcesses {
				break
			}
			topProcesses = append(topProcesses, proc.Name)
		}
	}

	if _, err := store.EndSession(alertCount, topProcesses); err != nil {
		logger.Error().Err(err).Msg("failed to close recording session")
	}
}
