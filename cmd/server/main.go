package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/core"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/infrastructure/storage"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/replay"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/server"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/version"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func init() {
	logger.Init()
}

func main() {
	// 1. Парсинг конфигурации
	var (
		configPath string
		recordDir  string
		tickSecs   float64
		workers    int
		validate   bool
	)
	flag.StringVar(&configPath, "config", "config/game_config.yaml", "Path to the game rules YAML")
	flag.StringVar(&recordDir, "record-dir", "", "Directory for recorded battles (empty keeps them in memory)")
	flag.Float64Var(&tickSecs, "tick", engine.DefaultTickSecs, "Simulation tick length in seconds")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Number of battle computer workers")
	flag.BoolVar(&validate, "validate-events", false, "Check every computed event stream (slow)")
	flag.Parse()

	logger.Log.Info("Starting InfiniTD battle server...")
	logger.Log.Info(version.String())

	port := os.Getenv("TD_PORT")
	if port == "" {
		port = "8794"
	}

	// 2. Правила игры
	rules, err := gameconfig.Load(configPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load game rules")
	}
	pf := rules.Playfield()
	logger.Log.WithFields(logrus.Fields{
		"config": configPath,
		"rows":   pf.NumRows,
		"cols":   pf.NumCols,
	}).Info("Game rules loaded")

	// 3. Ядро: пул расчетов, проигрывание, хранилище
	cfg := engine.NewConfig()
	cfg.TickSecs = tickSecs
	cfg.Validate = validate
	pool := engine.NewPool(rules, cfg, workers)
	coord := replay.NewCoordinator()

	var store *storage.BattleStore
	if recordDir != "" {
		store, err = storage.NewBattleStore(recordDir)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to open battle store")
		}
		logger.Log.Infof("Recorded battles are saved to %s", recordDir)
	}

	battles := core.NewBattleService(pool, coord, store)
	battles.OnResults(func(name string, results domain.BattleResults) {
		logger.WithComponent("economy").WithFields(logrus.Fields{
			"user": name,
			"gpm":  results.GoldPerMinute(),
		}).Info("Gold rate updated")
	})

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 4. Запуск сервера
	srv := server.New(battles, port)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error:", err)
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("HTTP server shutdown failed")
	}
	if err := coord.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("Battle coordinator shutdown timed out")
	}
	pool.Close()

	logger.Log.Info("Done.")
}
