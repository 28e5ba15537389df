package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/infrastructure/storage"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

func main() {
	logger.Init()

	configPath := flag.String("config", "config/game_config.yaml", "Path to the game rules YAML")
	iters := flag.Int("i", 1, "Number of battle computations")
	bulk := flag.Bool("bulk", false, "Use the coarse tick of the balancer")
	flag.Usage = printHelp
	flag.Parse()

	if flag.NArg() != 1 || *iters < 1 {
		printHelp()
		os.Exit(2)
	}

	rules, err := gameconfig.Load(*configPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load game rules")
	}
	in, err := storage.LoadInput(flag.Arg(0))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load battle input")
	}

	cfg := engine.NewConfig()
	if *bulk {
		cfg = engine.BulkConfig()
	}
	comp := engine.NewComputer(rules, cfg)

	var res *engine.CalcResults
	start := time.Now()
	for i := 0; i < *iters; i++ {
		res, err = comp.Compute(in.Battleground, in.Wave)
		if err != nil {
			logger.Log.WithError(err).Fatal("Battle computation failed")
		}
	}
	duration := time.Since(start)

	fmt.Printf("Computed the %d battles in %.3fs (%.4fs each)\n",
		*iters, duration.Seconds(), duration.Seconds()/float64(*iters))
	fmt.Printf("%d events, %.2fs battle, reward %.1f (%.1f gpm)\n",
		len(res.Events), res.Results.TimeSecs, res.Results.Reward, res.Results.GoldPerMinute())
}

func printHelp() {
	fmt.Println(`Battle Time - замер скорости расчета битвы
Usage:
  battletime [-config rules.yaml] [-i iters] [-bulk] <battle_input.json>

Файл входных данных: {"battleground": {...}, "wave": [...]}
(его отдает POST /debug/input)`)
}
