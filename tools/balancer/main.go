package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

// strategyPlan - стратегия "ряды одной башни против волн одного монстра".
type strategyPlan struct {
	name    string
	tower   string
	monster string
}

var strategies = []strategyPlan{
	{"BalancedRows", "Paper Arrow Tower", "Dust Clump"},
	{"FastRows", "Poking Tower", "Dust Bunny"},
	{"SlowRows", "Brick Tower", "Dust Mass"},
}

func main() {
	logger.Init()

	configPath := flag.String("config", "config/game_config.yaml", "Path to the game rules YAML")
	target := flag.Float64("target", 1000, "Gold to accumulate")
	out := flag.String("out", "balancing_results.json", "Where to write the strategy histories")
	fine := flag.Bool("fine", false, "Use the server tick instead of the coarse bulk tick")
	flag.Parse()

	rules, err := gameconfig.Load(*configPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load game rules")
	}

	cfg := engine.BulkConfig()
	if *fine {
		cfg = engine.NewConfig()
	}
	log := logger.WithComponent("balancer")

	results := make(map[string][]GameState)
	for _, plan := range strategies {
		tower, ok := rules.TowerByName(plan.tower)
		if !ok {
			log.WithField("tower", plan.tower).Warn("Unknown tower, skipping strategy")
			continue
		}
		monster, ok := rules.MonsterByName(plan.monster)
		if !ok {
			log.WithField("monster", plan.monster).Warn("Unknown monster, skipping strategy")
			continue
		}

		comp := engine.NewComputer(rules, cfg)
		strategy := NewStrategy(plan.name, comp,
			NewFixedOrderPlacing(rules.Playfield(), RowOrder(rules.Playfield())),
			FixedTowerSelection{Tower: tower.ID},
			NewHomogeneousWaves(comp, []domain.ConfigID{monster.ID}),
		)

		start := time.Now()
		history, err := strategy.EvaluateUntil(*target)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"strategy": plan.name}).Error("Strategy failed")
			continue
		}
		results[plan.name] = history

		fmt.Printf("%s (%.1fs)\n", plan.name, time.Since(start).Seconds())
		for _, state := range history {
			fmt.Printf("After %3dm accumulated %5.1f gold and built %d towers. Future gold rate: %.1f gpm\n",
				state.TotalMinutes, state.AccumulatedGold, state.NumTowers, state.GoldPerMinute)
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		log.WithError(err).Fatal("Failed to create results file")
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"results": results}); err != nil {
		log.WithError(err).Fatal("Failed to write results")
	}
}
