package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Midan14/baccarat-bot/internal/backtest"
	"github.com/Midan14/baccarat-bot/internal/bayes"
	"github.com/Midan14/baccarat-bot/internal/confidence"
	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/fusion"
	"github.com/Midan14/baccarat-bot/internal/orchestrator"
	"github.com/Midan14/baccarat-bot/internal/pattern"
	"github.com/Midan14/baccarat-bot/internal/risk"
	"github.com/Midan14/baccarat-bot/internal/simulator"
	"github.com/Midan14/baccarat-bot/pkg/config"
	"github.com/Midan14/baccarat-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	hands := flag.Int("hands", 500, "生成序列的手数（未指定 -file 时生效）")
	seed := flag.Int64("seed", 42, "随机种子")
	file := flag.String("file", "", "历史结果文件（B/P/T 符号，空白分隔）")
	flag.Parse()

	if err := logger.InitDefault(); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}

	if *configPath != "" {
		config.SetConfigPath(*configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	outcomes, err := loadOutcomes(*file, *hands, *seed)
	if err != nil {
		logrus.Errorf("加载结果序列失败: %v", err)
		os.Exit(1)
	}
	logrus.Infof("回测序列: %d 手", len(outcomes))

	orch, err := buildOrchestrator(cfg, *seed)
	if err != nil {
		logrus.Errorf("构建编排器失败: %v", err)
		os.Exit(1)
	}
	runner, err := backtest.NewRunner(orch)
	if err != nil {
		logrus.Errorf("构建回测执行器失败: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := runner.Run(ctx, outcomes)
	if err != nil {
		logrus.Errorf("回测失败: %v", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logrus.Errorf("序列化报告失败: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func buildOrchestrator(cfg *config.Config, seed int64) (*orchestrator.Orchestrator, error) {
	sim := simulator.New(simulator.Config{
		NumSimulations: cfg.Simulation.NumSimulations,
		NumDecks:       cfg.Simulation.NumDecks,
		Workers:        cfg.Simulation.Workers,
		Seed:           seed,
	})
	fuser, err := fusion.New(fusion.DefaultWeights())
	if err != nil {
		return nil, err
	}
	riskMgr, err := risk.NewManager(risk.Config{
		InitialBalance:    decimal.NewFromFloat(cfg.Risk.InitialBalance),
		BaseUnit:          decimal.NewFromFloat(cfg.Risk.BaseUnit),
		StopLossPct:       cfg.Risk.StopLossPct,
		StopWinPct:        cfg.Risk.StopWinPct,
		MaxBetPct:         cfg.Risk.MaxBetPct,
		EmergencyDrawdown: cfg.Risk.EmergencyDrawdown,
		MaxSessionTime:    time.Duration(cfg.Risk.MaxSessionMinutes) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Config{
		SignalEvery:       cfg.Signal.Every,
		SimulationTimeout: cfg.Simulation.Timeout,
		HistoryCapacity:   cfg.Signal.HistoryCapacity,
		Table:             "backtest",
		Payouts:           cfg.Signal.Payouts.PayoutTable(),
	}, sim, pattern.NewAnalyzer(), bayes.NewUpdater(), fuser, confidence.New(), riskMgr)
}

// loadOutcomes 读取结果文件，或按真实占比生成随机序列
func loadOutcomes(path string, hands int, seed int64) ([]domain.Outcome, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var outcomes []domain.Outcome
		for _, tok := range strings.Fields(string(data)) {
			o, err := domain.ParseOutcome(strings.ToUpper(tok))
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, o)
		}
		return outcomes, nil
	}

	rng := rand.New(rand.NewSource(seed))
	outcomes := make([]domain.Outcome, hands)
	for i := range outcomes {
		r := rng.Float64()
		switch {
		case r < domain.BaseProbBanker:
			outcomes[i] = domain.OutcomeBanker
		case r < domain.BaseProbBanker+domain.BaseProbPlayer:
			outcomes[i] = domain.OutcomePlayer
		default:
			outcomes[i] = domain.OutcomeTie
		}
	}
	return outcomes, nil
}
