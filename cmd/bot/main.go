package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Midan14/baccarat-bot/internal/bayes"
	"github.com/Midan14/baccarat-bot/internal/confidence"
	"github.com/Midan14/baccarat-bot/internal/controlplane/server"
	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/fusion"
	"github.com/Midan14/baccarat-bot/internal/infrastructure/feed"
	"github.com/Midan14/baccarat-bot/internal/notify"
	"github.com/Midan14/baccarat-bot/internal/orchestrator"
	"github.com/Midan14/baccarat-bot/internal/pattern"
	"github.com/Midan14/baccarat-bot/internal/risk"
	"github.com/Midan14/baccarat-bot/internal/simulator"
	"github.com/Midan14/baccarat-bot/internal/stream"
	"github.com/Midan14/baccarat-bot/pkg/config"
	"github.com/Midan14/baccarat-bot/pkg/logger"
	"github.com/Midan14/baccarat-bot/pkg/shutdown"
	"github.com/Midan14/baccarat-bot/pkg/store"
)

func main() {
	// 加载 .env（尽力而为，缺失则退回真实环境变量）
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	flag.Parse()

	if err := logger.InitDefault(); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}

	if *configPath != "" {
		config.SetConfigPath(*configPath)
		logrus.Infof("使用配置文件: %s", *configPath)
	} else if _, err := os.Stat("yml/config.yaml"); err == nil {
		config.SetConfigPath("yml/config.yaml")
		logrus.Info("使用默认配置文件: yml/config.yaml")
	} else {
		logrus.Warn("未指定配置文件，将使用环境变量和默认值")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	// 使用配置重新初始化日志
	logConfig := logger.Config{
		Level:        cfg.LogLevel,
		OutputFile:   cfg.LogFile,
		MaxSize:      100,
		MaxBackups:   10,
		MaxAge:       30,
		Compress:     true,
		LogBySession: cfg.LogBySession,
	}
	if err := logger.Init(logConfig); err != nil {
		logrus.Errorf("重新初始化日志失败: %v", err)
		os.Exit(1)
	}
	if cfg.LogBySession {
		logger.StartLogRotationChecker(logConfig)
	}

	logger.Info("🚀 启动信号引擎...")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	engine, riskMgr, err := buildEngine(cfg)
	if err != nil {
		logger.Errorf("构建引擎失败: %v", err)
		os.Exit(1)
	}

	shutdownMgr := shutdown.NewManager()

	// 结算日志（badger）：落盘 + 重启恢复
	journal, err := store.Open(store.OpenOptions{Path: cfg.PersistenceDir + "/journal"})
	if err != nil {
		logger.Errorf("打开结算日志失败: %v", err)
		os.Exit(1)
	}
	shutdownMgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		if err := journal.Close(); err != nil {
			logger.Errorf("关闭结算日志失败: %v", err)
		}
	})

	// 重启恢复资金状态
	if state, ok, err := journal.LoadBankroll(); err != nil {
		logger.Warnf("加载资金状态失败: %v", err)
	} else if ok {
		riskMgr.Restore(state)
		logger.Infof("已恢复资金状态: balance=%s state=%s", state.Balance.StringFixed(2), state.State)
	}

	engine.OnBankrollChanged(bankrollJournal{journal: journal, risk: riskMgr})

	// 控制面（gin + sqlite）：只读查询 + 会话控制 + 事件落库
	var cpServer *server.Server
	if cfg.ControlPlane.Enabled {
		cpServer, err = server.New(server.Config{
			DBPath: cfg.ControlPlane.DBPath,
			Addr:   cfg.ControlPlane.Addr,
		}, engine, riskMgr)
		if err != nil {
			logger.Errorf("初始化控制面失败: %v", err)
			os.Exit(1)
		}
		engine.OnSignal(cpServer)
		engine.OnBankrollChanged(cpServer)
		engine.OnSessionStateChanged(cpServer)

		httpSrv := &http.Server{
			Addr:              cpServer.Addr(),
			Handler:           cpServer.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("📊 控制面已启动: %s", cpServer.Addr())
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("控制面 HTTP 错误: %v", err)
			}
		}()
		shutdownMgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
			_ = httpSrv.Shutdown(ctx)
			_ = cpServer.Close()
		})
	}

	// Telegram 推送
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(notify.Config{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			MinTier:  domain.ConfidenceTier(cfg.Telegram.MinTier),
		})
		if err != nil {
			logger.Errorf("初始化 Telegram 失败: %v", err)
			os.Exit(1)
		}
		engine.OnSignal(tg)
		engine.OnBankrollChanged(tg)
		engine.OnSessionStateChanged(tg)
		logger.Info("📨 Telegram 推送已启用")
	}

	if cfg.DryRun {
		logger.Warn("📝 纸面模式已启用：信号照常产出，注金仍按虚拟资金记账")
	}

	// 结果源：websocket 或 demo
	src, err := buildFeed(cfg)
	if err != nil {
		logger.Errorf("构建结果源失败: %v", err)
		os.Exit(1)
	}

	src.OnOutcome(stream.OutcomeHandlerFunc(func(ctx context.Context, e *events.OutcomeEvent) error {
		if e.ShoeChanged {
			engine.ResetShoe()
			return nil
		}
		_, err := engine.Ingest(ctx, *e)
		return err
	}))

	if err := src.Connect(rootCtx); err != nil {
		logger.Errorf("连接结果源失败: %v", err)
		os.Exit(1)
	}
	shutdownMgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		if err := src.Close(); err != nil {
			logger.Errorf("关闭结果源失败: %v", err)
		}
	})

	engine.StartSession(rootCtx)
	logger.SetSessionTimestamp(time.Now().Unix())

	logger.Info("✅ 信号引擎已启动，按 Ctrl+C 停止")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("收到停止信号，正在关闭...")
	rootCancel()

	// 关停前保存资金状态
	if err := journal.SaveBankroll(riskMgr.Snapshot()); err != nil {
		logger.Warnf("保存资金状态失败: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdownMgr.Shutdown(shutdownCtx)

	logger.Info("✅ 信号引擎已停止")
}

// buildEngine 组装编排器与风控
func buildEngine(cfg *config.Config) (*orchestrator.Orchestrator, *risk.Manager, error) {
	sim := simulator.New(simulator.Config{
		NumSimulations: cfg.Simulation.NumSimulations,
		NumDecks:       cfg.Simulation.NumDecks,
		Workers:        cfg.Simulation.Workers,
		Seed:           cfg.Simulation.Seed,
	})

	analyzer := pattern.NewAnalyzer()
	updater := bayes.NewUpdater()
	fuser, err := fusion.New(fusion.DefaultWeights())
	if err != nil {
		return nil, nil, err
	}
	classifier := confidence.New()

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
		return nil, nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		SignalEvery:       cfg.Signal.Every,
		SimulationTimeout: cfg.Simulation.Timeout,
		HistoryCapacity:   cfg.Signal.HistoryCapacity,
		Table:             cfg.Feed.Table,
		Payouts:           cfg.Signal.Payouts.PayoutTable(),
	}, sim, analyzer, updater, fuser, classifier, riskMgr)
	if err != nil {
		return nil, nil, err
	}
	return orch, riskMgr, nil
}

// buildFeed 按配置构建结果源
func buildFeed(cfg *config.Config) (stream.OutcomeStream, error) {
	switch cfg.Feed.Mode {
	case "websocket":
		return feed.NewOutcomeWebSocket(feed.Config{
			URL:      cfg.Feed.URL,
			Table:    cfg.Feed.Table,
			ProxyURL: cfg.ProxyURL,
		}), nil
	default:
		return feed.NewDemoFeed(feed.DemoConfig{
			Table: cfg.Feed.Table,
			Seed:  cfg.Simulation.Seed,
		}), nil
	}
}

// bankrollJournal 结算事件写入 badger 日志
type bankrollJournal struct {
	journal *store.Store
	risk    *risk.Manager
}

func (b bankrollJournal) OnBankrollChanged(ctx context.Context, e events.BankrollChangedEvent) error {
	if err := b.journal.AppendSettlement(e); err != nil {
		return err
	}
	return b.journal.SaveBankroll(b.risk.Snapshot())
}
