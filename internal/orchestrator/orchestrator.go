package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/metrics"
	"github.com/Midan14/baccarat-bot/internal/ports"
	"github.com/Midan14/baccarat-bot/pkg/cache"
	"github.com/Midan14/baccarat-bot/pkg/logger"
	"github.com/pkg/errors"
)

// Config 编排器配置
type Config struct {
	SignalEvery       int           // 每 k 局产出一次信号，默认 7
	SimulationTimeout time.Duration // 模拟超时，默认 3s
	HistoryCapacity   int           // 结果历史容量，默认 100
	SignalCapacity    int           // 信号历史容量，默认 100
	Table             string        // 台桌标识（缓存键）
	Payouts           domain.PayoutTable
}

// ApplyDefaults 填充默认配置
func (c *Config) ApplyDefaults() {
	if c.SignalEvery <= 0 {
		c.SignalEvery = 7
	}
	if c.SimulationTimeout <= 0 {
		c.SimulationTimeout = 3 * time.Second
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = domain.DefaultHistoryCap
	}
	if c.SignalCapacity <= 0 {
		c.SignalCapacity = 100
	}
	if c.Table == "" {
		c.Table = "default"
	}
	if c.Payouts == (domain.PayoutTable{}) {
		c.Payouts = domain.DefaultPayouts()
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return c.Payouts.Validate()
}

// Stats 信号统计（只读快照）
type Stats struct {
	OutcomesSeen      int     `json:"outcomes_seen"`
	SignalsEmitted    int     `json:"signals_emitted"`
	SignalsSuppressed int     `json:"signals_suppressed"`
	Evaluated         int     `json:"evaluated"`
	Correct           int     `json:"correct"`
	HitRate           float64 `json:"hit_rate"`
	ByTier            map[domain.ConfidenceTier]TierStats `json:"by_tier"`
}

// TierStats 分等级的命中统计
type TierStats struct {
	Emitted int `json:"emitted"`
	Correct int `json:"correct"`
}

// Orchestrator 信号编排器。串行处理结果事件：每局 Ingest 追加历史，
// 每 SignalEvery 局跑一次完整管线（模拟 -> 形态 -> 后验 -> 融合 ->
// 分级 -> 注金），产出不可变 Signal 并串行分发给各 handler。
// 所有管线阶段由单个 mu 串行化；handler 在锁外调用。
type Orchestrator struct {
	mu  sync.Mutex
	cfg Config

	simulator ports.Simulator
	analyzer  ports.PatternAnalyzer
	updater   ports.PosteriorUpdater
	fuser     ports.Fuser
	classifier ports.Classifier
	risk      ports.RiskManager

	history       *domain.OutcomeHistory
	signals       *domain.SignalHistory
	observed      domain.CardCounts
	sinceSignal   int
	pendingSignal *domain.Signal // 上一个未结算的信号
	simCache      *cache.SimulationCache

	signalHandlers   []ports.SignalHandler
	bankrollHandlers []ports.BankrollEventHandler
	sessionHandlers  []ports.SessionEventHandler

	stats statsCounters
}

type statsCounters struct {
	outcomesSeen      int
	signalsEmitted    int
	signalsSuppressed int
	evaluated         int
	correct           int
	byTier            map[domain.ConfidenceTier]*TierStats
}

// New 创建编排器。所有协作方显式注入，不使用包级单例。
func New(
	cfg Config,
	simulator ports.Simulator,
	analyzer ports.PatternAnalyzer,
	updater ports.PosteriorUpdater,
	fuser ports.Fuser,
	classifier ports.Classifier,
	risk ports.RiskManager,
) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid orchestrator config")
	}
	if simulator == nil || analyzer == nil || updater == nil || fuser == nil || classifier == nil || risk == nil {
		return nil, errors.New("nil collaborator")
	}
	return &Orchestrator{
		cfg:        cfg,
		simulator:  simulator,
		analyzer:   analyzer,
		updater:    updater,
		fuser:      fuser,
		classifier: classifier,
		risk:       risk,
		history:    domain.NewOutcomeHistory(cfg.HistoryCapacity),
		signals:    domain.NewSignalHistory(cfg.SignalCapacity),
		observed:   domain.CardCounts{},
		simCache:   cache.NewSimulationCache(0),
		stats: statsCounters{
			byTier: map[domain.ConfidenceTier]*TierStats{},
		},
	}, nil
}

// OnSignal 注册信号处理器（启动前调用）
func (o *Orchestrator) OnSignal(h ports.SignalHandler) {
	o.signalHandlers = append(o.signalHandlers, h)
}

// OnBankrollChanged 注册资金变动处理器（启动前调用）
func (o *Orchestrator) OnBankrollChanged(h ports.BankrollEventHandler) {
	o.bankrollHandlers = append(o.bankrollHandlers, h)
}

// OnSessionStateChanged 注册会话状态处理器（启动前调用）
func (o *Orchestrator) OnSessionStateChanged(h ports.SessionEventHandler) {
	o.sessionHandlers = append(o.sessionHandlers, h)
}

// StartSession 开始会话并广播状态迁移
func (o *Orchestrator) StartSession(ctx context.Context) {
	from := o.risk.State()
	o.risk.StartSession()
	to := o.risk.State()
	if from != to {
		o.broadcastSession(ctx, from, to, domain.StopNone)
	}
}

// EndSession 结束会话并广播状态迁移
func (o *Orchestrator) EndSession(ctx context.Context) {
	from := o.risk.State()
	o.risk.EndSession()
	to := o.risk.State()
	if from != to {
		o.broadcastSession(ctx, from, to, domain.StopNone)
	}
}

// Ingest 送入一局结果。串行：并发调用会被 mu 排队，事件
// 按到达顺序处理。每 SignalEvery 局产出一次信号（或抑制记录）。
func (o *Orchestrator) Ingest(ctx context.Context, e events.OutcomeEvent) (*domain.Signal, error) {
	o.mu.Lock()

	if !e.Outcome.Valid() {
		o.mu.Unlock()
		return nil, errors.Errorf("invalid outcome %q", e.Outcome)
	}

	stateBefore := o.risk.State()

	// 先结算上一个未结算的信号
	var bankrollEvt *events.BankrollChangedEvent
	if o.pendingSignal != nil && !o.pendingSignal.Suppressed && o.pendingSignal.BetSize.Sign() > 0 {
		evt, err := o.settleLocked(*o.pendingSignal, e.Outcome)
		if err != nil {
			logger.Errorf("结算信号失败: %v", err)
		} else {
			bankrollEvt = evt
		}
		o.pendingSignal = nil
	} else if o.pendingSignal != nil {
		// 无注信号只统计命中率
		o.scoreLocked(*o.pendingSignal, e.Outcome)
		o.pendingSignal = nil
	}

	if err := o.history.Append(e.Outcome); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.recordCardsLocked(e)
	o.stats.outcomesSeen++
	o.sinceSignal++
	metrics.OutcomesIngested.Add(1)

	var signal *domain.Signal
	var pipelineErr error
	if o.sinceSignal >= o.cfg.SignalEvery {
		o.sinceSignal = 0
		signal, pipelineErr = o.runPipelineLocked(ctx)
		if signal != nil {
			o.signals.Append(*signal)
			o.pendingSignal = signal
		}
	}

	stateAfter := o.risk.State()
	o.mu.Unlock()

	// handler 在锁外串行分发
	if bankrollEvt != nil {
		o.broadcastBankroll(ctx, *bankrollEvt)
	}
	if stateBefore != stateAfter {
		reason := o.risk.Assessment().StoppedReason
		o.broadcastSession(ctx, stateBefore, stateAfter, reason)
	}
	if signal != nil {
		o.broadcastSignal(ctx, *signal)
	}
	return signal, pipelineErr
}

// recordCardsLocked 累计观察到的发牌明细（供模拟扣牌）
func (o *Orchestrator) recordCardsLocked(e events.OutcomeEvent) {
	for _, r := range e.BankerCards {
		if r.Valid() {
			o.observed[r]++
		}
	}
	for _, r := range e.PlayerCards {
		if r.Valid() {
			o.observed[r]++
		}
	}
}

// ResetShoe 换靴：清空发牌计数（历史保留，形态跨靴仍有参考价值）
func (o *Orchestrator) ResetShoe() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed = domain.CardCounts{}
	logger.Info("换靴: 发牌计数已清空")
}

// runPipelineLocked 跑一次完整信号管线
func (o *Orchestrator) runPipelineLocked(ctx context.Context) (*domain.Signal, error) {
	// 会话停止时产出抑制信号（可观察但不可下注）
	if o.risk.State() == domain.SessionStopped {
		s := o.suppressedSignalLocked("session stopped")
		return s, nil
	}

	hist := o.history.Tail(o.history.Len())

	// 1. 蒙特卡洛模拟（限时，超时退回缓存）
	simResult, fresh := o.simulateLocked(ctx)
	if simResult == nil {
		s := o.suppressedSignalLocked("no simulation result available")
		return s, nil
	}

	// 2. 形态统计
	report, err := o.analyzer.Analyze(hist)
	if err != nil {
		return nil, errors.Wrap(err, "pattern analysis")
	}

	// 3. 贝叶斯后验
	posterior, err := o.updater.Posterior(report, hist)
	if err != nil {
		return nil, errors.Wrap(err, "posterior update")
	}

	// 4. 概率融合（无外部模型输入时传 nil，权重自动归一）
	fused, err := o.fuser.Fuse(simResult.Probabilities, posterior, nil)
	if err != nil {
		return nil, errors.Wrap(err, "probability fusion")
	}

	// 5. 置信分级
	agreement := modelAgreement(simResult.Probabilities, posterior)
	cls := o.classifier.Classify(fused, report.PatternStrength, len(hist), agreement)

	// 6. 注金
	recommended := fused.ArgMax()
	netOdds := o.cfg.Payouts.Odds(recommended) - 1
	winProb := fused.Get(recommended)
	betSize := o.risk.BetSize(cls.BetUnits, cls.Tier, winProb, netOdds)

	assessment := o.risk.Assessment()
	signal := &domain.Signal{
		ID:              domain.NewSignalID(),
		Timestamp:       time.Now(),
		Recommended:     recommended,
		Tier:            cls.Tier,
		ConfidenceScore: cls.Score,
		BetUnits:        cls.BetUnits,
		BetSize:         betSize,
		ExpectedValue:   simResult.ExpectedValue[recommended],
		Risk:            assessment.VolRisk,
		Reasoning:       reasoning(cls, report, fresh),
		SimulatorProbs:  simResult.Probabilities,
		PosteriorProbs:  posterior,
		FusedProbs:      fused,
	}

	o.stats.signalsEmitted++
	metrics.SignalsEmitted.Add(1)
	ts := o.tierStatsLocked(cls.Tier)
	ts.Emitted++

	logger.Infof("🎯 信号: %s tier=%s score=%.3f units=%d bet=%s",
		recommended, cls.Tier, cls.Score, cls.BetUnits, betSize.StringFixed(2))
	return signal, nil
}

// simulateLocked 限时跑模拟；超时或失败退回最近一次缓存结果
func (o *Orchestrator) simulateLocked(ctx context.Context) (*ports.SimulationResult, bool) {
	simCtx, cancel := context.WithTimeout(ctx, o.cfg.SimulationTimeout)
	defer cancel()

	result, err := o.simulator.Simulate(simCtx, o.observed, o.cfg.Payouts)
	if err == nil {
		o.simCache.Set(o.cfg.Table, result)
		return result, true
	}

	metrics.SimulationTimeouts.Add(1)
	logger.Warnf("模拟失败，退回缓存: %v", err)
	if cached, ok := o.simCache.Get(o.cfg.Table); ok {
		return cached, false
	}
	return nil, false
}

// suppressedSignalLocked 产出抑制信号：保留管线的可观察性，但不下注
func (o *Orchestrator) suppressedSignalLocked(reason string) *domain.Signal {
	o.stats.signalsSuppressed++
	metrics.SignalsSuppressed.Add(1)
	logger.Warnf("信号被抑制: %s", reason)
	return &domain.Signal{
		ID:         domain.NewSignalID(),
		Timestamp:  time.Now(),
		Tier:       domain.TierLow,
		Reasoning:  reason,
		Suppressed: true,
	}
}

// settleLocked 按实际结果结算信号，更新资金并返回资金变动事件
func (o *Orchestrator) settleLocked(s domain.Signal, actual domain.Outcome) (*events.BankrollChangedEvent, error) {
	profit, err := o.risk.RecordResult(s.BetSize, s.Recommended, actual, o.cfg.Payouts)
	if err != nil {
		return nil, err
	}
	o.scoreLocked(s, actual)
	assessment := o.risk.Assessment()
	return &events.BankrollChangedEvent{
		BetSize:   s.BetSize,
		Profit:    profit,
		Balance:   assessment.Balance,
		Predicted: s.Recommended,
		Actual:    actual,
		Won:       s.Recommended == actual,
		Timestamp: time.Now(),
	}, nil
}

// scoreLocked 统计信号命中率
func (o *Orchestrator) scoreLocked(s domain.Signal, actual domain.Outcome) {
	if s.Suppressed {
		return
	}
	o.stats.evaluated++
	ts := o.tierStatsLocked(s.Tier)
	if s.Recommended == actual {
		o.stats.correct++
		ts.Correct++
	}
}

func (o *Orchestrator) tierStatsLocked(tier domain.ConfidenceTier) *TierStats {
	ts, ok := o.stats.byTier[tier]
	if !ok {
		ts = &TierStats{}
		o.stats.byTier[tier] = ts
	}
	return ts
}

// Stats 只读统计快照
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Stats{
		OutcomesSeen:      o.stats.outcomesSeen,
		SignalsEmitted:    o.stats.signalsEmitted,
		SignalsSuppressed: o.stats.signalsSuppressed,
		Evaluated:         o.stats.evaluated,
		Correct:           o.stats.correct,
		ByTier:            map[domain.ConfidenceTier]TierStats{},
	}
	if o.stats.evaluated > 0 {
		out.HitRate = float64(o.stats.correct) / float64(o.stats.evaluated)
	}
	for tier, ts := range o.stats.byTier {
		out.ByTier[tier] = *ts
	}
	return out
}

// RecentSignals 最近 n 条信号
func (o *Orchestrator) RecentSignals(n int) []domain.Signal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.signals.Recent(n)
}

// Assessment 风险快照透传
func (o *Orchestrator) Assessment() domain.RiskAssessment {
	return o.risk.Assessment()
}

// broadcastSignal 串行分发信号事件，单个 handler 失败不影响其余
func (o *Orchestrator) broadcastSignal(ctx context.Context, s domain.Signal) {
	evt := events.SignalEmittedEvent{Signal: s, Timestamp: time.Now()}
	for _, h := range o.signalHandlers {
		if err := h.OnSignal(ctx, evt); err != nil {
			logger.Errorf("信号处理器失败: %v", err)
		}
	}
}

func (o *Orchestrator) broadcastBankroll(ctx context.Context, evt events.BankrollChangedEvent) {
	for _, h := range o.bankrollHandlers {
		if err := h.OnBankrollChanged(ctx, evt); err != nil {
			logger.Errorf("资金处理器失败: %v", err)
		}
	}
}

func (o *Orchestrator) broadcastSession(ctx context.Context, from, to domain.SessionState, reason domain.StopReason) {
	evt := events.SessionStateChangedEvent{From: from, To: to, Reason: reason, Timestamp: time.Now()}
	for _, h := range o.sessionHandlers {
		if err := h.OnSessionStateChanged(ctx, evt); err != nil {
			logger.Errorf("会话处理器失败: %v", err)
		}
	}
}

// modelAgreement 模型一致度：模拟与后验推荐同一结果记 1，否则按
// 两者最大概率差衰减
func modelAgreement(sim, posterior domain.Distribution) float64 {
	if sim.ArgMax() == posterior.ArgMax() {
		return 1.0
	}
	diff := sim.MaxProb() - posterior.MaxProb()
	if diff < 0 {
		diff = -diff
	}
	agreement := 1.0 - 2.0*diff
	if agreement < 0 {
		return 0
	}
	return agreement
}

// reasoning 生成人类可读的信号依据
func reasoning(cls ports.Classification, report ports.PatternReport, freshSim bool) string {
	src := "fresh simulation"
	if !freshSim {
		src = "cached simulation"
	}
	return fmt.Sprintf("%s tier (score %.3f), streak=%d chop=%.2f, %s",
		cls.Tier, cls.Score, report.StreakLength, report.ChopIntensity, src)
}
