package risk

import (
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/metrics"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"sync"
)

var log = logrus.WithField("component", "risk")

// ErrBetExceedsBalance 下注金额超过可用余额
var ErrBetExceedsBalance = errors.New("bet size exceeds available balance")

// Config 风控配置
type Config struct {
	InitialBalance    decimal.Decimal // 初始资金
	BaseUnit          decimal.Decimal // 基准注单位
	StopLossPct       float64         // 会话止损（初始资金占比），默认 0.05
	StopWinPct        float64         // 会话止盈（初始资金占比），默认 0.02
	MaxBetPct         float64         // 单注上限（当前余额占比），默认 0.05
	EmergencyDrawdown float64         // 紧急停止回撤阈值，默认 0.20
	MinBet            decimal.Decimal // 注金绝对下限
	MaxBet            decimal.Decimal // 注金绝对上限
	MaxSessionTime    time.Duration   // 会话最长时长，默认 2h
	VolatilityCeiling float64         // 波动率上限，超过即停止，默认 3.0
	FractionalKelly   float64         // 基础分数凯利，默认 0.25
	VolatilityWindow  int             // 波动性窗口大小，默认 50
}

// ApplyDefaults 填充默认配置
func (c *Config) ApplyDefaults() {
	if c.InitialBalance.IsZero() {
		c.InitialBalance = decimal.NewFromInt(1000)
	}
	if c.BaseUnit.IsZero() {
		c.BaseUnit = decimal.NewFromInt(10)
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = 0.05
	}
	if c.StopWinPct <= 0 {
		c.StopWinPct = 0.02
	}
	if c.MaxBetPct <= 0 {
		c.MaxBetPct = 0.05
	}
	if c.EmergencyDrawdown <= 0 {
		c.EmergencyDrawdown = 0.20
	}
	if c.MinBet.IsZero() {
		c.MinBet = c.BaseUnit
	}
	if c.MaxBet.IsZero() {
		c.MaxBet = c.BaseUnit.Mul(decimal.NewFromInt(10))
	}
	if c.MaxSessionTime <= 0 {
		c.MaxSessionTime = 2 * time.Hour
	}
	if c.VolatilityCeiling <= 0 {
		c.VolatilityCeiling = 3.0
	}
	if c.FractionalKelly <= 0 {
		c.FractionalKelly = 0.25
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.InitialBalance.Sign() <= 0 {
		return errors.New("initial balance must be positive")
	}
	if c.BaseUnit.Sign() <= 0 {
		return errors.New("base unit must be positive")
	}
	if c.MaxBetPct > 1 {
		return errors.Errorf("max bet pct %f > 1", c.MaxBetPct)
	}
	if c.MinBet.GreaterThan(c.MaxBet) {
		return errors.New("min bet greater than max bet")
	}
	return nil
}

// tierMultipliers 置信等级对注金的折减
var tierMultipliers = map[domain.ConfidenceTier]float64{
	domain.TierHigh:   1.0,
	domain.TierMedium: 0.7,
	domain.TierLow:    0.4,
}

// Manager 资金状态机：INACTIVE -> ACTIVE -> STOPPED。
// STOPPED 单调：只有显式 Reset 才能清除。
// RecordResult 是唯一修改 BankrollState 的路径，读与随后的写构成
// 同一个互斥临界区（单写者约定）。实现 ports.RiskManager。
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	state *domain.BankrollState
	vol   *volatilityWindow
}

// NewManager 创建风控管理器
func NewManager(cfg Config) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid risk config")
	}
	return &Manager{
		cfg:   cfg,
		state: domain.NewBankrollState(cfg.InitialBalance),
		vol:   newVolatilityWindow(cfg.VolatilityWindow),
	}, nil
}

// StartSession 开始会话：INACTIVE/STOPPED 之外的起点不变更
func (m *Manager) StartSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.State == domain.SessionActive {
		return
	}
	if m.state.State == domain.SessionStopped {
		// STOPPED 单调：必须先 Reset
		log.Warn("会话处于 STOPPED，需显式重置后才能重新开始")
		return
	}
	m.state.State = domain.SessionActive
	m.state.SessionStart = m.state.Balance
	m.state.SessionStarted = time.Now()
	log.Infof("会话开始: balance=%s", m.state.Balance.StringFixed(2))
}

// EndSession 正常结束会话（回到 INACTIVE）
func (m *Manager) EndSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.State != domain.SessionActive {
		return
	}
	m.state.State = domain.SessionInactive
	log.Infof("会话结束: pnl=%s", m.state.SessionPnL().StringFixed(2))
}

// Reset 显式会话重置：唯一能清除 STOPPED 的路径
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.state.Balance
	m.state = domain.NewBankrollState(m.cfg.InitialBalance)
	m.state.Balance = balance
	m.state.SessionStart = balance
	m.state.PeakBalance = balance
	m.vol.reset()
	log.Infof("会话重置: balance=%s", balance.StringFixed(2))
}

// State 当前状态机状态
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.State
}

// KellyFraction 计算分数凯利：f* = (b·p − q)/b，b 为净赔率。
// 无边际（f* <= 0）或参数退化时返回 0；基础分数 0.25，
// 回撤 >10% 降至 0.2，>20% 降至 0.1。
func (m *Manager) KellyFraction(winProb, netOdds float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kellyFractionLocked(winProb, netOdds)
}

func (m *Manager) kellyFractionLocked(winProb, netOdds float64) float64 {
	if winProb <= 0 || winProb >= 1 || netOdds <= 0 {
		return 0
	}
	b := netOdds
	q := 1 - winProb
	f := (b*winProb - q) / b
	if f <= 0 {
		return 0
	}
	return f * m.fractionalMultiplierLocked()
}

// fractionalMultiplierLocked 按回撤动态收缩的分数凯利
func (m *Manager) fractionalMultiplierLocked() float64 {
	dd := m.state.Drawdown()
	switch {
	case dd > 0.20:
		return m.cfg.FractionalKelly * 0.4 // 0.25 -> 0.1
	case dd > 0.10:
		return m.cfg.FractionalKelly * 0.8 // 0.25 -> 0.2
	default:
		return m.cfg.FractionalKelly
	}
}

// BetSize 计算注金：凯利注 × 等级折减 × 波动倍率，
// 受单注比例上限、绝对上下限与可用余额约束。
// LOW 等级、units=0 或非 ACTIVE 状态时恒为 0。
func (m *Manager) BetSize(units int, tier domain.ConfidenceTier, winProb, netOdds float64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.State != domain.SessionActive {
		return decimal.Zero
	}
	if units <= 0 || tier == domain.TierLow {
		return decimal.Zero
	}

	frac := m.kellyFractionLocked(winProb, netOdds)
	if frac <= 0 {
		return decimal.Zero
	}

	balance := m.state.Balance
	kellyBet := balance.Mul(decimal.NewFromFloat(frac))
	maxBet := balance.Mul(decimal.NewFromFloat(m.cfg.MaxBetPct))
	if kellyBet.GreaterThan(maxBet) {
		kellyBet = maxBet
	}

	mult := tierMultipliers[tier] * m.vol.multiplier()
	bet := kellyBet.Mul(decimal.NewFromFloat(mult))

	// 绝对上下限
	if bet.LessThan(m.cfg.MinBet) {
		bet = m.cfg.MinBet
	}
	if bet.GreaterThan(m.cfg.MaxBet) {
		bet = m.cfg.MaxBet
	}
	// 提交前按可用余额封顶：余额不变式（永不为负）的保证点
	if bet.GreaterThan(balance) {
		bet = balance
	}
	return bet
}

// RecordResult 记录一笔下注结果并返回盈亏。
// 这是唯一修改 BankrollState 的路径；余额更新、峰值/回撤维护、
// 连胜/连败计数与停止条件评估都发生在同一临界区内。
func (m *Manager) RecordResult(betSize decimal.Decimal, predicted, actual domain.Outcome, payouts domain.PayoutTable) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if betSize.Sign() < 0 {
		return decimal.Zero, errors.New("negative bet size")
	}
	if betSize.GreaterThan(m.state.Balance) {
		return decimal.Zero, ErrBetExceedsBalance
	}
	if !predicted.Valid() || !actual.Valid() {
		return decimal.Zero, errors.Errorf("invalid outcome: predicted=%q actual=%q", predicted, actual)
	}

	won := predicted == actual
	var profit decimal.Decimal
	if won {
		net := payouts.Odds(predicted) - 1
		profit = betSize.Mul(decimal.NewFromFloat(net))
	} else {
		profit = betSize.Neg()
	}

	m.state.Balance = m.state.Balance.Add(profit)
	m.state.TotalBets++
	if won {
		m.state.Wins++
		m.state.WinStreak++
		m.state.LossStreak = 0
		if m.state.CurrentStreak < 0 {
			m.state.CurrentStreak = 0
		}
		m.state.CurrentStreak++
	} else {
		m.state.LossStreak++
		m.state.WinStreak = 0
		if m.state.CurrentStreak > 0 {
			m.state.CurrentStreak = 0
		}
		m.state.CurrentStreak--
	}

	if m.state.Balance.GreaterThan(m.state.PeakBalance) {
		m.state.PeakBalance = m.state.Balance
	}
	if dd := m.state.Drawdown(); dd > m.state.MaxDrawdown {
		m.state.MaxDrawdown = dd
	}

	pf, _ := profit.Div(m.cfg.BaseUnit).Float64()
	m.vol.add(pf)
	m.state.KellyFraction = m.fractionalMultiplierLocked()

	m.evaluateStopsLocked()

	log.Infof("记录结果: %s bet=%s profit=%s balance=%s",
		resultWord(won), betSize.StringFixed(2), profit.StringFixed(2), m.state.Balance.StringFixed(2))
	return profit, nil
}

func resultWord(won bool) string {
	if won {
		return "WIN"
	}
	return "LOSS"
}

// evaluateStopsLocked 评估停止条件；一旦触发即单调置为 STOPPED
func (m *Manager) evaluateStopsLocked() {
	if m.state.State != domain.SessionActive {
		return
	}

	sessionPnL := m.state.SessionPnL()
	lossLimit := m.cfg.InitialBalance.Mul(decimal.NewFromFloat(m.cfg.StopLossPct))
	winTarget := m.cfg.InitialBalance.Mul(decimal.NewFromFloat(m.cfg.StopWinPct))

	switch {
	case sessionPnL.Neg().GreaterThanOrEqual(lossLimit):
		m.stopLocked(domain.StopSessionLoss)
	case sessionPnL.GreaterThanOrEqual(winTarget):
		m.stopLocked(domain.StopSessionWin)
	case m.state.Drawdown() >= m.cfg.EmergencyDrawdown:
		m.stopLocked(domain.StopEmergencyDD)
	case !m.state.SessionStarted.IsZero() && time.Since(m.state.SessionStarted) >= m.cfg.MaxSessionTime:
		m.stopLocked(domain.StopSessionTimeout)
	case m.vol.stdDev() > m.cfg.VolatilityCeiling:
		m.stopLocked(domain.StopVolatility)
	}
}

func (m *Manager) stopLocked(reason domain.StopReason) {
	m.state.State = domain.SessionStopped
	m.state.StoppedReason = reason
	metrics.StopTransitions.Add(1)
	log.Warnf("会话停止: reason=%s balance=%s drawdown=%.1f%%",
		reason, m.state.Balance.StringFixed(2), m.state.Drawdown()*100)
}

// Stop 手动停止（人工介入）
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.State == domain.SessionActive {
		m.stopLocked(domain.StopManual)
	}
}

// Assessment 只读风险快照
func (m *Manager) Assessment() domain.RiskAssessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseUnit, _ := m.cfg.BaseUnit.Float64()
	return domain.RiskAssessment{
		Balance:       m.state.Balance,
		SessionPnL:    m.state.SessionPnL(),
		MaxDrawdown:   m.state.MaxDrawdown,
		Drawdown:      m.state.Drawdown(),
		Volatility:    m.vol.stdDev(),
		ValueAtRisk95: m.vol.valueAtRisk95(baseUnit),
		WinStreak:     m.state.WinStreak,
		LossStreak:    m.state.LossStreak,
		CurrentStreak: m.state.CurrentStreak,
		TotalBets:     m.state.TotalBets,
		Wins:          m.state.Wins,
		State:         m.state.State,
		StoppedReason: m.state.StoppedReason,
		VolRisk:       m.vol.riskLevel(),
	}
}

// Snapshot 当前资金状态拷贝（持久化协作方使用）
func (m *Manager) Snapshot() domain.BankrollState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// Restore 从持久化状态恢复（启动时一次性调用）
func (m *Manager) Restore(state domain.BankrollState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
}
