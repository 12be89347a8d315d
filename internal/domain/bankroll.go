package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState 资金会话状态机：INACTIVE -> ACTIVE -> STOPPED。
// STOPPED 在会话内单调：一旦置位，只有显式的会话重置才能清除。
type SessionState string

const (
	SessionInactive SessionState = "INACTIVE"
	SessionActive   SessionState = "ACTIVE"
	SessionStopped  SessionState = "STOPPED"
)

// StopReason 触发停止的原因
type StopReason string

const (
	StopNone           StopReason = ""
	StopSessionLoss    StopReason = "SESSION_LOSS"
	StopSessionWin     StopReason = "SESSION_WIN"
	StopEmergencyDD    StopReason = "EMERGENCY_DRAWDOWN"
	StopSessionTimeout StopReason = "SESSION_TIMEOUT"
	StopVolatility     StopReason = "VOLATILITY_CEILING"
	StopManual         StopReason = "MANUAL"
)

// BankrollState 资金状态。余额用 decimal 精确记账。
// 不变式：余额永不为负（下注前先按可用余额封顶）；
// 只有 KellyRiskManager.RecordResult 这一条路径可以修改它。
type BankrollState struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	SessionStart   decimal.Decimal `json:"session_start"`
	PeakBalance    decimal.Decimal `json:"peak_balance"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	WinStreak      int             `json:"win_streak"`
	LossStreak     int             `json:"loss_streak"`
	CurrentStreak  int             `json:"current_streak"`
	KellyFraction  float64         `json:"kelly_fraction"`
	TotalBets      int             `json:"total_bets"`
	Wins           int             `json:"wins"`
	State          SessionState    `json:"state"`
	StoppedReason  StopReason      `json:"stopped_reason,omitempty"`
	SessionStarted time.Time       `json:"session_started"`
}

// NewBankrollState 按初始余额创建 INACTIVE 状态
func NewBankrollState(initial decimal.Decimal) *BankrollState {
	return &BankrollState{
		InitialBalance: initial,
		Balance:        initial,
		SessionStart:   initial,
		PeakBalance:    initial,
		State:          SessionInactive,
	}
}

// Drawdown 当前（峰值到现价）的回撤比例
func (b *BankrollState) Drawdown() float64 {
	if b.PeakBalance.IsZero() {
		return 0
	}
	dd, _ := b.PeakBalance.Sub(b.Balance).Div(b.PeakBalance).Float64()
	if dd < 0 {
		return 0
	}
	return dd
}

// SessionPnL 本会话盈亏
func (b *BankrollState) SessionPnL() decimal.Decimal {
	return b.Balance.Sub(b.SessionStart)
}

// RiskAssessment 只读的风险快照，供上报协作方使用
type RiskAssessment struct {
	Balance       decimal.Decimal `json:"balance"`
	SessionPnL    decimal.Decimal `json:"session_pnl"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	Drawdown      float64         `json:"drawdown"`
	Volatility    float64         `json:"volatility"`
	ValueAtRisk95 float64         `json:"value_at_risk_95"`
	WinStreak     int             `json:"win_streak"`
	LossStreak    int             `json:"loss_streak"`
	CurrentStreak int             `json:"current_streak"`
	TotalBets     int             `json:"total_bets"`
	Wins          int             `json:"wins"`
	State         SessionState    `json:"state"`
	StoppedReason StopReason      `json:"stopped_reason,omitempty"`
	VolRisk       RiskLevel       `json:"volatility_risk"`
}
