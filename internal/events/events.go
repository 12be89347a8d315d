package events

import (
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// OutcomeEvent 一局结果事件（由外部数据源采集后送入编排器）
type OutcomeEvent struct {
	Outcome     domain.Outcome // 胜方或和局
	BankerCards []domain.Rank  // 庄家发牌明细（可选）
	PlayerCards []domain.Rank  // 闲家发牌明细（可选）
	Table       string         // 台桌标识（可选）
	ShoeChanged bool           // 换靴标记（此时 Outcome 为空）
	Timestamp   time.Time
}

// SignalEmittedEvent 信号产出事件
type SignalEmittedEvent struct {
	Signal    domain.Signal
	Timestamp time.Time
}

// BankrollChangedEvent 资金变动事件（供外部持久化协作方消费）
type BankrollChangedEvent struct {
	BetSize   decimal.Decimal
	Profit    decimal.Decimal
	Balance   decimal.Decimal
	Predicted domain.Outcome
	Actual    domain.Outcome
	Won       bool
	Timestamp time.Time
}

// SessionStateChangedEvent 会话状态迁移事件
type SessionStateChangedEvent struct {
	From      domain.SessionState
	To        domain.SessionState
	Reason    domain.StopReason
	Timestamp time.Time
}
