package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfidenceTier 置信等级（有序：LOW < MEDIUM < HIGH）
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "LOW"
	TierMedium ConfidenceTier = "MEDIUM"
	TierHigh   ConfidenceTier = "HIGH"
)

// Rank 置信等级的序（用于比较）
func (t ConfidenceTier) Rank() int {
	switch t {
	case TierLow:
		return 0
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	}
	return -1
}

// RiskLevel 风险级别
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// Signal 不可变的决策记录。每个符合条件的事件创建一次，创建后不再修改；
// 保留在有界历史中供上报使用。
type Signal struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Recommended     Outcome         `json:"recommended"`
	Tier            ConfidenceTier  `json:"tier"`
	ConfidenceScore float64         `json:"confidence_score"`
	BetUnits        int             `json:"bet_units"`
	BetSize         decimal.Decimal `json:"bet_size"`
	ExpectedValue   float64         `json:"expected_value"`
	Risk            RiskLevel       `json:"risk"`
	Reasoning       string          `json:"reasoning"`
	Suppressed      bool            `json:"suppressed"`

	// 各阶段的分布快照（只读，供上报/回测）
	SimulatorProbs Distribution `json:"simulator_probs"`
	PosteriorProbs Distribution `json:"posterior_probs"`
	FusedProbs     Distribution `json:"fused_probs"`
}

// NewSignalID 生成信号 ID
func NewSignalID() string { return uuid.NewString() }

// SignalHistory 有界的信号历史（最老条目先淘汰）
type SignalHistory struct {
	capacity int
	items    []Signal
}

// NewSignalHistory 创建信号历史，capacity <= 0 时默认 100
func NewSignalHistory(capacity int) *SignalHistory {
	if capacity <= 0 {
		capacity = 100
	}
	return &SignalHistory{capacity: capacity, items: make([]Signal, 0, capacity)}
}

// Append 追加信号
func (h *SignalHistory) Append(s Signal) {
	if len(h.items) >= h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, s)
}

// Len 当前长度
func (h *SignalHistory) Len() int { return len(h.items) }

// Recent 返回最近 n 条（时间顺序）的快照
func (h *SignalHistory) Recent(n int) []Signal {
	if n <= 0 || n > len(h.items) {
		n = len(h.items)
	}
	out := make([]Signal, n)
	copy(out, h.items[len(h.items)-n:])
	return out
}
