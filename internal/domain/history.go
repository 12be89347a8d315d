package domain

import "fmt"

// DefaultHistoryCap 结果历史默认容量
const DefaultHistoryCap = 100

// OutcomeHistory 有界的只追加结果序列。
// 超出容量时淘汰最老的条目；顺序始终为时间顺序，从不重排。
// 非并发安全，由编排层串行访问（单写者约定）。
type OutcomeHistory struct {
	capacity int
	items    []Outcome
}

// NewOutcomeHistory 创建结果历史，capacity <= 0 时使用默认容量
func NewOutcomeHistory(capacity int) *OutcomeHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &OutcomeHistory{
		capacity: capacity,
		items:    make([]Outcome, 0, capacity),
	}
}

// Append 追加一条结果；非法符号拒绝写入
func (h *OutcomeHistory) Append(o Outcome) error {
	if !o.Valid() {
		return fmt.Errorf("invalid outcome symbol: %q", o)
	}
	if len(h.items) >= h.capacity {
		// 淘汰最老条目，保持时间顺序
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, o)
	return nil
}

// Len 当前历史长度
func (h *OutcomeHistory) Len() int { return len(h.items) }

// Cap 历史容量
func (h *OutcomeHistory) Cap() int { return h.capacity }

// Items 返回历史快照（拷贝，调用方可自由持有）
func (h *OutcomeHistory) Items() []Outcome {
	out := make([]Outcome, len(h.items))
	copy(out, h.items)
	return out
}

// Tail 返回最近 n 条的快照；n 超过长度时返回全部
func (h *OutcomeHistory) Tail(n int) []Outcome {
	if n <= 0 {
		return nil
	}
	if n > len(h.items) {
		n = len(h.items)
	}
	out := make([]Outcome, n)
	copy(out, h.items[len(h.items)-n:])
	return out
}

// Last 返回最近一条结果；历史为空时 ok=false
func (h *OutcomeHistory) Last() (Outcome, bool) {
	if len(h.items) == 0 {
		return "", false
	}
	return h.items[len(h.items)-1], true
}

// Reset 清空历史（会话重置时使用）
func (h *OutcomeHistory) Reset() {
	h.items = h.items[:0]
}
