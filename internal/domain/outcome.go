package domain

import "fmt"

// Outcome 百家乐单局结果（三选一）
type Outcome string

const (
	OutcomeBanker Outcome = "B"
	OutcomePlayer Outcome = "P"
	OutcomeTie    Outcome = "T"
)

// Outcomes 固定顺序的全部结果（遍历分布时统一使用该顺序）
var Outcomes = []Outcome{OutcomeBanker, OutcomePlayer, OutcomeTie}

// Valid 校验结果符号是否合法
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeBanker, OutcomePlayer, OutcomeTie:
		return true
	}
	return false
}

// ParseOutcome 解析结果符号（只接受 B/P/T）
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("invalid outcome symbol: %q", s)
	}
	return o, nil
}

// Index 返回结果在固定顺序中的下标（B=0, P=1, T=2），非法符号返回 -1
func (o Outcome) Index() int {
	switch o {
	case OutcomeBanker:
		return 0
	case OutcomePlayer:
		return 1
	case OutcomeTie:
		return 2
	}
	return -1
}

func (o Outcome) String() string { return string(o) }
