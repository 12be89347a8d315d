package domain

import "fmt"

// PayoutTable 赔付表（欧式小数赔率：下注 1 个单位、猜中时返还 Odds 个单位，含本金）。
//
// 说明：不同台桌对同一注型的赔付并不一致（例如 Banker 0.95:1 或 1:1，
// Tie 8:1 或 11:1），因此赔付表是所有估值/风控计算的显式必填输入，
// 引擎内部没有隐藏的赔付常量。
type PayoutTable struct {
	Banker float64 `json:"banker" yaml:"banker"`
	Player float64 `json:"player" yaml:"player"`
	Tie    float64 `json:"tie" yaml:"tie"`
}

// DefaultPayouts 常见抽水台规：Banker 0.95:1、Player 1:1、Tie 8:1
func DefaultPayouts() PayoutTable {
	return PayoutTable{Banker: 1.95, Player: 2.0, Tie: 9.0}
}

// Odds 按结果取小数赔率
func (t PayoutTable) Odds(o Outcome) float64 {
	switch o {
	case OutcomeBanker:
		return t.Banker
	case OutcomePlayer:
		return t.Player
	case OutcomeTie:
		return t.Tie
	}
	return 0
}

// Validate 校验赔率：每项必须 > 1（赔率 1.0 意味着稳亏，视为配置错误）
func (t PayoutTable) Validate() error {
	for _, o := range Outcomes {
		if t.Odds(o) <= 1.0 {
			return fmt.Errorf("payout odds for %s must be > 1.0, got %.4f", o, t.Odds(o))
		}
	}
	return nil
}
