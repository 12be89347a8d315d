package domain

import (
	"fmt"
	"math"
)

// ProbTolerance 分布求和的数值容差
const ProbTolerance = 1e-6

// 固定的百家乐先验概率（8副牌理论值）
const (
	BaseProbBanker = 0.4584
	BaseProbPlayer = 0.4461
	BaseProbTie    = 0.0955
)

// Distribution 三种结果到概率的映射。
// 不变式：所有分量 >= 0 且总和 = 1（容差范围内）。
type Distribution struct {
	Banker float64 `json:"banker" yaml:"banker"`
	Player float64 `json:"player" yaml:"player"`
	Tie    float64 `json:"tie" yaml:"tie"`
}

// BaseDistribution 返回固定的先验分布
func BaseDistribution() Distribution {
	return Distribution{Banker: BaseProbBanker, Player: BaseProbPlayer, Tie: BaseProbTie}
}

// UniformDistribution 返回三结果等概率分布
func UniformDistribution() Distribution {
	return Distribution{Banker: 1.0 / 3, Player: 1.0 / 3, Tie: 1.0 / 3}
}

// Get 按结果取概率
func (d Distribution) Get(o Outcome) float64 {
	switch o {
	case OutcomeBanker:
		return d.Banker
	case OutcomePlayer:
		return d.Player
	case OutcomeTie:
		return d.Tie
	}
	return 0
}

// Set 按结果写概率，返回新分布（值语义）
func (d Distribution) Set(o Outcome, p float64) Distribution {
	switch o {
	case OutcomeBanker:
		d.Banker = p
	case OutcomePlayer:
		d.Player = p
	case OutcomeTie:
		d.Tie = p
	}
	return d
}

// Sum 概率总和
func (d Distribution) Sum() float64 {
	return d.Banker + d.Player + d.Tie
}

// Validate 校验分布不变式：分量非负、总和为 1（容差内）
func (d Distribution) Validate() error {
	if d.Banker < 0 || d.Player < 0 || d.Tie < 0 {
		return fmt.Errorf("distribution has negative component: %+v", d)
	}
	if sum := d.Sum(); math.Abs(sum-1.0) > ProbTolerance {
		return fmt.Errorf("distribution sum %.9f != 1 (tolerance %g)", sum, ProbTolerance)
	}
	return nil
}

// Normalize 归一化；总和为 0 时退化为先验分布
func (d Distribution) Normalize() Distribution {
	sum := d.Sum()
	if sum <= 0 {
		return BaseDistribution()
	}
	return Distribution{
		Banker: d.Banker / sum,
		Player: d.Player / sum,
		Tie:    d.Tie / sum,
	}
}

// ArgMax 返回概率最大的结果。并列时按 B > P > T 的固定顺序取先者，
// 保证推荐结果可复现。
func (d Distribution) ArgMax() Outcome {
	best := OutcomeBanker
	bestP := d.Banker
	if d.Player > bestP {
		best, bestP = OutcomePlayer, d.Player
	}
	if d.Tie > bestP {
		best = OutcomeTie
	}
	return best
}

// MaxProb 返回最大分量概率
func (d Distribution) MaxProb() float64 {
	return math.Max(d.Banker, math.Max(d.Player, d.Tie))
}
