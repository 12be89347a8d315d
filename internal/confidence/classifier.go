package confidence

import (
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/ports"
)

// 等级阈值与单位下注区间
const (
	HighThreshold   = 0.90
	MediumThreshold = 0.70

	mediumMinUnits = 2
	mediumMaxUnits = 4
	highMinUnits   = 5
	highMaxUnits   = 7

	// HIGH 单位插值的分数上限：score >= 0.98 时取满 7 单位
	highScoreCeiling = 0.98
)

// Classifier 置信分级器。(tier, score) -> 单位数是纯确定性映射。
// 实现 ports.Classifier。
type Classifier struct{}

// New 创建分级器
func New() *Classifier { return &Classifier{} }

// Classify 计算置信分数并映射到等级与下注单位。
// score = 0.4·clamp(4·(maxP−0.5), 0, 1) + 0.2·patternStrength
//       + 0.2·min(1, histLen/100) + 0.2·modelAgreement
func (c *Classifier) Classify(fused domain.Distribution, patternStrength float64, historyLen int, modelAgreement float64) ports.Classification {
	edge := clamp01(4 * (fused.MaxProb() - 0.5))
	dataVolume := math.Min(1.0, float64(historyLen)/100.0)
	score := 0.4*edge + 0.2*clamp01(patternStrength) + 0.2*dataVolume + 0.2*clamp01(modelAgreement)

	tier := tierFor(score)
	return ports.Classification{
		Tier:     tier,
		Score:    score,
		BetUnits: betUnits(tier, score),
	}
}

func tierFor(score float64) domain.ConfidenceTier {
	switch {
	case score >= HighThreshold:
		return domain.TierHigh
	case score >= MediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// betUnits 等级内线性插值：MEDIUM 在 [0.70,0.90) 上取 [2,4]，
// HIGH 在 [0.90,0.98] 上取 [5,7]。LOW 恒为 0（不下注）。
func betUnits(tier domain.ConfidenceTier, score float64) int {
	switch tier {
	case domain.TierMedium:
		t := (score - MediumThreshold) / (HighThreshold - MediumThreshold)
		return mediumMinUnits + int(clamp01(t)*float64(mediumMaxUnits-mediumMinUnits))
	case domain.TierHigh:
		t := (score - HighThreshold) / (highScoreCeiling - HighThreshold)
		return highMinUnits + int(clamp01(t)*float64(highMaxUnits-highMinUnits))
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
