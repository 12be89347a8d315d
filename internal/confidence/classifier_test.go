package confidence

import (
	"testing"
	"testing/quick"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		tier  domain.ConfidenceTier
	}{
		{0.0, domain.TierLow},
		{0.6999, domain.TierLow},
		{0.70, domain.TierMedium}, // 下界含
		{0.8999, domain.TierMedium},
		{0.90, domain.TierHigh}, // 下界含
		{1.0, domain.TierHigh},
	}
	for _, c := range cases {
		if got := tierFor(c.score); got != c.tier {
			t.Fatalf("tierFor(%f) got=%s want=%s", c.score, got, c.tier)
		}
	}
}

func TestBetUnitsRanges(t *testing.T) {
	// LOW 恒为 0
	if got := betUnits(domain.TierLow, 0.5); got != 0 {
		t.Fatalf("low units got=%d want=0", got)
	}
	// MEDIUM 区间 [2,4]
	if got := betUnits(domain.TierMedium, 0.70); got != 2 {
		t.Fatalf("medium floor got=%d want=2", got)
	}
	if got := betUnits(domain.TierMedium, 0.89999); got != 4 {
		t.Fatalf("medium ceiling got=%d want=4", got)
	}
	// HIGH 区间 [5,7]，score >= 0.98 取满
	if got := betUnits(domain.TierHigh, 0.90); got != 5 {
		t.Fatalf("high floor got=%d want=5", got)
	}
	if got := betUnits(domain.TierHigh, 0.98); got != 7 {
		t.Fatalf("high ceiling got=%d want=7", got)
	}
	if got := betUnits(domain.TierHigh, 1.0); got != 7 {
		t.Fatalf("high clamped got=%d want=7", got)
	}
}

func TestClassifyPerfectInputs(t *testing.T) {
	c := New()
	// 最大概率 0.75（edge 饱和）、满模式强度、满数据量、模型完全一致
	fused := domain.Distribution{Banker: 0.75, Player: 0.20, Tie: 0.05}
	got := c.Classify(fused, 1.0, 100, 1.0)
	if got.Tier != domain.TierHigh {
		t.Fatalf("tier got=%s want=HIGH (score=%f)", got.Tier, got.Score)
	}
	if got.BetUnits < 5 || got.BetUnits > 7 {
		t.Fatalf("high tier units out of range: %d", got.BetUnits)
	}
}

func TestClassifyNoEdgeIsLow(t *testing.T) {
	c := New()
	// 三方均匀：无边际，即使其余信号拉满也到不了 HIGH
	got := c.Classify(domain.UniformDistribution(), 1.0, 100, 1.0)
	if got.Tier == domain.TierHigh {
		t.Fatalf("uniform distribution must not classify HIGH, score=%f", got.Score)
	}
	if got.Tier == domain.TierLow && got.BetUnits != 0 {
		t.Fatalf("low tier must carry zero units, got %d", got.BetUnits)
	}
}

func TestClassifyColdStartIsConservative(t *testing.T) {
	c := New()
	fused := domain.Distribution{Banker: 0.75, Player: 0.20, Tie: 0.05}
	cold := c.Classify(fused, 0.0, 0, 0.0)
	warm := c.Classify(fused, 1.0, 100, 1.0)
	if cold.Score >= warm.Score {
		t.Fatalf("cold start should score lower: %f >= %f", cold.Score, warm.Score)
	}
	if cold.Tier == domain.TierHigh {
		t.Fatalf("cold start must not be HIGH")
	}
}

// 属性：任何输入下分数都在 [0,1]，单位数与等级的配对关系不变
func TestProperty_ClassifyInvariants(t *testing.T) {
	c := New()
	property := func(pb, pp, strength, agreement float64, histLen int) bool {
		// 输入域约束
		pb = math01(pb)
		pp = math01(pp) * (1 - pb)
		fused := domain.Distribution{Banker: pb, Player: pp, Tie: 1 - pb - pp}
		if histLen < 0 {
			histLen = -histLen
		}
		if histLen < 0 { // MinInt 取负仍为负
			histLen = 0
		}
		got := c.Classify(fused, math01(strength), histLen, math01(agreement))

		if got.Score < 0 || got.Score > 1 {
			return false
		}
		switch got.Tier {
		case domain.TierLow:
			return got.BetUnits == 0
		case domain.TierMedium:
			return got.BetUnits >= 2 && got.BetUnits <= 4
		case domain.TierHigh:
			return got.BetUnits >= 5 && got.BetUnits <= 7
		}
		return false
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func math01(v float64) float64 {
	if v != v || v < 0 { // NaN 或负值
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
