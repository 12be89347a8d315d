package pattern

import (
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// 统计有效性检验。样本不足时返回 Sufficient=false 的一等结果，
// 调用方必须显式分支处理，不得当作有效检验值向下游传播。

const (
	// MinChiSquareSamples 卡方检验最小样本量
	MinChiSquareSamples = 30
	// MinRunsTestSamples 游程检验最小样本量
	MinRunsTestSamples = 20
	// MinMarkovSamples 马尔可夫分析最小样本量
	MinMarkovSamples = 30
)

// ChiSquareResult 卡方均匀性检验结果
type ChiSquareResult struct {
	Sufficient bool
	Statistic  float64
	PValue     float64
	Random     bool // p > 0.05：观测与理论分布无显著偏离
}

// ChiSquareUniformity 将观测计数与百家乐理论分布做卡方比对。
// 三个类别自由度为 2，此时 p 值有闭式：p = exp(-χ²/2)。
func ChiSquareUniformity(history []domain.Outcome) (ChiSquareResult, error) {
	if err := validate(history); err != nil {
		return ChiSquareResult{}, err
	}
	if len(history) < MinChiSquareSamples {
		return ChiSquareResult{}, nil
	}

	n := float64(len(history))
	observed := [3]float64{}
	for _, o := range history {
		observed[o.Index()]++
	}
	base := domain.BaseDistribution()
	expected := [3]float64{n * base.Banker, n * base.Player, n * base.Tie}

	var chi2 float64
	for i := 0; i < 3; i++ {
		d := observed[i] - expected[i]
		chi2 += d * d / expected[i]
	}
	p := math.Exp(-chi2 / 2) // df = 2
	return ChiSquareResult{
		Sufficient: true,
		Statistic:  chi2,
		PValue:     p,
		Random:     p > 0.05,
	}, nil
}

// RunsTestResult 游程检验结果
type RunsTestResult struct {
	Sufficient bool
	ZScore     float64
	PValue     float64
	Random     bool // p > 0.05：序列与随机假设相容
}

// RunsTest Wald–Wolfowitz 游程检验。Tie 归入二元规约外单独计数，
// 只对 Banker/Player 的二元序列做检验（原始实现同此处理）。
func RunsTest(history []domain.Outcome) (RunsTestResult, error) {
	if err := validate(history); err != nil {
		return RunsTestResult{}, err
	}
	if len(history) < MinRunsTestSamples {
		return RunsTestResult{}, nil
	}

	// 二元规约：剔除 Tie
	var seq []int
	for _, o := range history {
		switch o {
		case domain.OutcomeBanker:
			seq = append(seq, 0)
		case domain.OutcomePlayer:
			seq = append(seq, 1)
		}
	}
	if len(seq) < MinRunsTestSamples {
		return RunsTestResult{}, nil
	}

	runs := 1
	var n1, n2 float64
	if seq[0] == 0 {
		n1++
	} else {
		n2++
	}
	for i := 1; i < len(seq); i++ {
		if seq[i] != seq[i-1] {
			runs++
		}
		if seq[i] == 0 {
			n1++
		} else {
			n2++
		}
	}
	n := n1 + n2
	if n1 == 0 || n2 == 0 {
		// 单一符号序列：无方差，按不足处理
		return RunsTestResult{}, nil
	}

	expectedRuns := 2*n1*n2/n + 1
	variance := (expectedRuns - 1) * (expectedRuns - 2) / (n - 1)
	if variance <= 0 {
		return RunsTestResult{}, nil
	}
	z := (float64(runs) - expectedRuns) / math.Sqrt(variance)
	p := 2 * (1 - normalCDF(math.Abs(z)))
	return RunsTestResult{
		Sufficient: true,
		ZScore:     z,
		PValue:     p,
		Random:     p > 0.05,
	}, nil
}

// normalCDF 标准正态分布函数
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
