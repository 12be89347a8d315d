package pattern

import "math"

// VolatilityReport 结果序列（盈亏值）的波动性指标
type VolatilityReport struct {
	Mean          float64
	StdDev        float64
	BetMultiplier float64 // 派生的下注倍率，钳制在 [0.5, 2.0]
}

// VolatilityMetrics 计算盈亏序列的均值/标准差及派生下注倍率。
// 倍率 = 1/(1+σ)，钳制到 [0.5, 2.0]：波动越大越保守。
func VolatilityMetrics(results []float64) VolatilityReport {
	if len(results) == 0 {
		return VolatilityReport{BetMultiplier: 1.0}
	}
	var sum float64
	for _, r := range results {
		sum += r
	}
	mean := sum / float64(len(results))
	var sq float64
	for _, r := range results {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(results)))

	mult := 1.0 / (1.0 + std)
	mult = math.Max(0.5, math.Min(2.0, mult))
	return VolatilityReport{Mean: mean, StdDev: std, BetMultiplier: mult}
}
