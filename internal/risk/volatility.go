package risk

import (
	"math"
	"sort"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// volatilityWindow 有界的盈亏结果窗口，用于波动性估计与 VaR。
// 仅由 Manager 在持锁状态下访问，自身不加锁。
type volatilityWindow struct {
	size    int
	results []float64
}

func newVolatilityWindow(size int) *volatilityWindow {
	if size <= 0 {
		size = 50
	}
	return &volatilityWindow{size: size, results: make([]float64, 0, size)}
}

func (w *volatilityWindow) add(result float64) {
	if len(w.results) >= w.size {
		copy(w.results, w.results[1:])
		w.results = w.results[:len(w.results)-1]
	}
	w.results = append(w.results, result)
}

func (w *volatilityWindow) reset() {
	w.results = w.results[:0]
}

// stdDev 当前波动率。样本不足 10 笔时返回保守默认值 0.1。
func (w *volatilityWindow) stdDev() float64 {
	if len(w.results) < 10 {
		return 0.1
	}
	var sum float64
	for _, r := range w.results {
		sum += r
	}
	mean := sum / float64(len(w.results))
	var sq float64
	for _, r := range w.results {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(w.results)))
}

// multiplier 波动性下注倍率：低波动放大、高波动收缩
func (w *volatilityWindow) multiplier() float64 {
	v := w.stdDev()
	switch {
	case v < 0.5:
		return 1.2
	case v < 1.0:
		return 1.0
	case v < 2.0:
		return 0.8
	default:
		return 0.6
	}
}

// riskLevel 波动性风险级别
func (w *volatilityWindow) riskLevel() domain.RiskLevel {
	v := w.stdDev()
	switch {
	case v < 0.5:
		return domain.RiskLow
	case v < 1.0:
		return domain.RiskMedium
	case v < 2.0:
		return domain.RiskHigh
	default:
		return domain.RiskExtreme
	}
}

// valueAtRisk95 会话结果的 5 分位数。样本不足时按 -5 个基准单位估计。
func (w *volatilityWindow) valueAtRisk95(baseUnit float64) float64 {
	if len(w.results) <= 10 {
		return -baseUnit * 5
	}
	sorted := make([]float64, len(w.results))
	copy(sorted, w.results)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.05 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
