package pattern

import (
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// AnomalyReport 异常检测结果：当前窗口的结果频率相对理论分布的偏离程度。
// 用于标记"不像正常牌局"的状态（采集错位、换靴未检出等），
// 异常时预测不可信，调用方应压制信号。
type AnomalyReport struct {
	Score      float64  // 最大 |z| 分数
	IsAnomaly  bool     // Score 超过阈值
	Reasons    []string // 触发的具体偏离
	ShouldStop bool     // 多项偏离同时出现
}

// anomalyZThreshold 频率 z 分数阈值
const anomalyZThreshold = 3.0

// DetectAnomalies 对尾部窗口的结果频率做 z 检验。
// 窗口不足 20 时不判定异常（数据不足一等结果的约定同上）。
func DetectAnomalies(history []domain.Outcome, window int) AnomalyReport {
	if window <= 0 {
		window = 50
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	n := len(history)
	if n < 20 {
		return AnomalyReport{}
	}

	freq := Frequencies(history)
	base := domain.BaseDistribution()

	var report AnomalyReport
	checks := []struct {
		name     string
		observed float64
		expected float64
	}{
		{"banker_frequency", freq.Banker, base.Banker},
		{"player_frequency", freq.Player, base.Player},
		{"tie_frequency", freq.Tie, base.Tie},
	}
	for _, c := range checks {
		// 二项近似下的频率标准差
		sd := math.Sqrt(c.expected * (1 - c.expected) / float64(n))
		if sd == 0 {
			continue
		}
		z := math.Abs(c.observed-c.expected) / sd
		if z > report.Score {
			report.Score = z
		}
		if z > anomalyZThreshold {
			report.Reasons = append(report.Reasons, c.name)
		}
	}
	report.IsAnomaly = report.Score > anomalyZThreshold
	report.ShouldStop = len(report.Reasons) >= 2
	return report
}
