package pattern

import (
	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/ports"
)

// Analyzer 组合各检测器，实现 ports.PatternAnalyzer。
type Analyzer struct {
	ChopWindow    int // 跳检测窗口，默认整个序列
	AnomalyWindow int // 异常检测窗口，默认 50
}

// NewAnalyzer 创建分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{AnomalyWindow: 50}
}

// Analyze 汇总连势/跳/异常为一份报告
func (a *Analyzer) Analyze(history []domain.Outcome) (ports.PatternReport, error) {
	streak, err := DetectStreaks(history)
	if err != nil {
		return ports.PatternReport{}, err
	}
	chop, err := DetectChops(history, a.ChopWindow)
	if err != nil {
		return ports.PatternReport{}, err
	}
	anomaly := DetectAnomalies(history, a.AnomalyWindow)

	return ports.PatternReport{
		StreakLength:    streak.Length,
		StreakSymbol:    streak.Symbol,
		StreakBreakProb: streak.BreakProb,
		ChopIntensity:   chop.Intensity,
		PatternStrength: PatternStrength(streak, chop),
		AnomalyScore:    anomaly.Score,
	}, nil
}
