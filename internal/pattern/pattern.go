package pattern

import (
	"fmt"
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// 本包全部为结果序列上的纯函数，无共享状态。
// "数据不足"是一等结果（Sufficient=false），不是错误；
// 非法符号才作为校验错误在本边界拒绝。

// StreakReport 尾部连势检测结果
type StreakReport struct {
	Length    int            // 尾部同符号连续长度
	Symbol    domain.Outcome // 连势符号
	BreakProb float64        // 断连概率启发值
}

// ChopReport 交替（跳）检测结果
type ChopReport struct {
	Count     int     // 相邻不同对的数量
	Intensity float64 // 相邻不同对占比 [0,1]
}

// validate 拒绝含非法符号的序列
func validate(history []domain.Outcome) error {
	for i, o := range history {
		if !o.Valid() {
			return fmt.Errorf("invalid outcome at index %d: %q", i, o)
		}
	}
	return nil
}

// DetectStreaks 检测尾部连势。断连概率 = min(0.95, 1/len² + 0.1)。
func DetectStreaks(history []domain.Outcome) (StreakReport, error) {
	if err := validate(history); err != nil {
		return StreakReport{}, err
	}
	if len(history) == 0 {
		return StreakReport{}, nil
	}
	symbol := history[len(history)-1]
	length := 1
	for i := len(history) - 2; i >= 0; i-- {
		if history[i] != symbol {
			break
		}
		length++
	}
	return StreakReport{
		Length:    length,
		Symbol:    symbol,
		BreakProb: streakBreakProb(length),
	}, nil
}

func streakBreakProb(length int) float64 {
	return math.Min(0.95, 1.0/float64(length*length)+0.1)
}

// DetectChops 计算尾部窗口内相邻不同对的占比。
// window <= 0 时使用整个序列。
func DetectChops(history []domain.Outcome, window int) (ChopReport, error) {
	if err := validate(history); err != nil {
		return ChopReport{}, err
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) < 2 {
		return ChopReport{}, nil
	}
	count := 0
	for i := 1; i < len(history); i++ {
		if history[i] != history[i-1] {
			count++
		}
	}
	return ChopReport{
		Count:     count,
		Intensity: float64(count) / float64(len(history)-1),
	}, nil
}

// Frequencies 各结果在序列中的占比
func Frequencies(history []domain.Outcome) domain.Distribution {
	if len(history) == 0 {
		return domain.Distribution{}
	}
	var b, p, t int
	for _, o := range history {
		switch o {
		case domain.OutcomeBanker:
			b++
		case domain.OutcomePlayer:
			p++
		case domain.OutcomeTie:
			t++
		}
	}
	n := float64(len(history))
	return domain.Distribution{
		Banker: float64(b) / n,
		Player: float64(p) / n,
		Tie:    float64(t) / n,
	}
}

// PatternStrength 连势强度与跳强度的较大者（连势按长度/10 封顶 1.0）
func PatternStrength(streak StreakReport, chop ChopReport) float64 {
	streakStrength := math.Min(1.0, float64(streak.Length)/10.0)
	return math.Max(streakStrength, chop.Intensity)
}
