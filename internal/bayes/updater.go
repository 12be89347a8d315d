package bayes

import (
	"fmt"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/ports"
)

// Updater 贝叶斯证据更新器：固定先验 × 模式似然，归一化得后验。
// 实现 ports.PosteriorUpdater。
type Updater struct {
	prior domain.Distribution
}

// NewUpdater 使用固定百家乐先验创建更新器
func NewUpdater() *Updater {
	return &Updater{prior: domain.BaseDistribution()}
}

// NewUpdaterWithPrior 自定义先验（回测/实验用）；先验必须是合法分布
func NewUpdaterWithPrior(prior domain.Distribution) (*Updater, error) {
	if err := prior.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prior: %w", err)
	}
	return &Updater{prior: prior}, nil
}

// Posterior 按证据调整似然后计算后验。
// 似然规则（与模式报告对应）：
//   - 连势长度 > 3：断连方向 +10%，连势方向 -10%
//   - 跳强度 > 0.7：Banker/Player +5%，Tie -10%
func (u *Updater) Posterior(report ports.PatternReport, recent []domain.Outcome) (domain.Distribution, error) {
	if err := validateEvidence(report); err != nil {
		return domain.Distribution{}, err
	}

	like := domain.Distribution{Banker: 1, Player: 1, Tie: 1}

	if report.StreakLength > 3 {
		switch report.StreakSymbol {
		case domain.OutcomeBanker:
			like.Player *= 1.1
			like.Banker *= 0.9
		case domain.OutcomePlayer:
			like.Banker *= 1.1
			like.Player *= 0.9
		case domain.OutcomeTie:
			// 和局连势极罕见：回归双边
			like.Banker *= 1.05
			like.Player *= 1.05
			like.Tie *= 0.9
		}
	}

	if report.ChopIntensity > 0.7 {
		like.Banker *= 1.05
		like.Player *= 1.05
		like.Tie *= 0.9
	}

	posterior := domain.Distribution{
		Banker: u.prior.Banker * like.Banker,
		Player: u.prior.Player * like.Player,
		Tie:    u.prior.Tie * like.Tie,
	}.Normalize()

	if err := posterior.Validate(); err != nil {
		return domain.Distribution{}, err
	}
	return posterior, nil
}

// validateEvidence 在本边界拒绝畸形证据，不向下游静默传播
func validateEvidence(report ports.PatternReport) error {
	if report.StreakLength < 0 {
		return fmt.Errorf("negative streak length: %d", report.StreakLength)
	}
	if report.ChopIntensity < 0 || report.ChopIntensity > 1 {
		return fmt.Errorf("chop intensity out of [0,1]: %f", report.ChopIntensity)
	}
	if report.StreakLength > 0 && !report.StreakSymbol.Valid() {
		return fmt.Errorf("invalid streak symbol: %q", report.StreakSymbol)
	}
	return nil
}
