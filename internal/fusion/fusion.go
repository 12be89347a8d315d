package fusion

import (
	"math"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/pkg/errors"
)

// Weights 融合权重，三项之和必须为 1（容差内）。
// 无外部模型分布时，Model 权重按比例摊给另外两项。
type Weights struct {
	Simulator float64 `json:"simulator" yaml:"simulator"`
	Bayesian  float64 `json:"bayesian" yaml:"bayesian"`
	Model     float64 `json:"model" yaml:"model"`
}

// DefaultWeights 近似等权的默认权重
func DefaultWeights() Weights {
	return Weights{Simulator: 0.35, Bayesian: 0.35, Model: 0.30}
}

// Validate 校验权重
func (w Weights) Validate() error {
	if w.Simulator < 0 || w.Bayesian < 0 || w.Model < 0 {
		return errors.Errorf("fusion weights must be non-negative: %+v", w)
	}
	if sum := w.Simulator + w.Bayesian + w.Model; math.Abs(sum-1.0) > domain.ProbTolerance {
		return errors.Errorf("fusion weights sum %.6f != 1", sum)
	}
	return nil
}

// Fuser 概率融合器，实现 ports.Fuser。
type Fuser struct {
	weights Weights
}

// New 创建融合器；权重非法时报错
func New(weights Weights) (*Fuser, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Fuser{weights: weights}, nil
}

// Fuse 加权线性组合后归一化；model 为 nil 时其权重摊给模拟器与后验。
// 推荐结果由调用方对返回分布取 ArgMax。
func (f *Fuser) Fuse(sim, posterior domain.Distribution, model *domain.Distribution) (domain.Distribution, error) {
	if err := sim.Validate(); err != nil {
		return domain.Distribution{}, errors.Wrap(err, "simulator distribution")
	}
	if err := posterior.Validate(); err != nil {
		return domain.Distribution{}, errors.Wrap(err, "posterior distribution")
	}
	if model != nil {
		if err := model.Validate(); err != nil {
			return domain.Distribution{}, errors.Wrap(err, "model distribution")
		}
	}

	ws, wb, wm := f.weights.Simulator, f.weights.Bayesian, f.weights.Model
	if model == nil {
		// 摊还 model 权重，保持 ws+wb = 1
		total := ws + wb
		if total <= 0 {
			ws, wb = 0.5, 0.5
		} else {
			ws, wb = ws/total, wb/total
		}
		wm = 0
	}

	fused := domain.Distribution{
		Banker: sim.Banker*ws + posterior.Banker*wb,
		Player: sim.Player*ws + posterior.Player*wb,
		Tie:    sim.Tie*ws + posterior.Tie*wb,
	}
	if model != nil {
		fused.Banker += model.Banker * wm
		fused.Player += model.Player * wm
		fused.Tie += model.Tie * wm
	}

	fused = fused.Normalize()
	if err := fused.Validate(); err != nil {
		return domain.Distribution{}, err
	}
	return fused, nil
}
