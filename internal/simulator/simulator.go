package simulator

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/metrics"
	"github.com/Midan14/baccarat-bot/internal/ports"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "simulator")

// Config 蒙特卡洛模拟配置
type Config struct {
	NumSimulations int     // 目标模拟手数（按 worker 均分）
	NumDecks       int     // 牌靴副数
	HandsPerShoe   int     // 每只靴连续发的手数
	Workers        int     // 并行 worker 数，<=0 时取 GOMAXPROCS
	PriorWeight    float64 // 先验平滑权重，默认 0.1
	Seed           int64   // 随机种子，0 表示非确定性
}

// ApplyDefaults 填充默认配置
func (c *Config) ApplyDefaults() {
	if c.NumSimulations <= 0 {
		c.NumSimulations = 50000
	}
	if c.NumDecks <= 0 {
		c.NumDecks = 8
	}
	if c.HandsPerShoe <= 0 {
		c.HandsPerShoe = 10
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.PriorWeight <= 0 || c.PriorWeight >= 1 {
		c.PriorWeight = 0.1
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.NumDecks > 12 {
		return errors.Errorf("num_decks %d out of range", c.NumDecks)
	}
	return nil
}

// MonteCarlo 蒙特卡洛牌靴模拟器。实现 ports.Simulator。
// worker 之间不共享可变状态；唯一的同步点是批次结束后的一次加法归并。
type MonteCarlo struct {
	cfg Config
}

// New 创建模拟器
func New(cfg Config) *MonteCarlo {
	cfg.ApplyDefaults()
	return &MonteCarlo{cfg: cfg}
}

// batchTally 单个 worker 的局部计数（按靴分批，供 CI 估计用）
type batchTally struct {
	banker, player, tie int
	// 每只靴的单靴 Banker/Player/Tie 占比（方差估计用）
	shoeFracs [][3]float64
}

// Simulate 执行模拟：构造剩余牌池、并行发牌、加法归并、先验平滑、CI 与 EV。
// 阻塞直至全部手数模拟完成或 ctx 取消。
func (m *MonteCarlo) Simulate(ctx context.Context, observed domain.CardCounts, payouts domain.PayoutTable) (*ports.SimulationResult, error) {
	if err := observed.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid observed card counts")
	}
	if err := payouts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid payout table")
	}

	workers := m.cfg.Workers
	perWorker := m.cfg.NumSimulations / workers
	if perWorker == 0 {
		perWorker = 1
		workers = m.cfg.NumSimulations
	}

	tallies := make([]batchTally, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			seed := m.cfg.Seed
			if seed == 0 {
				seed = rand.Int63()
			}
			rng := rand.New(rand.NewSource(seed + int64(idx)*7919))
			tallies[idx] = m.runBatch(ctx, observed, perWorker, rng)
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 唯一的归并点：顺序无关的加法合并
	var total batchTally
	for _, t := range tallies {
		total.banker += t.banker
		total.player += t.player
		total.tie += t.tie
		total.shoeFracs = append(total.shoeFracs, t.shoeFracs...)
	}

	hands := total.banker + total.player + total.tie
	probs := m.smooth(total, hands)
	result := &ports.SimulationResult{
		Probabilities:  probs,
		Intervals:      confidenceIntervals(total.shoeFracs),
		ExpectedValue:  expectedValues(probs, payouts),
		HandsSimulated: hands,
	}

	metrics.SimulationsRun.Add(1)
	log.Debugf("模拟完成: hands=%d B=%.4f P=%.4f T=%.4f",
		hands, probs.Banker, probs.Player, probs.Tie)
	return result, nil
}

// runBatch 单个 worker：独立模拟整靴，局部计数，无锁
func (m *MonteCarlo) runBatch(ctx context.Context, observed domain.CardCounts, hands int, rng *rand.Rand) batchTally {
	var tally batchTally
	dealt := 0
	for dealt < hands {
		// 每 4 只靴检查一次取消，避免热循环里频繁读 ctx
		if len(tally.shoeFracs)%4 == 0 && ctx.Err() != nil {
			return tally
		}
		s := buildShoe(observed, m.cfg.NumDecks, rng)
		var sb, sp, st int
		for i := 0; i < m.cfg.HandsPerShoe && dealt < hands; i++ {
			r := dealHand(s)
			dealt++
			switch r.winner {
			case domain.OutcomeBanker:
				sb++
			case domain.OutcomePlayer:
				sp++
			default:
				st++
			}
		}
		n := sb + sp + st
		if n > 0 {
			tally.shoeFracs = append(tally.shoeFracs, [3]float64{
				float64(sb) / float64(n),
				float64(sp) / float64(n),
				float64(st) / float64(n),
			})
		}
		tally.banker += sb
		tally.player += sp
		tally.tie += st
	}
	return tally
}

// smooth 用固定先验做线性平滑后归一化，抑制小样本噪声
func (m *MonteCarlo) smooth(t batchTally, hands int) domain.Distribution {
	base := domain.BaseDistribution()
	if hands == 0 {
		return base
	}
	w := m.cfg.PriorWeight
	raw := domain.Distribution{
		Banker: float64(t.banker) / float64(hands),
		Player: float64(t.player) / float64(hands),
		Tie:    float64(t.tie) / float64(hands),
	}
	return domain.Distribution{
		Banker: raw.Banker*(1-w) + base.Banker*w,
		Player: raw.Player*(1-w) + base.Player*w,
		Tie:    raw.Tie*(1-w) + base.Tie*w,
	}.Normalize()
}

// confidenceIntervals 基于单靴占比的方差做 95% 正态近似区间
func confidenceIntervals(fracs [][3]float64) map[domain.Outcome]ports.ConfidenceInterval {
	out := make(map[domain.Outcome]ports.ConfidenceInterval, 3)
	base := domain.BaseDistribution()
	n := len(fracs)
	for i, o := range domain.Outcomes {
		if n == 0 {
			out[o] = ports.ConfidenceInterval{Mean: base.Get(o), StdDev: 0.05, Radius: 0.05}
			continue
		}
		var sum float64
		for _, f := range fracs {
			sum += f[i]
		}
		mean := sum / float64(n)
		var sq float64
		for _, f := range fracs {
			d := f[i] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(n))
		out[o] = ports.ConfidenceInterval{
			Mean:   mean,
			StdDev: std,
			Radius: 1.96 * std / math.Sqrt(float64(n)),
		}
	}
	return out
}

// expectedValues 按赔付表计算每种注型的单位期望值
func expectedValues(probs domain.Distribution, payouts domain.PayoutTable) map[domain.Outcome]float64 {
	out := make(map[domain.Outcome]float64, 3)
	for _, o := range domain.Outcomes {
		p := probs.Get(o)
		net := payouts.Odds(o) - 1
		out[o] = p*net - (1 - p)
	}
	return out
}
