package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/stream"
	"github.com/Midan14/baccarat-bot/pkg/logger"
)

// DemoConfig 演示结果源配置
type DemoConfig struct {
	Table        string
	Interval     time.Duration // 出结果的间隔，默认 2s
	HandsPerShoe int           // 每靴局数，默认 70
	Seed         int64         // 0 表示按时间播种
}

// DemoFeed 演示用结果源：按基准概率生成结果，每靴结束发换靴事件。
// 用于无真实台桌接入时的端到端联调。
type DemoFeed struct {
	cfg      DemoConfig
	handlers *stream.HandlerList
	cancel   context.CancelFunc
	mu       sync.Mutex
	done     chan struct{}
}

// NewDemoFeed 创建演示结果源
func NewDemoFeed(cfg DemoConfig) *DemoFeed {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.HandsPerShoe <= 0 {
		cfg.HandsPerShoe = 70
	}
	if cfg.Table == "" {
		cfg.Table = "demo"
	}
	return &DemoFeed{
		cfg:      cfg,
		handlers: stream.NewHandlerList(),
	}
}

// OnOutcome 注册结果回调
func (d *DemoFeed) OnOutcome(handler stream.OutcomeHandler) {
	d.handlers.Add(handler)
}

// Connect 启动生成循环
func (d *DemoFeed) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	seed := d.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	go d.run(runCtx, rng)
	logger.Infof("演示结果源已启动: table=%s interval=%v", d.cfg.Table, d.cfg.Interval)
	return nil
}

func (d *DemoFeed) run(ctx context.Context, rng *rand.Rand) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	hand := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hand++
			if hand > d.cfg.HandsPerShoe {
				hand = 1
				d.handlers.Emit(ctx, &events.OutcomeEvent{
					ShoeChanged: true,
					Table:       d.cfg.Table,
					Timestamp:   time.Now(),
				})
			}
			d.handlers.Emit(ctx, &events.OutcomeEvent{
				Outcome:   drawOutcome(rng),
				Table:     d.cfg.Table,
				Timestamp: time.Now(),
			})
		}
	}
}

// drawOutcome 按基准概率抽取结果
func drawOutcome(rng *rand.Rand) domain.Outcome {
	r := rng.Float64()
	switch {
	case r < domain.BaseProbBanker:
		return domain.OutcomeBanker
	case r < domain.BaseProbBanker+domain.BaseProbPlayer:
		return domain.OutcomePlayer
	default:
		return domain.OutcomeTie
	}
}

// Close 停止生成循环
func (d *DemoFeed) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
		<-d.done
	}
	return nil
}
