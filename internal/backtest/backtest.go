package backtest

import (
	"context"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/orchestrator"
	"github.com/Midan14/baccarat-bot/pkg/logger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Report 回测报告
type Report struct {
	Hands          int                    `json:"hands"`
	Stats          orchestrator.Stats     `json:"stats"`
	FinalBalance   decimal.Decimal        `json:"final_balance"`
	PnL            decimal.Decimal        `json:"pnl"`
	MaxDrawdown    float64                `json:"max_drawdown"`
	StoppedAt      int                    `json:"stopped_at"` // 触发停止时的局序号，0 表示未停止
	StoppedReason  domain.StopReason      `json:"stopped_reason,omitempty"`
	FinalState     domain.SessionState    `json:"final_state"`
	Signals        []domain.Signal        `json:"signals"`
}

// Runner 回测执行器：把一串历史结果按序喂给编排器，沿用线上同一条
// 管线与风控，差别只在事件来源。
type Runner struct {
	orch *orchestrator.Orchestrator
}

// NewRunner 创建回测执行器
func NewRunner(orch *orchestrator.Orchestrator) (*Runner, error) {
	if orch == nil {
		return nil, errors.New("nil orchestrator")
	}
	return &Runner{orch: orch}, nil
}

// Run 按序回放结果并产出报告。ctx 取消时提前返回已得的部分报告。
func (r *Runner) Run(ctx context.Context, outcomes []domain.Outcome) (*Report, error) {
	if len(outcomes) == 0 {
		return nil, errors.New("empty outcome sequence")
	}

	initial := r.orch.Assessment().Balance
	r.orch.StartSession(ctx)

	stoppedAt := 0
	for i, o := range outcomes {
		select {
		case <-ctx.Done():
			return r.report(initial, i, stoppedAt), ctx.Err()
		default:
		}

		_, err := r.orch.Ingest(ctx, events.OutcomeEvent{
			Outcome:   o,
			Table:     "backtest",
			Timestamp: time.Now(),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "hand %d", i+1)
		}

		if stoppedAt == 0 && r.orch.Assessment().State == domain.SessionStopped {
			stoppedAt = i + 1
			logger.Infof("回测在第 %d 局触发停止: %s", stoppedAt, r.orch.Assessment().StoppedReason)
		}
	}

	return r.report(initial, len(outcomes), stoppedAt), nil
}

func (r *Runner) report(initial decimal.Decimal, hands, stoppedAt int) *Report {
	assessment := r.orch.Assessment()
	stats := r.orch.Stats()

	return &Report{
		Hands:         hands,
		Stats:         stats,
		FinalBalance:  assessment.Balance,
		PnL:           assessment.Balance.Sub(initial),
		MaxDrawdown:   assessment.MaxDrawdown,
		StoppedAt:     stoppedAt,
		StoppedReason: assessment.StoppedReason,
		FinalState:    assessment.State,
		Signals:       r.orch.RecentSignals(0),
	}
}
