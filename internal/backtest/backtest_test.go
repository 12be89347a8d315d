package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Midan14/baccarat-bot/internal/bayes"
	"github.com/Midan14/baccarat-bot/internal/confidence"
	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/fusion"
	"github.com/Midan14/baccarat-bot/internal/orchestrator"
	"github.com/Midan14/baccarat-bot/internal/pattern"
	"github.com/Midan14/baccarat-bot/internal/risk"
	"github.com/Midan14/baccarat-bot/internal/simulator"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	sim := simulator.New(simulator.Config{NumSimulations: 2000, Workers: 2, Seed: 42})
	fuser, err := fusion.New(fusion.DefaultWeights())
	if err != nil {
		t.Fatalf("fusion.New error: %v", err)
	}
	riskMgr, err := risk.NewManager(risk.Config{
		InitialBalance: decimal.NewFromInt(1000),
		MaxSessionTime: time.Hour,
	})
	if err != nil {
		t.Fatalf("risk.NewManager error: %v", err)
	}
	orch, err := orchestrator.New(orchestrator.Config{
		SignalEvery:       7,
		SimulationTimeout: 30 * time.Second,
		Table:             "backtest",
	}, sim, pattern.NewAnalyzer(), bayes.NewUpdater(), fuser, confidence.New(), riskMgr)
	if err != nil {
		t.Fatalf("orchestrator.New error: %v", err)
	}
	r, err := NewRunner(orch)
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}
	return r
}

func outcomes(n int) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for i := range out {
		switch i % 5 {
		case 0, 1:
			out[i] = domain.OutcomeBanker
		case 2, 3:
			out[i] = domain.OutcomePlayer
		default:
			out[i] = domain.OutcomeTie
		}
	}
	return out
}

func TestRunEmptySequence(t *testing.T) {
	r := newRunner(t)
	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty sequence")
	}
}

func TestRunReplaysFullSequence(t *testing.T) {
	r := newRunner(t)
	report, err := r.Run(context.Background(), outcomes(70))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Hands != 70 {
		t.Fatalf("Hands got=%d want=70", report.Hands)
	}
	if report.Stats.OutcomesSeen != 70 {
		t.Fatalf("OutcomesSeen got=%d want=70", report.Stats.OutcomesSeen)
	}
	// 每 7 局一次信号
	total := report.Stats.SignalsEmitted + report.Stats.SignalsSuppressed
	if total != 10 {
		t.Fatalf("signals got=%d want=10", total)
	}
	if report.FinalBalance.IsZero() {
		t.Fatalf("final balance missing")
	}
	// PnL 与余额一致
	want := report.FinalBalance.Sub(decimal.NewFromInt(1000))
	if !report.PnL.Equal(want) {
		t.Fatalf("PnL got=%s want=%s", report.PnL, want)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	r := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, outcomes(70)); err == nil {
		t.Fatalf("expected context error")
	}
}
