package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/ports"
	"github.com/Midan14/baccarat-bot/internal/risk"
)

// stubSimulator 返回固定分布，可注入失败
type stubSimulator struct {
	result *ports.SimulationResult
	err    error
	calls  int
}

func (s *stubSimulator) Simulate(ctx context.Context, observed domain.CardCounts, payouts domain.PayoutTable) (*ports.SimulationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubAnalyzer 返回固定形态报告
type stubAnalyzer struct{ report ports.PatternReport }

func (s *stubAnalyzer) Analyze(history []domain.Outcome) (ports.PatternReport, error) {
	return s.report, nil
}

// stubUpdater 返回固定后验
type stubUpdater struct{ posterior domain.Distribution }

func (s *stubUpdater) Posterior(report ports.PatternReport, recent []domain.Outcome) (domain.Distribution, error) {
	return s.posterior, nil
}

// stubFuser 直接返回模拟分布
type stubFuser struct{}

func (stubFuser) Fuse(sim, posterior domain.Distribution, model *domain.Distribution) (domain.Distribution, error) {
	return sim, nil
}

// stubClassifier 返回固定分级
type stubClassifier struct{ cls ports.Classification }

func (s *stubClassifier) Classify(fused domain.Distribution, patternStrength float64, historyLen int, modelAgreement float64) ports.Classification {
	return s.cls
}

func bankerHeavy() *ports.SimulationResult {
	return &ports.SimulationResult{
		Probabilities:  domain.Distribution{Banker: 0.60, Player: 0.32, Tie: 0.08},
		Intervals:      map[domain.Outcome]ports.ConfidenceInterval{},
		ExpectedValue:  map[domain.Outcome]float64{domain.OutcomeBanker: 0.14},
		HandsSimulated: 1000,
	}
}

type fixture struct {
	orch *Orchestrator
	sim  *stubSimulator
	risk *risk.Manager
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	sim := &stubSimulator{result: bankerHeavy()}
	riskMgr, err := risk.NewManager(risk.Config{
		InitialBalance:    decimal.NewFromInt(1000),
		StopLossPct:       0.5,
		StopWinPct:        0.5,
		EmergencyDrawdown: 0.9,
	})
	require.NoError(t, err)

	orch, err := New(cfg,
		sim,
		&stubAnalyzer{report: ports.PatternReport{PatternStrength: 0.5}},
		&stubUpdater{posterior: domain.BaseDistribution()},
		stubFuser{},
		&stubClassifier{cls: ports.Classification{Tier: domain.TierHigh, Score: 0.95, BetUnits: 5}},
		riskMgr,
	)
	require.NoError(t, err)
	return &fixture{orch: orch, sim: sim, risk: riskMgr}
}

func ingestN(t *testing.T, f *fixture, n int, o domain.Outcome) *domain.Signal {
	t.Helper()
	var last *domain.Signal
	for i := 0; i < n; i++ {
		s, err := f.orch.Ingest(context.Background(), events.OutcomeEvent{Outcome: o, Timestamp: time.Now()})
		require.NoError(t, err)
		last = s
	}
	return last
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestIngestRejectsInvalidOutcome(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})
	_, err := f.orch.Ingest(context.Background(), events.OutcomeEvent{Outcome: "X"})
	assert.Error(t, err)
}

func TestSignalCadence(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})
	f.orch.StartSession(context.Background())

	// 前两局不出信号
	for i := 0; i < 2; i++ {
		s, err := f.orch.Ingest(context.Background(), events.OutcomeEvent{Outcome: domain.OutcomeBanker})
		require.NoError(t, err)
		assert.Nil(t, s, "no signal before cadence boundary")
	}
	// 第三局出信号
	s, err := f.orch.Ingest(context.Background(), events.OutcomeEvent{Outcome: domain.OutcomeBanker})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.OutcomeBanker, s.Recommended)
	assert.Equal(t, domain.TierHigh, s.Tier)
	assert.True(t, s.BetSize.Sign() > 0, "active session should size a bet")

	// 计数重置：之后第三局才再出
	assert.Nil(t, ingestN(t, f, 2, domain.OutcomePlayer))
	assert.NotNil(t, ingestN(t, f, 1, domain.OutcomePlayer))

	stats := f.orch.Stats()
	assert.Equal(t, 6, stats.OutcomesSeen)
	assert.Equal(t, 2, stats.SignalsEmitted)
}

func TestSettlementOnNextOutcome(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})
	f.orch.StartSession(context.Background())

	var settlements []events.BankrollChangedEvent
	f.orch.OnBankrollChanged(ports.BankrollEventHandlerFunc(func(ctx context.Context, e events.BankrollChangedEvent) error {
		settlements = append(settlements, e)
		return nil
	}))

	s := ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	balanceBefore := f.risk.Assessment().Balance

	// 下一局结算：推荐 B、实际 B → 赢
	ingestN(t, f, 1, domain.OutcomeBanker)
	require.Len(t, settlements, 1)
	assert.True(t, settlements[0].Won)
	assert.Equal(t, domain.OutcomeBanker, settlements[0].Predicted)
	assert.True(t, settlements[0].Profit.Sign() > 0)
	assert.True(t, f.risk.Assessment().Balance.GreaterThan(balanceBefore))

	stats := f.orch.Stats()
	assert.Equal(t, 1, stats.Evaluated)
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, 1.0, stats.HitRate)
}

func TestSettlementLoss(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})
	f.orch.StartSession(context.Background())

	s := ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	balanceBefore := f.risk.Assessment().Balance

	ingestN(t, f, 1, domain.OutcomePlayer)
	assert.True(t, f.risk.Assessment().Balance.LessThan(balanceBefore))

	stats := f.orch.Stats()
	assert.Equal(t, 1, stats.Evaluated)
	assert.Equal(t, 0, stats.Correct)
}

func TestSuppressedWhenSessionStopped(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})
	// 不开会话：风控 INACTIVE，注金为 0 但信号照常产出
	s := ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	assert.True(t, s.BetSize.IsZero(), "inactive session must not size bets")

	// 手动停止后：信号被抑制
	f.orch.StartSession(context.Background())
	f.risk.Stop()
	s = ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	assert.True(t, s.Suppressed)
	assert.True(t, s.BetSize.IsZero())

	stats := f.orch.Stats()
	assert.Equal(t, 1, stats.SignalsSuppressed)
}

func TestSimulationFailureFallsBackToCache(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3, SimulationTimeout: 50 * time.Millisecond})
	f.orch.StartSession(context.Background())

	// 第一轮成功：结果进入缓存
	s := ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	assert.False(t, s.Suppressed)

	// 之后模拟失败：应退回缓存结果而不是抑制
	f.sim.err = context.DeadlineExceeded
	s = ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	assert.False(t, s.Suppressed, "cached simulation should back the signal")
	assert.Equal(t, bankerHeavy().Probabilities, s.SimulatorProbs)
}

func TestSimulationFailureNoCacheSuppresses(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3, SimulationTimeout: 50 * time.Millisecond})
	f.orch.StartSession(context.Background())
	f.sim.err = context.DeadlineExceeded

	s := ingestN(t, f, 3, domain.OutcomeBanker)
	require.NotNil(t, s)
	assert.True(t, s.Suppressed, "no cache available: signal must be suppressed")
}

func TestSessionStateBroadcast(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 3})

	var transitions []events.SessionStateChangedEvent
	f.orch.OnSessionStateChanged(ports.SessionEventHandlerFunc(func(ctx context.Context, e events.SessionStateChangedEvent) error {
		transitions = append(transitions, e)
		return nil
	}))

	f.orch.StartSession(context.Background())
	f.orch.EndSession(context.Background())
	require.Len(t, transitions, 2)
	assert.Equal(t, domain.SessionInactive, transitions[0].From)
	assert.Equal(t, domain.SessionActive, transitions[0].To)
	assert.Equal(t, domain.SessionActive, transitions[1].From)
	assert.Equal(t, domain.SessionInactive, transitions[1].To)
}

func TestSignalBroadcast(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 2})
	f.orch.StartSession(context.Background())

	var got []events.SignalEmittedEvent
	f.orch.OnSignal(ports.SignalHandlerFunc(func(ctx context.Context, e events.SignalEmittedEvent) error {
		got = append(got, e)
		return nil
	}))

	ingestN(t, f, 2, domain.OutcomePlayer)
	require.Len(t, got, 1)
	assert.Equal(t, domain.OutcomeBanker, got[0].Signal.Recommended)
}

func TestRecentSignalsBounded(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 1, SignalCapacity: 3})
	f.orch.StartSession(context.Background())
	ingestN(t, f, 5, domain.OutcomeBanker)

	all := f.orch.RecentSignals(0)
	assert.Len(t, all, 3, "signal history must stay bounded")
}

func TestResetShoeClearsObservedCards(t *testing.T) {
	f := newFixture(t, Config{SignalEvery: 100})
	_, err := f.orch.Ingest(context.Background(), events.OutcomeEvent{
		Outcome:     domain.OutcomeBanker,
		BankerCards: []domain.Rank{"K", "9"},
		PlayerCards: []domain.Rank{"2", "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, f.orch.observed.Total())

	f.orch.ResetShoe()
	assert.Equal(t, 0, f.orch.observed.Total())
}
