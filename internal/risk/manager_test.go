package risk

import (
	"math"
	"testing"
	"testing/quick"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/shopspring/decimal"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func activeManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := newTestManager(t, cfg)
	m.StartSession()
	if m.State() != domain.SessionActive {
		t.Fatalf("State got=%s want=ACTIVE", m.State())
	}
	return m
}

func TestKellyFractionNoEdge(t *testing.T) {
	m := newTestManager(t, Config{})
	// 公平赔率、五五开：f* = 0
	if got := m.KellyFraction(0.5, 1.0); got != 0 {
		t.Fatalf("no-edge kelly got=%f want=0", got)
	}
	// 负边际同样为 0
	if got := m.KellyFraction(0.3, 1.0); got != 0 {
		t.Fatalf("negative-edge kelly got=%f want=0", got)
	}
}

func TestKellyFractionPositiveEdge(t *testing.T) {
	m := newTestManager(t, Config{})
	// p=0.9, b=1: f* = (0.9-0.1)/1 = 0.8，分数凯利 0.25 → 0.2
	got := m.KellyFraction(0.9, 1.0)
	if math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("kelly got=%f want=0.2", got)
	}
}

func TestKellyFractionDegenerateInputs(t *testing.T) {
	m := newTestManager(t, Config{})
	for _, c := range []struct{ p, b float64 }{
		{0, 1}, {1, 1}, {-0.1, 1}, {0.6, 0}, {0.6, -1},
	} {
		if got := m.KellyFraction(c.p, c.b); got != 0 {
			t.Fatalf("KellyFraction(%f, %f) got=%f want=0", c.p, c.b, got)
		}
	}
}

func TestKellyFractionShrinksOnDrawdown(t *testing.T) {
	m := activeManager(t, Config{
		InitialBalance: decimal.NewFromInt(1000),
		// 放宽停止条件，只观察回撤对凯利的影响
		StopLossPct:       0.99,
		EmergencyDrawdown: 0.99,
	})
	full := m.KellyFraction(0.9, 1.0)

	// 制造 >10% 回撤
	for i := 0; i < 3; i++ {
		if _, err := m.RecordResult(decimal.NewFromInt(40), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
			t.Fatalf("RecordResult error: %v", err)
		}
	}
	reduced := m.KellyFraction(0.9, 1.0)
	if reduced >= full {
		t.Fatalf("drawdown should shrink kelly: %f >= %f", reduced, full)
	}
	// 0.25 × 0.8 = 0.2 基础分数
	if math.Abs(reduced-full*0.8) > 1e-9 {
		t.Fatalf("10%% drawdown multiplier: got=%f want=%f", reduced, full*0.8)
	}
}

func TestBetSizeRequiresActiveSession(t *testing.T) {
	m := newTestManager(t, Config{})
	if got := m.BetSize(3, domain.TierMedium, 0.9, 1.0); !got.IsZero() {
		t.Fatalf("inactive session bet got=%s want=0", got)
	}
}

func TestBetSizeLowTierZero(t *testing.T) {
	m := activeManager(t, Config{})
	if got := m.BetSize(3, domain.TierLow, 0.9, 1.0); !got.IsZero() {
		t.Fatalf("low tier bet got=%s want=0", got)
	}
	if got := m.BetSize(0, domain.TierHigh, 0.9, 1.0); !got.IsZero() {
		t.Fatalf("zero units bet got=%s want=0", got)
	}
}

func TestBetSizeCappedByMaxBetPct(t *testing.T) {
	m := activeManager(t, Config{
		InitialBalance: decimal.NewFromInt(1000),
		MaxBetPct:      0.05,
		MinBet:         decimal.NewFromInt(1),
		MaxBet:         decimal.NewFromInt(1000),
	})
	// 凯利分数 0.2 > 单注上限 0.05：以上限 50 为基数，
	// HIGH 折减 1.0、空窗口低波动倍率 1.2 → 60
	got := m.BetSize(7, domain.TierHigh, 0.9, 1.0)
	want := decimal.NewFromInt(60)
	if !got.Equal(want) {
		t.Fatalf("capped bet got=%s want=%s", got, want)
	}
}

func TestBetSizeTierMultiplier(t *testing.T) {
	cfg := Config{
		InitialBalance: decimal.NewFromInt(1000),
		MaxBetPct:      0.05,
		MinBet:         decimal.NewFromInt(1),
		MaxBet:         decimal.NewFromInt(1000),
	}
	high := activeManager(t, cfg).BetSize(7, domain.TierHigh, 0.9, 1.0)
	medium := activeManager(t, cfg).BetSize(3, domain.TierMedium, 0.9, 1.0)
	// MEDIUM 折减 0.7
	if !medium.Equal(high.Mul(decimal.NewFromFloat(0.7))) {
		t.Fatalf("medium=%s high=%s", medium, high)
	}
}

func TestBetSizeNeverExceedsBalance(t *testing.T) {
	m := activeManager(t, Config{
		InitialBalance: decimal.NewFromInt(50),
		BaseUnit:       decimal.NewFromInt(10),
		MinBet:         decimal.NewFromInt(100), // 下限高于余额
		MaxBet:         decimal.NewFromInt(500),
	})
	got := m.BetSize(7, domain.TierHigh, 0.9, 1.0)
	if got.GreaterThan(decimal.NewFromInt(50)) {
		t.Fatalf("bet %s exceeds balance", got)
	}
}

func TestRecordResultWinAccounting(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopWinPct: 0.5})
	profit, err := m.RecordResult(decimal.NewFromInt(20), domain.OutcomeBanker, domain.OutcomeBanker, domain.DefaultPayouts())
	if err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	// 庄赢抽水：20 × 0.95 = 19
	if !profit.Equal(decimal.NewFromInt(19)) {
		t.Fatalf("profit got=%s want=19", profit)
	}
	a := m.Assessment()
	if !a.Balance.Equal(decimal.NewFromInt(1019)) {
		t.Fatalf("balance got=%s want=1019", a.Balance)
	}
	if a.Wins != 1 || a.TotalBets != 1 || a.WinStreak != 1 || a.CurrentStreak != 1 {
		t.Fatalf("counters wrong: %+v", a)
	}
}

func TestRecordResultLossAccounting(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000)})
	profit, err := m.RecordResult(decimal.NewFromInt(20), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts())
	if err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	if !profit.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("profit got=%s want=-20", profit)
	}
	a := m.Assessment()
	if a.LossStreak != 1 || a.CurrentStreak != -1 || a.Wins != 0 {
		t.Fatalf("counters wrong: %+v", a)
	}
}

func TestRecordResultRejectsOverBet(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(100)})
	if _, err := m.RecordResult(decimal.NewFromInt(200), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != ErrBetExceedsBalance {
		t.Fatalf("expected ErrBetExceedsBalance, got %v", err)
	}
	if _, err := m.RecordResult(decimal.NewFromInt(-1), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err == nil {
		t.Fatalf("expected error for negative bet")
	}
	if _, err := m.RecordResult(decimal.NewFromInt(10), "X", domain.OutcomePlayer, domain.DefaultPayouts()); err == nil {
		t.Fatalf("expected error for invalid outcome")
	}
}

func TestStopLossTriggers(t *testing.T) {
	// 止损 5%：初始 1000，亏满 50 即停
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopLossPct: 0.05})
	if _, err := m.RecordResult(decimal.NewFromInt(50), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	a := m.Assessment()
	if a.State != domain.SessionStopped || a.StoppedReason != domain.StopSessionLoss {
		t.Fatalf("got state=%s reason=%s", a.State, a.StoppedReason)
	}
}

func TestStopWinTriggers(t *testing.T) {
	// 止盈 2%：初始 1000，赢满 20 即停
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopWinPct: 0.02})
	if _, err := m.RecordResult(decimal.NewFromInt(25), domain.OutcomePlayer, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	a := m.Assessment()
	if a.State != domain.SessionStopped || a.StoppedReason != domain.StopSessionWin {
		t.Fatalf("got state=%s reason=%s", a.State, a.StoppedReason)
	}
}

func TestStoppedIsMonotonicUntilReset(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopLossPct: 0.05})
	if _, err := m.RecordResult(decimal.NewFromInt(50), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	// STOPPED 单调：StartSession 不能重新激活
	m.StartSession()
	if m.State() != domain.SessionStopped {
		t.Fatalf("StartSession must not clear STOPPED, state=%s", m.State())
	}
	// 只有显式 Reset 才能清除
	m.Reset()
	if m.State() != domain.SessionInactive {
		t.Fatalf("Reset state got=%s want=INACTIVE", m.State())
	}
	m.StartSession()
	if m.State() != domain.SessionActive {
		t.Fatalf("post-reset StartSession state got=%s", m.State())
	}
}

func TestResetKeepsBalance(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopLossPct: 0.5})
	if _, err := m.RecordResult(decimal.NewFromInt(100), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	m.Reset()
	a := m.Assessment()
	// 重置清状态机与统计，不凭空恢复资金
	if !a.Balance.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("balance got=%s want=900", a.Balance)
	}
	if a.TotalBets != 0 || a.MaxDrawdown != 0 {
		t.Fatalf("stats not reset: %+v", a)
	}
}

func TestManualStop(t *testing.T) {
	m := activeManager(t, Config{})
	m.Stop()
	a := m.Assessment()
	if a.State != domain.SessionStopped || a.StoppedReason != domain.StopManual {
		t.Fatalf("got state=%s reason=%s", a.State, a.StoppedReason)
	}
}

func TestSessionTimeoutStops(t *testing.T) {
	m := activeManager(t, Config{
		InitialBalance: decimal.NewFromInt(1000),
		MaxSessionTime: time.Nanosecond,
		StopLossPct:    0.99,
		StopWinPct:     0.99,
	})
	time.Sleep(time.Millisecond)
	if _, err := m.RecordResult(decimal.NewFromInt(1), domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	a := m.Assessment()
	if a.StoppedReason != domain.StopSessionTimeout {
		t.Fatalf("reason got=%s want=SESSION_TIMEOUT", a.StoppedReason)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := activeManager(t, Config{InitialBalance: decimal.NewFromInt(1000), StopLossPct: 0.5})
	if _, err := m.RecordResult(decimal.NewFromInt(30), domain.OutcomePlayer, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
		t.Fatalf("RecordResult error: %v", err)
	}
	snap := m.Snapshot()

	fresh := newTestManager(t, Config{InitialBalance: decimal.NewFromInt(1000)})
	fresh.Restore(snap)
	a := fresh.Assessment()
	if !a.Balance.Equal(snap.Balance) || a.TotalBets != snap.TotalBets {
		t.Fatalf("restored assessment mismatch: %+v vs %+v", a, snap)
	}
}

// 属性：任何参数下凯利分数都在 [0, FractionalKelly]，余额永不为负
func TestProperty_KellyBounded(t *testing.T) {
	m := newTestManager(t, Config{})
	property := func(p, b float64) bool {
		if math.IsNaN(p) || math.IsNaN(b) || math.IsInf(p, 0) || math.IsInf(b, 0) {
			return true // 非有限输入跳过
		}
		f := m.KellyFraction(p, b)
		return f >= 0 && f <= 0.25+1e-9
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("kelly bound violated: %v", err)
	}
}

func TestProperty_BalanceNeverNegative(t *testing.T) {
	m := activeManager(t, Config{
		InitialBalance:    decimal.NewFromInt(100),
		StopLossPct:       0.99,
		EmergencyDrawdown: 0.99,
	})
	// 反复以当前余额的一半下注并输掉：余额必须始终 >= 0
	for i := 0; i < 30; i++ {
		bet := m.Assessment().Balance.Div(decimal.NewFromInt(2)).Round(2)
		if bet.Sign() <= 0 {
			break
		}
		if _, err := m.RecordResult(bet, domain.OutcomeBanker, domain.OutcomePlayer, domain.DefaultPayouts()); err != nil {
			t.Fatalf("RecordResult error: %v", err)
		}
		if m.Assessment().Balance.Sign() < 0 {
			t.Fatalf("balance went negative at step %d", i)
		}
		if m.State() != domain.SessionActive {
			break
		}
	}
}
