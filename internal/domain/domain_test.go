package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOutcome(t *testing.T) {
	for _, s := range []string{"B", "P", "T"} {
		o, err := ParseOutcome(s)
		if err != nil {
			t.Fatalf("ParseOutcome(%q) error: %v", s, err)
		}
		if string(o) != s {
			t.Fatalf("ParseOutcome(%q) got=%q", s, o)
		}
	}
	if _, err := ParseOutcome("X"); err == nil {
		t.Fatalf("expected error for invalid symbol")
	}
	if _, err := ParseOutcome("b"); err == nil {
		t.Fatalf("expected error for lowercase symbol")
	}
}

func TestBaseDistributionValid(t *testing.T) {
	d := BaseDistribution()
	if err := d.Validate(); err != nil {
		t.Fatalf("base distribution invalid: %v", err)
	}
	// 庄的理论占比应最高
	if d.ArgMax() != OutcomeBanker {
		t.Fatalf("ArgMax got=%s want=B", d.ArgMax())
	}
}

func TestDistributionNormalize(t *testing.T) {
	d := Distribution{Banker: 2, Player: 1, Tie: 1}.Normalize()
	if math.Abs(d.Sum()-1.0) > ProbTolerance {
		t.Fatalf("normalized sum=%f", d.Sum())
	}
	if math.Abs(d.Banker-0.5) > ProbTolerance {
		t.Fatalf("Banker got=%f want=0.5", d.Banker)
	}
}

func TestDistributionValidateRejects(t *testing.T) {
	bad := []Distribution{
		{Banker: 0.5, Player: 0.4, Tie: 0.2},  // 和 > 1
		{Banker: -0.1, Player: 0.6, Tie: 0.5}, // 负概率
	}
	for i, d := range bad {
		if err := d.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestOutcomeHistoryRing(t *testing.T) {
	h := NewOutcomeHistory(3)
	for _, o := range []Outcome{OutcomeBanker, OutcomePlayer, OutcomeTie, OutcomeBanker} {
		if err := h.Append(o); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
	// 容量 3：最旧的 B 被淘汰
	if h.Len() != 3 {
		t.Fatalf("Len got=%d want=3", h.Len())
	}
	items := h.Items()
	want := []Outcome{OutcomePlayer, OutcomeTie, OutcomeBanker}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items[%d] got=%s want=%s", i, items[i], want[i])
		}
	}
	if last, ok := h.Last(); !ok || last != OutcomeBanker {
		t.Fatalf("Last got=%s ok=%v", last, ok)
	}
	tail := h.Tail(2)
	if len(tail) != 2 || tail[0] != OutcomeTie {
		t.Fatalf("Tail(2) got=%v", tail)
	}
}

func TestOutcomeHistoryRejectsInvalid(t *testing.T) {
	h := NewOutcomeHistory(10)
	if err := h.Append(Outcome("X")); err == nil {
		t.Fatalf("expected error for invalid outcome")
	}
}

func TestPayoutTableOdds(t *testing.T) {
	p := DefaultPayouts()
	if err := p.Validate(); err != nil {
		t.Fatalf("default payouts invalid: %v", err)
	}
	// 抽水台规：庄 0.95:1 即小数赔率 1.95
	if got := p.Odds(OutcomeBanker); math.Abs(got-1.95) > 1e-9 {
		t.Fatalf("banker odds got=%f", got)
	}
	if got := p.Odds(OutcomeTie); math.Abs(got-9.0) > 1e-9 {
		t.Fatalf("tie odds got=%f", got)
	}
}

func TestPayoutTableValidateRejects(t *testing.T) {
	// 赔率 <= 1 意味着赢了也亏，必须拒绝
	p := PayoutTable{Banker: 0.95, Player: 2.0, Tie: 9.0}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for odds <= 1")
	}
}

func TestCardCountsValidate(t *testing.T) {
	c := CardCounts{"A": 3, "K": 2}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if c.Total() != 5 {
		t.Fatalf("Total got=%d want=5", c.Total())
	}
	if err := (CardCounts{"Z": 1}).Validate(); err == nil {
		t.Fatalf("expected error for invalid rank")
	}
	if err := (CardCounts{"A": -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative count")
	}
}

func TestRankPoints(t *testing.T) {
	cases := map[Rank]int{"A": 1, "9": 9, "10": 0, "J": 0, "Q": 0, "K": 0}
	for r, want := range cases {
		if got := r.Points(); got != want {
			t.Fatalf("Points(%s) got=%d want=%d", r, got, want)
		}
	}
}

func TestBankrollDrawdown(t *testing.T) {
	b := NewBankrollState(decimal.NewFromInt(1000))
	if b.Drawdown() != 0 {
		t.Fatalf("initial drawdown got=%f", b.Drawdown())
	}
	b.PeakBalance = decimal.NewFromInt(1200)
	b.Balance = decimal.NewFromInt(960)
	// (1200-960)/1200 = 0.2
	if got := b.Drawdown(); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("drawdown got=%f want=0.2", got)
	}
}

func TestConfidenceTierRank(t *testing.T) {
	if TierHigh.Rank() <= TierMedium.Rank() || TierMedium.Rank() <= TierLow.Rank() {
		t.Fatalf("tier ranks not ordered: H=%d M=%d L=%d",
			TierHigh.Rank(), TierMedium.Rank(), TierLow.Rank())
	}
}

func TestSignalHistoryRecent(t *testing.T) {
	h := NewSignalHistory(2)
	h.Append(Signal{ID: "a"})
	h.Append(Signal{ID: "b"})
	h.Append(Signal{ID: "c"})
	if h.Len() != 2 {
		t.Fatalf("Len got=%d want=2", h.Len())
	}
	all := h.Recent(0) // n<=0 返回全部
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("Recent(0) got=%v", all)
	}
	one := h.Recent(1)
	if len(one) != 1 || one[0].ID != "c" {
		t.Fatalf("Recent(1) got=%v", one)
	}
}
