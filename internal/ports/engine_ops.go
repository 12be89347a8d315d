package ports

import (
	"context"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// Canonical engine ports shared across layers. The orchestrator composes these
// through explicit dependency injection; there are no module-level singletons.

// SimulationResult is the aggregated output of a Monte Carlo run.
type SimulationResult struct {
	Probabilities domain.Distribution
	Intervals     map[domain.Outcome]ConfidenceInterval
	ExpectedValue map[domain.Outcome]float64
	HandsSimulated int
}

// ConfidenceInterval is a 95% normal-approximation interval per outcome.
type ConfidenceInterval struct {
	Mean   float64
	StdDev float64
	Radius float64
}

// Simulator runs a Monte Carlo shoe simulation. Blocking; callers requiring
// bounded latency must wrap it with a timeout and fall back to a cached
// distribution on expiry.
type Simulator interface {
	Simulate(ctx context.Context, observed domain.CardCounts, payouts domain.PayoutTable) (*SimulationResult, error)
}

// PatternReport summarizes pattern detectors over an outcome history.
type PatternReport struct {
	StreakLength   int
	StreakSymbol   domain.Outcome
	StreakBreakProb float64
	ChopIntensity  float64
	PatternStrength float64
	AnomalyScore   float64
}

// PatternAnalyzer computes pattern statistics over an outcome sequence.
type PatternAnalyzer interface {
	Analyze(history []domain.Outcome) (PatternReport, error)
}

// PosteriorUpdater combines the fixed prior with pattern evidence.
type PosteriorUpdater interface {
	Posterior(report PatternReport, recent []domain.Outcome) (domain.Distribution, error)
}

// Fuser combines the simulator distribution, the Bayesian posterior and an
// optional external model distribution into one.
type Fuser interface {
	Fuse(sim, posterior domain.Distribution, model *domain.Distribution) (domain.Distribution, error)
}

// Classification is the confidence classifier output.
type Classification struct {
	Tier     domain.ConfidenceTier
	Score    float64
	BetUnits int
}

// Classifier maps the fused distribution plus pattern strength and data volume
// to a confidence tier and unit multiplier. Pure and deterministic.
type Classifier interface {
	Classify(fused domain.Distribution, patternStrength float64, historyLen int, modelAgreement float64) Classification
}

// RiskManager is the bankroll state machine port.
type RiskManager interface {
	StartSession()
	EndSession()
	Reset()
	State() domain.SessionState
	KellyFraction(winProb, netOdds float64) float64
	BetSize(units int, tier domain.ConfidenceTier, winProb, netOdds float64) decimal.Decimal
	RecordResult(betSize decimal.Decimal, predicted, actual domain.Outcome, payouts domain.PayoutTable) (decimal.Decimal, error)
	Assessment() domain.RiskAssessment
}
