package server

import (
	"context"
	"time"

	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/pkg/errors"
)

// 编排器事件落库。Server 作为 ports.SignalHandler /
// BankrollEventHandler / SessionEventHandler 挂载到编排器上。

// OnSignal 信号落库
func (s *Server) OnSignal(ctx context.Context, e events.SignalEmittedEvent) error {
	sig := e.Signal
	_, err := s.db.ExecContext(ctx, `
INSERT INTO signals (
  id, ts, recommended, tier, confidence, bet_units, bet_size, expected_value,
  risk, reasoning, suppressed,
  sim_banker, sim_player, sim_tie,
  post_banker, post_player, post_tie,
  fused_banker, fused_player, fused_tie
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID,
		sig.Timestamp.UTC().Format(time.RFC3339Nano),
		string(sig.Recommended),
		string(sig.Tier),
		sig.ConfidenceScore,
		sig.BetUnits,
		sig.BetSize.String(),
		sig.ExpectedValue,
		string(sig.Risk),
		sig.Reasoning,
		boolToInt(sig.Suppressed),
		sig.SimulatorProbs.Banker, sig.SimulatorProbs.Player, sig.SimulatorProbs.Tie,
		sig.PosteriorProbs.Banker, sig.PosteriorProbs.Player, sig.PosteriorProbs.Tie,
		sig.FusedProbs.Banker, sig.FusedProbs.Player, sig.FusedProbs.Tie,
	)
	return errors.Wrap(err, "insert signal")
}

// OnBankrollChanged 结算落库
func (s *Server) OnBankrollChanged(ctx context.Context, e events.BankrollChangedEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settlements (ts, predicted, actual, won, bet_size, profit, balance)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Predicted),
		string(e.Actual),
		boolToInt(e.Won),
		e.BetSize.String(),
		e.Profit.String(),
		e.Balance.String(),
	)
	return errors.Wrap(err, "insert settlement")
}

// OnSessionStateChanged 会话迁移落库
func (s *Server) OnSessionStateChanged(ctx context.Context, e events.SessionStateChangedEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session_transitions (ts, from_state, to_state, reason) VALUES (?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.From),
		string(e.To),
		string(e.Reason),
	)
	return errors.Wrap(err, "insert session transition")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
