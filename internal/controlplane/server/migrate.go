package server

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  ts TEXT NOT NULL,
  recommended TEXT,
  tier TEXT NOT NULL,
  confidence REAL NOT NULL,
  bet_units INTEGER NOT NULL,
  bet_size TEXT NOT NULL,
  expected_value REAL NOT NULL,
  risk TEXT,
  reasoning TEXT,
  suppressed INTEGER NOT NULL DEFAULT 0,
  sim_banker REAL, sim_player REAL, sim_tie REAL,
  post_banker REAL, post_player REAL, post_tie REAL,
  fused_banker REAL, fused_player REAL, fused_tie REAL
);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS settlements (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  predicted TEXT NOT NULL,
  actual TEXT NOT NULL,
  won INTEGER NOT NULL,
  bet_size TEXT NOT NULL,
  profit TEXT NOT NULL,
  balance TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_ts ON settlements(ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS session_transitions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  from_state TEXT NOT NULL,
  to_state TEXT NOT NULL,
  reason TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_session_transitions_ts ON session_transitions(ts DESC);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}
	return nil
}
