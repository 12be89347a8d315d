package server

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

type signalRow struct {
	ID            string  `json:"id"`
	Timestamp     string  `json:"ts"`
	Recommended   string  `json:"recommended"`
	Tier          string  `json:"tier"`
	Confidence    float64 `json:"confidence"`
	BetUnits      int     `json:"bet_units"`
	BetSize       string  `json:"bet_size"`
	ExpectedValue float64 `json:"expected_value"`
	Risk          string  `json:"risk"`
	Reasoning     string  `json:"reasoning"`
	Suppressed    bool    `json:"suppressed"`
}

func (s *Server) handleSignalsList(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := s.db.QueryContext(c.Request.Context(), `
SELECT id, ts, COALESCE(recommended,''), tier, confidence, bet_units, bet_size,
       expected_value, COALESCE(risk,''), COALESCE(reasoning,''), suppressed
FROM signals ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db list signals: "+err.Error())
		return
	}
	defer rows.Close()

	out := make([]signalRow, 0, limit)
	for rows.Next() {
		var r signalRow
		var suppressed int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Recommended, &r.Tier, &r.Confidence,
			&r.BetUnits, &r.BetSize, &r.ExpectedValue, &r.Risk, &r.Reasoning, &suppressed); err != nil {
			writeError(c, http.StatusInternalServerError, "scan signal: "+err.Error())
			return
		}
		r.Suppressed = suppressed != 0
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}

func (s *Server) handleSignalGet(c *gin.Context) {
	id := c.Param("signalID")
	var r signalRow
	var suppressed int
	err := s.db.QueryRowContext(c.Request.Context(), `
SELECT id, ts, COALESCE(recommended,''), tier, confidence, bet_units, bet_size,
       expected_value, COALESCE(risk,''), COALESCE(reasoning,''), suppressed
FROM signals WHERE id = ?`, id).Scan(&r.ID, &r.Timestamp, &r.Recommended, &r.Tier,
		&r.Confidence, &r.BetUnits, &r.BetSize, &r.ExpectedValue, &r.Risk, &r.Reasoning, &suppressed)
	if err == sql.ErrNoRows {
		writeError(c, http.StatusNotFound, "signal not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db get signal: "+err.Error())
		return
	}
	r.Suppressed = suppressed != 0
	c.JSON(http.StatusOK, r)
}

type settlementRow struct {
	Timestamp string `json:"ts"`
	Predicted string `json:"predicted"`
	Actual    string `json:"actual"`
	Won       bool   `json:"won"`
	BetSize   string `json:"bet_size"`
	Profit    string `json:"profit"`
	Balance   string `json:"balance"`
}

func (s *Server) handleSettlementsList(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := s.db.QueryContext(c.Request.Context(), `
SELECT ts, predicted, actual, won, bet_size, profit, balance
FROM settlements ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db list settlements: "+err.Error())
		return
	}
	defer rows.Close()

	out := make([]settlementRow, 0, limit)
	for rows.Next() {
		var r settlementRow
		var won int
		if err := rows.Scan(&r.Timestamp, &r.Predicted, &r.Actual, &won, &r.BetSize, &r.Profit, &r.Balance); err != nil {
			writeError(c, http.StatusInternalServerError, "scan settlement: "+err.Error())
			return
		}
		r.Won = won != 0
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"settlements": out})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *Server) handleBankroll(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Assessment())
}

func (s *Server) handleSessionStart(c *gin.Context) {
	s.engine.StartSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"state": s.risk.State()})
}

func (s *Server) handleSessionEnd(c *gin.Context) {
	s.engine.EndSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"state": s.risk.State()})
}

func (s *Server) handleSessionReset(c *gin.Context) {
	s.risk.Reset()
	s.recordTransition(c, domain.SessionStopped, domain.SessionInactive, domain.StopNone)
	c.JSON(http.StatusOK, gin.H{"state": s.risk.State()})
}

func (s *Server) recordTransition(c *gin.Context, from, to domain.SessionState, reason domain.StopReason) {
	_, err := s.db.ExecContext(c.Request.Context(), `
INSERT INTO session_transitions (ts, from_state, to_state, reason) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), string(from), string(to), string(reason))
	if err != nil {
		// 落库失败不影响控制操作本身
		_ = err
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
