package server

import (
	"context"
	"database/sql"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/orchestrator"
	"github.com/Midan14/baccarat-bot/internal/ports"
)

type Config struct {
	DBPath string
	Addr   string
}

// Engine 控制面需要的编排器视图
type Engine interface {
	Stats() orchestrator.Stats
	RecentSignals(n int) []domain.Signal
	Assessment() domain.RiskAssessment
	StartSession(ctx context.Context)
	EndSession(ctx context.Context)
}

// Server 控制面：HTTP 只读查询 + 会话控制，SQLite 落库信号与结算。
// 同时实现 ports.SignalHandler / BankrollEventHandler / SessionEventHandler，
// 作为编排器挂载的记录器。
type Server struct {
	cfg    Config
	db     *sql.DB
	engine Engine
	risk   ports.RiskManager
}

func New(cfg Config, engine Engine, risk ports.RiskManager) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	if engine == nil || risk == nil {
		return nil, errors.New("engine and risk manager are required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Server{cfg: cfg, db: db, engine: engine, risk: risk}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := r.Group("/api")

	signals := api.Group("/signals")
	signals.GET("/", s.handleSignalsList)
	signals.GET("/:signalID", s.handleSignalGet)

	api.GET("/settlements", s.handleSettlementsList)
	api.GET("/stats", s.handleStats)
	api.GET("/bankroll", s.handleBankroll)

	session := api.Group("/session")
	session.POST("/start", s.handleSessionStart)
	session.POST("/end", s.handleSessionEnd)
	session.POST("/reset", s.handleSessionReset)

	return r
}
