package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Midan14/baccarat-bot/internal/domain"
)

// SimulationConfig 蒙特卡洛模拟配置
type SimulationConfig struct {
	NumSimulations int           `yaml:"num_simulations" json:"num_simulations"` // 默认 50000
	NumDecks       int           `yaml:"num_decks" json:"num_decks"`             // 默认 8
	Workers        int           `yaml:"workers" json:"workers"`                 // 默认 GOMAXPROCS
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`                 // 默认 3s
	Seed           int64         `yaml:"seed" json:"seed"`                       // 0 表示按时间播种
}

// SignalConfig 信号配置
type SignalConfig struct {
	Every           int     `yaml:"every" json:"every"`                       // 每 k 局一次信号，默认 7
	HistoryCapacity int     `yaml:"history_capacity" json:"history_capacity"` // 默认 100
	Payouts         Payouts `yaml:"payouts" json:"payouts"`
}

// Payouts 赔付表（小数赔率）
type Payouts struct {
	Banker float64 `yaml:"banker" json:"banker"`
	Player float64 `yaml:"player" json:"player"`
	Tie    float64 `yaml:"tie" json:"tie"`
}

// RiskConfig 风控配置
type RiskConfig struct {
	InitialBalance    float64 `yaml:"initial_balance" json:"initial_balance"`       // 默认 1000
	BaseUnit          float64 `yaml:"base_unit" json:"base_unit"`                   // 默认 10
	StopLossPct       float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`           // 默认 0.05
	StopWinPct        float64 `yaml:"stop_win_pct" json:"stop_win_pct"`             // 默认 0.02
	MaxBetPct         float64 `yaml:"max_bet_pct" json:"max_bet_pct"`               // 默认 0.05
	EmergencyDrawdown float64 `yaml:"emergency_drawdown" json:"emergency_drawdown"` // 默认 0.20
	MaxSessionMinutes int     `yaml:"max_session_minutes" json:"max_session_minutes"`
}

// FeedConfig 结果源配置
type FeedConfig struct {
	Mode  string `yaml:"mode" json:"mode"`   // "websocket" | "demo"
	URL   string `yaml:"url" json:"url"`     // websocket 模式的端点
	Table string `yaml:"table" json:"table"` // 台桌标识
}

// TelegramConfig Telegram 推送配置
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
	MinTier  string `yaml:"min_tier" json:"min_tier"` // 默认 MEDIUM
}

// ControlPlaneConfig 控制面配置
type ControlPlaneConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`       // 默认 :8787
	DBPath  string `yaml:"db_path" json:"db_path"` // 默认 data/controlplane.db
}

// Config 应用配置
type Config struct {
	Simulation   SimulationConfig   `yaml:"simulation" json:"simulation"`
	Signal       SignalConfig       `yaml:"signal" json:"signal"`
	Risk         RiskConfig         `yaml:"risk" json:"risk"`
	Feed         FeedConfig         `yaml:"feed" json:"feed"`
	Telegram     TelegramConfig     `yaml:"telegram" json:"telegram"`
	ControlPlane ControlPlaneConfig `yaml:"controlplane" json:"controlplane"`

	LogLevel       string `yaml:"log_level" json:"log_level"`
	LogFile        string `yaml:"log_file" json:"log_file"`
	LogBySession   bool   `yaml:"log_by_session" json:"log_by_session"`
	DataDir        string `yaml:"data_dir" json:"data_dir"`
	PersistenceDir string `yaml:"persistence_dir" json:"persistence_dir"`
	ProxyURL       string `yaml:"proxy_url" json:"proxy_url"`
	DryRun         bool   `yaml:"dry_run" json:"dry_run"` // 只出信号，不记账
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置。
// 优先级：配置文件 > 环境变量 > 默认值。
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	cfg := defaults()

	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	applyEnv(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	// 设置代理环境变量（供 HTTP/WebSocket 客户端使用）
	if cfg.ProxyURL != "" {
		os.Setenv("HTTP_PROXY", cfg.ProxyURL)
		os.Setenv("HTTPS_PROXY", cfg.ProxyURL)
		os.Setenv("http_proxy", cfg.ProxyURL)
		os.Setenv("https_proxy", cfg.ProxyURL)
	}

	globalConfig = cfg
	configFilePath = filePath
	return cfg, nil
}

// Get 获取全局配置（如果已加载）
func Get() *Config {
	return globalConfig
}

func defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			NumSimulations: 50000,
			NumDecks:       8,
			Timeout:        3 * time.Second,
		},
		Signal: SignalConfig{
			Every:           7,
			HistoryCapacity: 100,
			Payouts:         Payouts{Banker: 1.95, Player: 2.0, Tie: 9.0},
		},
		Risk: RiskConfig{
			InitialBalance:    1000,
			BaseUnit:          10,
			StopLossPct:       0.05,
			StopWinPct:        0.02,
			MaxBetPct:         0.05,
			EmergencyDrawdown: 0.20,
			MaxSessionMinutes: 120,
		},
		Feed: FeedConfig{
			Mode:  "demo",
			Table: "default",
		},
		ControlPlane: ControlPlaneConfig{
			Addr:   ":8787",
			DBPath: "data/controlplane.db",
		},
		LogLevel:       "info",
		LogFile:        "logs/combined.log",
		LogBySession:   true,
		DataDir:        "data",
		PersistenceDir: "data/persistence",
	}
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

// applyEnv 用环境变量补齐未在配置文件中设置的值
func applyEnv(cfg *Config) {
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = getEnv("FEED_URL", "")
	}
	if cfg.Feed.Table == "" || cfg.Feed.Table == "default" {
		if v := getEnv("FEED_TABLE", ""); v != "" {
			cfg.Feed.Table = v
		}
	}
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	}
	if cfg.Telegram.ChatID == "" {
		cfg.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", "")
	}
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = getEnv("PROXY_URL", "")
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" && cfg.LogLevel == "info" {
		cfg.LogLevel = v
	}
	if v := getEnv("DRY_RUN", ""); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}
	if cfg.Risk.InitialBalance == 1000 {
		cfg.Risk.InitialBalance = parseFloatEnv("RISK_INITIAL_BALANCE", cfg.Risk.InitialBalance)
	}
	if cfg.Signal.Every == 7 {
		cfg.Signal.Every = parseIntEnv("SIGNAL_EVERY", cfg.Signal.Every)
	}
}

func (c *Config) applyDefaults() {
	if c.Telegram.MinTier == "" {
		c.Telegram.MinTier = string(domain.TierMedium)
	}
	if c.ControlPlane.Addr == "" {
		c.ControlPlane.Addr = ":8787"
	}
	if c.ControlPlane.DBPath == "" {
		c.ControlPlane.DBPath = filepath.Join(c.DataDir, "controlplane.db")
	}
}

// PayoutTable 转为领域赔付表
func (p Payouts) PayoutTable() domain.PayoutTable {
	return domain.PayoutTable{Banker: p.Banker, Player: p.Player, Tie: p.Tie}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Simulation.NumSimulations <= 0 {
		return fmt.Errorf("simulation.num_simulations 必须大于 0")
	}
	if c.Simulation.NumDecks <= 0 {
		return fmt.Errorf("simulation.num_decks 必须大于 0")
	}
	if c.Signal.Every <= 0 {
		return fmt.Errorf("signal.every 必须大于 0")
	}
	if err := c.Signal.Payouts.PayoutTable().Validate(); err != nil {
		return fmt.Errorf("signal.payouts 无效: %w", err)
	}
	if c.Risk.InitialBalance <= 0 {
		return fmt.Errorf("risk.initial_balance 必须大于 0")
	}
	if c.Risk.BaseUnit <= 0 {
		return fmt.Errorf("risk.base_unit 必须大于 0")
	}
	if c.Risk.MaxBetPct <= 0 || c.Risk.MaxBetPct > 1 {
		return fmt.Errorf("risk.max_bet_pct 必须在 0 到 1 之间")
	}
	if c.Risk.EmergencyDrawdown <= 0 || c.Risk.EmergencyDrawdown > 1 {
		return fmt.Errorf("risk.emergency_drawdown 必须在 0 到 1 之间")
	}
	switch c.Feed.Mode {
	case "websocket":
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.mode 为 websocket 时 feed.url 不能为空")
		}
	case "demo", "":
		// demo 模式无需端点
	default:
		return fmt.Errorf("未知的 feed.mode: %s", c.Feed.Mode)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram 已启用但 bot_token/chat_id 未配置")
		}
		switch domain.ConfidenceTier(c.Telegram.MinTier) {
		case domain.TierLow, domain.TierMedium, domain.TierHigh:
		default:
			return fmt.Errorf("telegram.min_tier 无效: %s", c.Telegram.MinTier)
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseFloatEnv 解析浮点数环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
