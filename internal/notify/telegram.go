package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Config Telegram 推送配置
type Config struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	// MinTier 低于该等级的信号不推送，默认 MEDIUM
	MinTier domain.ConfidenceTier `yaml:"min_tier"`
}

// Telegram 信号推送器，实现 ports.SignalHandler / BankrollEventHandler /
// SessionEventHandler。推送失败只记日志，不阻塞管线。
type Telegram struct {
	cfg    Config
	client *resty.Client
}

// NewTelegram 创建 Telegram 推送器
func NewTelegram(cfg Config) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	if cfg.MinTier == "" {
		cfg.MinTier = domain.TierMedium
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + cfg.BotToken).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时按 Retry-After 头等待
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Telegram{cfg: cfg, client: client}, nil
}

// OnSignal 推送信号消息
func (t *Telegram) OnSignal(ctx context.Context, e events.SignalEmittedEvent) error {
	s := e.Signal
	if s.Suppressed {
		return nil
	}
	if s.Tier.Rank() < t.cfg.MinTier.Rank() {
		logger.Debugf("信号等级 %s 低于推送阈值 %s，跳过", s.Tier, t.cfg.MinTier)
		return nil
	}
	return t.send(ctx, formatSignal(s))
}

// OnBankrollChanged 推送结算消息
func (t *Telegram) OnBankrollChanged(ctx context.Context, e events.BankrollChangedEvent) error {
	return t.send(ctx, formatSettlement(e))
}

// OnSessionStateChanged 推送会话状态迁移
func (t *Telegram) OnSessionStateChanged(ctx context.Context, e events.SessionStateChangedEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ 会话状态: %s → %s", e.From, e.To)
	if e.Reason != domain.StopNone {
		fmt.Fprintf(&b, "\n原因: %s", e.Reason)
	}
	return t.send(ctx, b.String())
}

// send 调用 sendMessage API
func (t *Telegram) send(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.cfg.ChatID,
			"text":    text,
		}).
		Post("/sendMessage")
	if err != nil {
		logger.Errorf("Telegram 推送失败: %v", err)
		return err
	}
	if !resp.IsSuccess() {
		logger.Errorf("Telegram 推送非 2xx: %s %s", resp.Status(), resp.Body())
		return errors.Errorf("telegram sendMessage: %s", resp.Status())
	}
	return nil
}

// outcomeLabel 结果的展示名称
func outcomeLabel(o domain.Outcome) string {
	switch o {
	case domain.OutcomeBanker:
		return "庄 (Banker)"
	case domain.OutcomePlayer:
		return "闲 (Player)"
	case domain.OutcomeTie:
		return "和 (Tie)"
	}
	return string(o)
}

func tierEmoji(t domain.ConfidenceTier) string {
	switch t {
	case domain.TierHigh:
		return "🔥"
	case domain.TierMedium:
		return "⭐"
	}
	return "ℹ️"
}

// formatSignal 信号消息模板
func formatSignal(s domain.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 信号 [%s]\n", tierEmoji(s.Tier), s.Tier)
	fmt.Fprintf(&b, "推荐: %s\n", outcomeLabel(s.Recommended))
	fmt.Fprintf(&b, "置信: %.1f%%\n", s.ConfidenceScore*100)
	fmt.Fprintf(&b, "注量: %d 单位 (%s)\n", s.BetUnits, s.BetSize.StringFixed(2))
	fmt.Fprintf(&b, "期望值: %+.4f\n", s.ExpectedValue)
	fmt.Fprintf(&b, "概率: 庄 %.1f%% / 闲 %.1f%% / 和 %.1f%%",
		s.FusedProbs.Banker*100, s.FusedProbs.Player*100, s.FusedProbs.Tie*100)
	return b.String()
}

// formatSettlement 结算消息模板
func formatSettlement(e events.BankrollChangedEvent) string {
	icon := "✅"
	word := "命中"
	if !e.Won {
		icon = "❌"
		word = "未中"
	}
	return fmt.Sprintf("%s %s: 预测 %s 实际 %s\n盈亏 %s, 余额 %s",
		icon, word, outcomeLabel(e.Predicted), outcomeLabel(e.Actual),
		e.Profit.StringFixed(2), e.Balance.StringFixed(2))
}
