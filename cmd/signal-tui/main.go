package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
)

var (
	// 样式定义
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	bankerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("4")) // 蓝色

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	highStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11")) // 黄色（高置信）
)

// signalView 信号列表行（对应控制面 /api/signals）
type signalView struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"ts"`
	Recommended string  `json:"recommended"`
	Tier        string  `json:"tier"`
	Confidence  float64 `json:"confidence"`
	BetUnits    int     `json:"bet_units"`
	BetSize     string  `json:"bet_size"`
	Suppressed  bool    `json:"suppressed"`
}

// statsView 管线统计（对应控制面 /api/stats）
type statsView struct {
	OutcomesSeen      int     `json:"outcomes_seen"`
	SignalsEmitted    int     `json:"signals_emitted"`
	SignalsSuppressed int     `json:"signals_suppressed"`
	Evaluated         int     `json:"evaluated"`
	Correct           int     `json:"correct"`
	HitRate           float64 `json:"hit_rate"`
}

// bankrollView 资金视图（对应控制面 /api/bankroll）
type bankrollView struct {
	Balance       string  `json:"balance"`
	SessionPnL    string  `json:"session_pnl"`
	Drawdown      float64 `json:"drawdown"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	Volatility    float64 `json:"volatility"`
	WinStreak     int     `json:"win_streak"`
	LossStreak    int     `json:"loss_streak"`
	TotalBets     int     `json:"total_bets"`
	Wins          int     `json:"wins"`
	State         string  `json:"state"`
	StoppedReason string  `json:"stopped_reason"`
}

type model struct {
	baseURL string
	client  *resty.Client

	stats    statsView
	bankroll bankrollView
	signals  []signalView

	connected bool
	lastFetch time.Time
	err       error
}

type tickMsg time.Time

// dataMsg 一次轮询取回的全部数据
type dataMsg struct {
	stats    statsView
	bankroll bankrollView
	signals  []signalView
}

// sessionMsg 会话控制操作的结果
type sessionMsg struct {
	state string
	err   error
}

func initialModel(baseURL string) model {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	return model{baseURL: baseURL, client: c}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), fetchCmd(m.client))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			return m, sessionCmd(m.client, "start")
		case "e":
			return m, sessionCmd(m.client, "end")
		case "r":
			return m, sessionCmd(m.client, "reset")
		}

	case tickMsg:
		return m, tea.Batch(tickCmd(), fetchCmd(m.client))

	case dataMsg:
		m.stats = msg.stats
		m.bankroll = msg.bankroll
		m.signals = msg.signals
		m.connected = true
		m.lastFetch = time.Now()
		m.err = nil
		return m, nil

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.bankroll.State = msg.state
		}
		return m, nil

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	status := "连接中..."
	if m.connected {
		status = fmt.Sprintf("更新于 %s前", time.Since(m.lastFetch).Round(time.Second))
	}
	if m.err != nil {
		status = fmt.Sprintf("错误: %v", m.err)
	}
	header := headerStyle.Render(fmt.Sprintf("信号引擎 %s | 会话: %s | %s",
		m.baseURL, stateLabel(m.bankroll.State, m.bankroll.StoppedReason), status))
	s.WriteString(header)
	s.WriteString("\n\n")

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderBankroll(), "  ", m.renderStats())
	s.WriteString(panels)
	s.WriteString("\n\n")

	s.WriteString(m.renderSignals())
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render("s 开始会话  e 结束会话  r 重置  q 退出"))

	return s.String()
}

func (m model) renderBankroll() string {
	var s strings.Builder
	s.WriteString("资金\n\n")
	s.WriteString(fmt.Sprintf("余额:     %s\n", m.bankroll.Balance))
	s.WriteString(fmt.Sprintf("会话盈亏: %s\n", m.bankroll.SessionPnL))
	s.WriteString(fmt.Sprintf("回撤:     %.1f%% (峰值 %.1f%%)\n", m.bankroll.Drawdown*100, m.bankroll.MaxDrawdown*100))
	s.WriteString(fmt.Sprintf("波动:     %.2f\n", m.bankroll.Volatility))
	s.WriteString(fmt.Sprintf("连胜/连败: %d / %d\n", m.bankroll.WinStreak, m.bankroll.LossStreak))
	if m.bankroll.TotalBets > 0 {
		s.WriteString(fmt.Sprintf("命中:     %d/%d (%.1f%%)\n",
			m.bankroll.Wins, m.bankroll.TotalBets,
			float64(m.bankroll.Wins)/float64(m.bankroll.TotalBets)*100))
	} else {
		s.WriteString("命中:     --\n")
	}
	return borderStyle.Render(s.String())
}

func (m model) renderStats() string {
	var s strings.Builder
	s.WriteString("管线\n\n")
	s.WriteString(fmt.Sprintf("已接收结果: %d\n", m.stats.OutcomesSeen))
	s.WriteString(fmt.Sprintf("已发信号:   %d\n", m.stats.SignalsEmitted))
	s.WriteString(fmt.Sprintf("已抑制:     %d\n", m.stats.SignalsSuppressed))
	if m.stats.Evaluated > 0 {
		s.WriteString(fmt.Sprintf("信号命中率: %.1f%% (%d/%d)\n",
			m.stats.HitRate*100, m.stats.Correct, m.stats.Evaluated))
	} else {
		s.WriteString("信号命中率: --\n")
	}
	return borderStyle.Render(s.String())
}

func (m model) renderSignals() string {
	var s strings.Builder
	s.WriteString("最近信号\n\n")
	if len(m.signals) == 0 {
		s.WriteString(dimStyle.Render("  暂无信号"))
		return borderStyle.Render(s.String())
	}
	for i, sig := range m.signals {
		if i >= 10 {
			break
		}
		line := fmt.Sprintf("%s  %s  %-6s  %.1f%%  %d 单位  %s",
			shortTime(sig.Timestamp), outcomeLabel(sig.Recommended),
			sig.Tier, sig.Confidence*100, sig.BetUnits, sig.BetSize)
		if sig.Suppressed {
			line = dimStyle.Render(line + "  (抑制)")
		} else if sig.Tier == "HIGH" {
			line = highStyle.Render(line)
		}
		s.WriteString("  " + line + "\n")
	}
	return borderStyle.Render(s.String())
}

func stateLabel(state, reason string) string {
	if state == "" {
		return "--"
	}
	if state == "STOPPED" && reason != "" {
		return fmt.Sprintf("%s (%s)", state, reason)
	}
	return state
}

func outcomeLabel(o string) string {
	switch o {
	case "B":
		return bankerStyle.Render("庄")
	case "P":
		return playerStyle.Render("闲")
	case "T":
		return tieStyle.Render("和")
	}
	return "--"
}

func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(c *resty.Client) tea.Cmd {
	return func() tea.Msg {
		var d dataMsg

		resp, err := c.R().Get("/api/stats")
		if err != nil {
			return fmt.Errorf("获取统计失败: %w", err)
		}
		if err := json.Unmarshal(resp.Body(), &d.stats); err != nil {
			return fmt.Errorf("解析统计失败: %w", err)
		}

		resp, err = c.R().Get("/api/bankroll")
		if err != nil {
			return fmt.Errorf("获取资金失败: %w", err)
		}
		if err := json.Unmarshal(resp.Body(), &d.bankroll); err != nil {
			return fmt.Errorf("解析资金失败: %w", err)
		}

		resp, err = c.R().Get("/api/signals?limit=10")
		if err != nil {
			return fmt.Errorf("获取信号失败: %w", err)
		}
		var wrapper struct {
			Signals []signalView `json:"signals"`
		}
		if err := json.Unmarshal(resp.Body(), &wrapper); err != nil {
			return fmt.Errorf("解析信号失败: %w", err)
		}
		d.signals = wrapper.Signals

		return d
	}
}

func sessionCmd(c *resty.Client, action string) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.R().Post("/api/session/" + action)
		if err != nil {
			return sessionMsg{err: err}
		}
		var out struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return sessionMsg{err: err}
		}
		return sessionMsg{state: out.State}
	}
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8787", "控制面地址")
	flag.Parse()

	p := tea.NewProgram(initialModel(*addr))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI 运行失败: %v\n", err)
		os.Exit(1)
	}
}
