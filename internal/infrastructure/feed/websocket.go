package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
	"github.com/Midan14/baccarat-bot/internal/stream"
	"github.com/Midan14/baccarat-bot/pkg/logger"
	"github.com/Midan14/baccarat-bot/pkg/syncgroup"
	"github.com/gorilla/websocket"
)

// Config 结果源 WebSocket 配置
type Config struct {
	URL      string // 台桌结果推送端点
	Table    string // 订阅的台桌标识
	ProxyURL string // 代理（可选）
}

// OutcomeWebSocket 台桌结果 WebSocket 客户端（直接回调，信号驱动重连）
type OutcomeWebSocket struct {
	conn           *websocket.Conn
	cfg            Config
	mu             sync.RWMutex
	closed         bool
	reconnectC     chan struct{} // 信号驱动的重连 channel
	reconnectMu    sync.Mutex
	reconnectCount int
	reconnectDelay time.Duration
	lastPong       time.Time
	healthCheckMu  sync.RWMutex
	ctx            context.Context    // 保存 context，用于取消所有 goroutine
	cancel         context.CancelFunc // cancel 函数
	sg             *syncgroup.SyncGroup
	handlers       *stream.HandlerList // 结果回调处理器列表
}

// NewOutcomeWebSocket 创建结果 WebSocket 客户端
func NewOutcomeWebSocket(cfg Config) *OutcomeWebSocket {
	return &OutcomeWebSocket{
		cfg:            cfg,
		reconnectC:     make(chan struct{}, 1), // 缓冲1，避免阻塞
		reconnectDelay: 5 * time.Second,
		lastPong:       time.Now(),
		sg:             syncgroup.NewSyncGroup(),
		handlers:       stream.NewHandlerList(),
	}
}

// OnOutcome 注册结果回调
func (w *OutcomeWebSocket) OnOutcome(handler stream.OutcomeHandler) {
	w.handlers.Add(handler)
}

// Connect 连接到结果 WebSocket
func (w *OutcomeWebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	// 如果已有连接且未关闭，先关闭旧连接（避免重复连接）
	if w.conn != nil && !w.closed {
		w.conn.Close()
		w.conn = nil
		w.closed = true
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	// 配置代理：显式配置优先，其次环境变量
	proxyURL := w.cfg.ProxyURL
	if proxyURL == "" {
		proxyURL = getProxyFromEnv()
	}
	if proxyURL != "" {
		proxyParsed, err := url.Parse(proxyURL)
		if err != nil {
			logger.Warnf("解析代理 URL 失败: %v，将尝试直接连接", err)
		} else {
			dialer.Proxy = http.ProxyURL(proxyParsed)
			logger.Infof("使用代理连接结果 WebSocket: %s", proxyURL)
		}
	}

	// 重试连接（最多 3 次）
	var conn *websocket.Conn
	var err error
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			logger.Infof("重试连接结果 WebSocket (第 %d/%d 次)...", i+1, maxRetries)
			time.Sleep(time.Duration(i) * 2 * time.Second) // 递增延迟
		}

		conn, _, err = dialer.Dial(w.cfg.URL, nil)
		if err == nil {
			break
		}
		logger.Warnf("连接结果 WebSocket 失败 (尝试 %d/%d): %v", i+1, maxRetries, err)
	}

	if err != nil {
		return fmt.Errorf("连接结果 WebSocket 失败（已重试 %d 次）: %w", maxRetries, err)
	}

	w.conn = conn
	w.closed = false

	// 订阅台桌
	if err := w.subscribe(); err != nil {
		conn.Close()
		return fmt.Errorf("订阅台桌失败: %w", err)
	}

	// 启动重连器、消息处理、PING 循环和健康检查 goroutine
	w.sg.Add(func() {
		w.reconnector(w.ctx)
	})
	w.sg.Add(func() {
		w.handleMessages(w.ctx)
	})
	w.sg.Add(func() {
		w.startPingLoop(w.ctx)
	})
	w.sg.Add(func() {
		w.startHealthCheck(w.ctx)
	})
	w.sg.Run()

	w.reconnectMu.Lock()
	w.reconnectCount = 0
	w.reconnectMu.Unlock()

	logger.Infof("结果 WebSocket 已连接: table=%s", w.cfg.Table)
	return nil
}

// reconnector 重连器 goroutine（信号驱动）
func (w *OutcomeWebSocket) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.reconnectC:
			logger.Warnf("收到重连信号，冷却 %v...", w.reconnectDelay)
			time.Sleep(w.reconnectDelay)

			logger.Warnf("重新连接...")
			if err := w.Connect(ctx); err != nil {
				logger.Warnf("重连失败: %v，将再次尝试...", err)
				w.Reconnect() // 重新发送信号
			}
		}
	}
}

// Reconnect 触发重连（信号驱动）
func (w *OutcomeWebSocket) Reconnect() {
	select {
	case w.reconnectC <- struct{}{}:
		// 信号已发送
	default:
		// channel 已满，忽略（避免阻塞）
		logger.Debugf("重连信号 channel 已满，忽略")
	}
}

// startPingLoop 启动 PING 循环，保持连接活跃
func (w *OutcomeWebSocket) startPingLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("结果 WebSocket PING 循环收到取消信号，退出")
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			closed := w.closed
			w.mu.RUnlock()

			if closed || conn == nil {
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					logger.Warnf("发送 PING 失败: %v，将触发重连", err)
					w.Reconnect()
					return
				}
			}
		}
	}
}

// startHealthCheck 启动健康检查
func (w *OutcomeWebSocket) startHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("结果 WebSocket 健康检查收到取消信号，退出")
			return
		case <-ticker.C:
			w.healthCheckMu.RLock()
			lastPong := w.lastPong
			w.healthCheckMu.RUnlock()

			// 超过 60 秒没有收到 PONG，认为连接不健康
			if time.Since(lastPong) > 60*time.Second {
				select {
				case <-ctx.Done():
					return
				default:
					logger.Warnf("结果 WebSocket 健康检查失败：超过 60 秒未收到 PONG，将触发重连")
					w.Reconnect()
					return
				}
			}
		}
	}
}

// subscribe 订阅台桌
func (w *OutcomeWebSocket) subscribe() error {
	subscribeMsg := map[string]interface{}{
		"table": w.cfg.Table,
		"type":  "results",
	}

	logger.Infof("📡 订阅台桌结果: table=%s", w.cfg.Table)
	if err := w.conn.WriteJSON(subscribeMsg); err != nil {
		return err
	}
	logger.Infof("✅ 订阅消息已发送")
	return nil
}

// outcomeMessage 结果推送的线上格式
type outcomeMessage struct {
	EventType   string   `json:"event_type"`
	Table       string   `json:"table"`
	Winner      string   `json:"winner"`
	BankerCards []string `json:"banker_cards"`
	PlayerCards []string `json:"player_cards"`
	Timestamp   int64    `json:"timestamp"`
}

// handleMessages 处理 WebSocket 消息
func (w *OutcomeWebSocket) handleMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Infof("结果 WebSocket 消息处理收到取消信号，退出")
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		closed := w.closed
		w.mu.RUnlock()

		if conn == nil || closed {
			return
		}

		// 读取超时 30 秒：既能及时响应 context 取消，又不会因为正常延迟而误判
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		// 连接失败后重复读取会导致 panic，用 recover 捕获
		var message []byte
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("结果 WebSocket 读取时发生 panic: %v，连接可能已失败", r)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			_, message, err = conn.ReadMessage()
		}()

		if err != nil {
			// 超时是正常的，继续循环检查 context
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				logger.Debugf("结果 WebSocket 正常关闭（context 已取消）")
				w.mu.Lock()
				w.closed = true
				w.mu.Unlock()
				return
			default:
			}

			errStr := err.Error()
			isNormalClose := strings.Contains(errStr, "use of closed network connection") ||
				strings.Contains(errStr, "connection reset by peer")

			w.mu.RLock()
			alreadyClosed := w.closed
			w.mu.RUnlock()

			if alreadyClosed || isNormalClose {
				logger.Debugf("结果 WebSocket 正常关闭: %v", err)
				return
			}

			logger.Warnf("结果 WebSocket 读取错误: %v，标记为已关闭并退出", err)
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()

			isCloseError := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
				websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure)

			if isCloseError {
				logger.Infof("结果 WebSocket 连接已关闭，将触发重连")
				w.Reconnect()
			}

			return
		}

		// 处理 PING/PONG
		msgStr := string(message)
		if msgStr == "PING" {
			conn.WriteMessage(websocket.TextMessage, []byte("PONG"))
			continue
		}
		if msgStr == "PONG" {
			w.healthCheckMu.Lock()
			w.lastPong = time.Now()
			w.healthCheckMu.Unlock()
			logger.Debugf("收到 PONG 响应")
			continue
		}

		var msg outcomeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Debugf("解析消息失败: %v, 消息内容: %s", err, string(message))
			continue
		}

		switch msg.EventType {
		case "result":
			w.handleResult(ctx, msg)
		case "shoe_change":
			logger.Infof("🔄 收到换靴消息: table=%s", msg.Table)
			w.handlers.Emit(ctx, &events.OutcomeEvent{
				ShoeChanged: true,
				Table:       msg.Table,
				Timestamp:   time.Now(),
			})
		default:
			msgPreview := message
			if len(msgPreview) > 200 {
				msgPreview = msgPreview[:200]
			}
			logger.Debugf("收到未知消息类型: %s (消息内容: %s)", msg.EventType, string(msgPreview))
		}
	}
}

// handleResult 处理一局结果
func (w *OutcomeWebSocket) handleResult(ctx context.Context, msg outcomeMessage) {
	outcome := domain.Outcome(msg.Winner)
	if !outcome.Valid() {
		logger.Warnf("⚠️ 收到无效结果: winner=%q table=%s", msg.Winner, msg.Table)
		return
	}

	ts := time.Now()
	if msg.Timestamp > 0 {
		ts = time.Unix(msg.Timestamp, 0)
	}

	event := &events.OutcomeEvent{
		Outcome:     outcome,
		BankerCards: parseRanks(msg.BankerCards),
		PlayerCards: parseRanks(msg.PlayerCards),
		Table:       msg.Table,
		Timestamp:   ts,
	}

	logger.Infof("🎴 收到结果: %s table=%s", outcome, msg.Table)
	w.handlers.Emit(ctx, event)
}

// parseRanks 解析牌面明细，无效牌面直接丢弃
func parseRanks(raw []string) []domain.Rank {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.Rank, 0, len(raw))
	for _, s := range raw {
		r := domain.Rank(s)
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// Close 关闭 WebSocket 连接
func (w *OutcomeWebSocket) Close() error {
	w.mu.Lock()
	w.closed = true

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	var conn *websocket.Conn
	if w.conn != nil {
		conn = w.conn
		w.conn = nil
	}
	w.mu.Unlock()

	// 关闭连接（这会触发 ReadMessage 返回错误，让 handleMessages 退出）
	if conn != nil {
		conn.Close()
	}

	// 等待所有 goroutine 退出
	w.sg.WaitAndClear()
	logger.Debugf("结果 WebSocket 所有 goroutine 已退出")

	return nil
}

// getProxyFromEnv 从环境变量获取代理 URL
func getProxyFromEnv() string {
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"}
	for _, v := range proxyVars {
		if proxy := os.Getenv(v); proxy != "" {
			return proxy
		}
	}
	return ""
}
