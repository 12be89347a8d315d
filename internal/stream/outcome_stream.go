package stream

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Midan14/baccarat-bot/internal/events"
)

var log = logrus.WithField("component", "stream")

// OutcomeHandler 结果事件处理器接口
type OutcomeHandler interface {
	OnOutcome(ctx context.Context, event *events.OutcomeEvent) error
}

// OutcomeHandlerFunc 函数适配器
type OutcomeHandlerFunc func(ctx context.Context, event *events.OutcomeEvent) error

func (f OutcomeHandlerFunc) OnOutcome(ctx context.Context, event *events.OutcomeEvent) error {
	return f(ctx, event)
}

// OutcomeStream 台桌结果数据流接口
type OutcomeStream interface {
	// OnOutcome 注册结果回调
	OnOutcome(handler OutcomeHandler)

	// Connect 连接到数据流
	Connect(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// HandlerList 处理器列表（用于存储多个处理器）
type HandlerList struct {
	handlers []OutcomeHandler
	mu       sync.RWMutex
}

// NewHandlerList 创建新的处理器列表
func NewHandlerList() *HandlerList {
	return &HandlerList{
		handlers: make([]OutcomeHandler, 0),
	}
}

// Add 添加处理器
func (h *HandlerList) Add(handler OutcomeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// Count 处理器数量
func (h *HandlerList) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

// Snapshot 返回处理器快照（用于在无锁状态下遍历，避免长时间持锁）
func (h *HandlerList) Snapshot() []OutcomeHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]OutcomeHandler, len(h.handlers))
	copy(out, h.handlers)
	return out
}

// Emit 触发所有处理器
func (h *HandlerList) Emit(ctx context.Context, event *events.OutcomeEvent) {
	handlers := h.Snapshot()

	if len(handlers) == 0 {
		log.Warnf("⚠️ HandlerList 为空，没有处理器可触发！事件: %s", event.Outcome)
		return
	}

	// 串行执行（确定性优先，事件顺序即处理顺序）
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler.OnOutcome(ctx, event); err != nil {
			log.Errorf("结果处理器失败: %v", err)
		}
	}
}
