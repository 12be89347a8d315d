package cache

import (
	"time"

	"github.com/Midan14/baccarat-bot/internal/ports"
)

// SimulationCache 模拟结果缓存。模拟超时时，编排器退回到
// 最近一次成功的结果（带新鲜度标记）。
type SimulationCache struct {
	cache *InMemoryCache[string, *ports.SimulationResult]
	ttl   time.Duration
}

// NewSimulationCache 创建模拟结果缓存，ttl <= 0 时默认 10 分钟
func NewSimulationCache(ttl time.Duration) *SimulationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SimulationCache{
		cache: NewInMemoryCache[string, *ports.SimulationResult](ttl),
		ttl:   ttl,
	}
}

// Get 获取某台桌最近一次成功的模拟结果
func (sc *SimulationCache) Get(table string) (*ports.SimulationResult, bool) {
	return sc.cache.Get(table)
}

// Set 记录某台桌的模拟结果
func (sc *SimulationCache) Set(table string, result *ports.SimulationResult) {
	sc.cache.Set(table, result, sc.ttl)
}
