package syncgroup

import "sync"

// SyncGroup 包装 sync.WaitGroup：先登记任务，再统一启动，
// 避免 Add/Done 配对散落在各处。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []func()
	running int
}

// NewSyncGroup 创建空的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个待启动的 goroutine 函数。
// 上一批任务仍在运行时登记无效，需先 WaitAndClear()。
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return
	}
	g.pending = append(g.pending, fn)
}

// Run 启动所有已登记的任务并清空登记表。
// 上一批任务未结束时调用是空操作。
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.pending
	g.pending = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(do func()) {
			defer func() {
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
				g.wg.Done()
			}()
			do()
		}(fn)
	}
}

// Wait 等待当前批次全部结束
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear 等待当前批次结束并允许登记下一批
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()
	g.mu.Lock()
	g.pending = nil
	g.running = 0
	g.mu.Unlock()
}
