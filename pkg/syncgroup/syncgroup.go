// Package syncgroup 包装 sync.WaitGroup，集中管理后台 goroutine 的启动与收尾，
// 避免散落的 Add/Done 配对出错。
package syncgroup

import (
	"sync"
)

type task func()

// SyncGroup 收集一组后台任务，Run 一次性启动，Wait 等待全部退出
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	tasks   []task
	started bool
	running int
}

// NewSyncGroup 创建空的任务组
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个任务。已启动且仍有任务在跑时拒绝追加，
// 需先 WaitAndClear 收尾
func (g *SyncGroup) Add(fn task) {
	if fn == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started && g.running > 0 {
		return
	}
	g.tasks = append(g.tasks, fn)
}

// Run 启动所有已登记的任务并清空登记表，重复调用无效果
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.started && g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.tasks
	g.tasks = nil
	g.started = true
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(do task) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			do()
		}(fn)
	}
}

// Wait 等待所有任务退出
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear 等待所有任务退出并复位，之后可再次 Add/Run
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()

	g.mu.Lock()
	g.tasks = nil
	g.started = false
	g.running = 0
	g.mu.Unlock()
}
