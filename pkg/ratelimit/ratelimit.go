// Package ratelimit 提供本地速率限制，避免触发交易所或天气 API 的限流。
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 速率限制器接口
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶限制器，适合写类请求（下单、撤单）
type TokenBucket struct {
	capacity   int // 桶容量
	tokens     int // 当前令牌数
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow 尝试取一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 阻塞直到取到令牌或 ctx 取消
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := time.Second
		if tb.refillRate > 0 {
			wait = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining 剩余令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// SlidingWindow 滑动窗口限制器，适合读类请求
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建滑动窗口限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		requests:   make([]time.Time, 0, limit),
	}
}

// Allow 检查当前窗口内是否还有配额
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := time.Now().Add(-sw.windowSize)
	valid := sw.requests[:0]
	for _, req := range sw.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	sw.requests = valid

	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, time.Now())
	return true
}

// Wait 阻塞直到窗口内有配额或 ctx 取消
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if until := sw.windowSize - time.Since(sw.requests[0]); until > wait {
				wait = until
			}
		}
		sw.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining 当前窗口剩余配额
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := time.Now().Add(-sw.windowSize)
	used := 0
	for _, req := range sw.requests {
		if req.After(cutoff) {
			used++
		}
	}
	return max(0, sw.limit-used)
}

// Endpoint 键
const (
	KalshiRead  = "kalshi:read"
	KalshiOrder = "kalshi:order"
	NWSRead     = "nws:read"
)

// Manager 按端点分发限制器
type Manager struct {
	limiters map[string]Limiter
	mu       sync.RWMutex
}

// NewManager 创建带默认配额的管理器。
// Kalshi 基础档约为读 10/s、写 5/s，这里留了一点余量；
// NWS 未公布硬性配额，按保守值处理。
func NewManager() *Manager {
	return &Manager{
		limiters: map[string]Limiter{
			KalshiRead:  NewSlidingWindow(80, 10*time.Second),
			KalshiOrder: NewTokenBucket(10, 4),
			NWSRead:     NewSlidingWindow(30, time.Minute),
		},
	}
}

// Get 获取端点限制器，未注册的端点返回宽松的默认值
func (m *Manager) Get(endpoint string) Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.limiters[endpoint]; ok {
		return l
	}
	return NewSlidingWindow(1000, 10*time.Second)
}

// Wait 等待端点配额
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.Get(endpoint).Wait(ctx)
}
