package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context) bool
}

// TokenBucket 令牌桶限流器
type TokenBucket struct {
	capacity   int64     // 桶容量
	tokens     int64     // 当前令牌数
	refillRate int64     // 每秒补充的令牌数
	lastRefill time.Time // 上次补充时间
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求。ctx 已取消的请求直接拒绝，不消耗令牌。
func (tb *TokenBucket) Allow(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	// 按整令牌补充；lastRefill 只推进已结算的部分，零头时间留到下次
	if tokensToAdd := tb.refillRate * int64(now.Sub(tb.lastRefill)/time.Second); tokensToAdd > 0 {
		tb.tokens = min(tb.tokens+tokensToAdd, tb.capacity)
		tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd/tb.refillRate) * time.Second)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// SlidingWindow 滑动窗口限流器
type SlidingWindow struct {
	requests    []time.Time   // 窗口内的请求时间，按到达顺序
	window      time.Duration // 时间窗口
	maxRequests int           // 窗口内最大请求数
	mu          sync.Mutex
}

// NewSlidingWindow 创建滑动窗口限流器
func NewSlidingWindow(window time.Duration, maxRequests int) *SlidingWindow {
	return &SlidingWindow{
		window:      window,
		maxRequests: maxRequests,
	}
}

// Allow 检查是否允许请求。ctx 已取消的请求直接拒绝。
func (sw *SlidingWindow) Allow(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-sw.window)

	// requests 按时间有序，从头裁掉窗口外的部分即可
	cut := 0
	for cut < len(sw.requests) && !sw.requests[cut].After(windowStart) {
		cut++
	}
	sw.requests = sw.requests[cut:]

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}
