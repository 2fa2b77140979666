package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig 按客户端限流
type RateLimitConfig struct {
	Enabled   bool
	PerSecond int
	Burst     int
}

// idleTTL 客户端闲置超过该时长后回收其令牌桶
const idleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 每个客户端（ClientIP）一个令牌桶
type RateLimiter struct {
	ratePerSec int
	burst      int

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time

	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter ratePerSec<=0 时默认 50，burst<=0 时为速率的 2 倍
func NewRateLimiter(ratePerSec, burst int) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 50
	}
	if burst <= 0 {
		burst = ratePerSec * 2
	}
	return &RateLimiter{
		ratePerSec: ratePerSec,
		burst:      burst,
		clients:    make(map[string]*clientBucket),
		lastSweep:  time.Now(),
	}
}

// Allow 非阻塞判断
func (l *RateLimiter) Allow(client string) bool {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(l.ratePerSec), l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastSweep) > time.Minute {
		l.evictLocked(now)
	}
	l.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

func (l *RateLimiter) evictLocked(now time.Time) {
	for k, b := range l.clients {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

// RateLimiterStats 统计信息
type RateLimiterStats struct {
	RatePerSecond int   `json:"rate_per_second"`
	Burst         int   `json:"burst"`
	Clients       int   `json:"clients"`
	AllowedTotal  int64 `json:"allowed_total"`
	RejectedTotal int64 `json:"rejected_total"`
}

// Stats 获取统计信息
func (l *RateLimiter) Stats() RateLimiterStats {
	l.mu.Lock()
	n := len(l.clients)
	l.mu.Unlock()
	return RateLimiterStats{
		RatePerSecond: l.ratePerSec,
		Burst:         l.burst,
		Clients:       n,
		AllowedTotal:  l.allowedCount.Load(),
		RejectedTotal: l.rejectedCount.Load(),
	}
}

// RateLimit 超限返回 429
func RateLimit(cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := NewRateLimiter(cfg.PerSecond, cfg.Burst)
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			logger.Debug("rate limited", zap.String("remote_addr", c.ClientIP()), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "请求过于频繁",
			})
			return
		}
		c.Next()
	}
}
