package tcpserver

import (
	"math"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// AcceptLimiter 新连接令牌桶：设备掉线重连风暴时限制 accept 速率
type AcceptLimiter struct {
	limiter  *rate.Limiter
	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewAcceptLimiter perSec<=0 时不限速；burst<=0 时取 2*perSec（至少 1）
func NewAcceptLimiter(perSec float64, burst int) *AcceptLimiter {
	if perSec <= 0 {
		return &AcceptLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perSec*2)))
	}
	return &AcceptLimiter{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// Allow 非阻塞判断是否放行
func (l *AcceptLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowed.Add(1)
		return true
	}
	l.rejected.Add(1)
	return false
}

// Stats 统计信息
func (l *AcceptLimiter) Stats() AcceptLimiterStats {
	return AcceptLimiterStats{
		RatePerSecond: float64(l.limiter.Limit()),
		Burst:         l.limiter.Burst(),
		AllowedTotal:  l.allowed.Load(),
		RejectedTotal: l.rejected.Load(),
	}
}

// AcceptLimiterStats 速率限流器统计信息
type AcceptLimiterStats struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	AllowedTotal  int64   `json:"allowed_total"`
	RejectedTotal int64   `json:"rejected_total"`
}
