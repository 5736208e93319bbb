package tcpserver

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrConnLimit 并发连接数已满
var ErrConnLimit = errors.New("connection limit exceeded")

// ConnectionLimiter 并发连接数限制（信号量）
type ConnectionLimiter struct {
	sem      chan struct{}
	active   atomic.Int64
	rejected atomic.Int64
}

// NewConnectionLimiter maxConn<=0 时为 64
func NewConnectionLimiter(maxConn int) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = 64
	}
	return &ConnectionLimiter{sem: make(chan struct{}, maxConn)}
}

// TryAcquire 非阻塞获取许可，accept 循环使用
func (l *ConnectionLimiter) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		l.rejected.Add(1)
		return false
	}
}

// Acquire 阻塞获取许可直至 ctx 结束
func (l *ConnectionLimiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		l.rejected.Add(1)
		return ErrConnLimit
	}
}

// Release 释放许可
func (l *ConnectionLimiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
	}
}

// Stats 统计信息
func (l *ConnectionLimiter) Stats() LimiterStats {
	active := int(l.active.Load())
	return LimiterStats{
		MaxConnections:    cap(l.sem),
		ActiveConnections: active,
		RejectedTotal:     l.rejected.Load(),
		Utilization:       float64(active) / float64(cap(l.sem)),
	}
}

// LimiterStats 限流器统计信息
type LimiterStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	RejectedTotal     int64   `json:"rejected_total"`
	Utilization       float64 `json:"utilization"`
}
