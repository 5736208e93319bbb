package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"
)

// ErrConnClosed 连接已关闭
var ErrConnClosed = errors.New("connection closed")

// ConnContext 单个 TCP 连接：读循环、异步写队列、随连接关闭而取消的 context
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     uint64
	writeC chan []byte
	closed atomic.Bool
	onRead func([]byte)
	ctx    context.Context
	cancel context.CancelFunc
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnContext{
		s:      s,
		c:      c,
		id:     s.nextConnID.Add(1),
		writeC: make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID 连接ID（单进程唯一递增）
func (cc *ConnContext) ID() uint64 { return cc.id }

// RemoteAddr 远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// Server 所属服务
func (cc *ConnContext) Server() *Server { return cc.s }

// SetOnRead 安装读取回调；在读循环 goroutine 中顺序调用
func (cc *ConnContext) SetOnRead(h func([]byte)) { cc.onRead = h }

// Context 连接关闭时取消
func (cc *ConnContext) Context() context.Context { return cc.ctx }

// Done 连接关闭通知
func (cc *ConnContext) Done() <-chan struct{} { return cc.ctx.Done() }

// Write 异步下发（如开始/停止采集命令），队列满时最多等待写超时
func (cc *ConnContext) Write(b []byte) error {
	if cc.closed.Load() {
		return ErrConnClosed
	}
	dup := make([]byte, len(b))
	copy(dup, b)
	to := cc.s.cfg.WriteTimeout
	if to <= 0 {
		to = 5 * time.Second
	}
	timer := time.NewTimer(to)
	defer timer.Stop()
	select {
	case cc.writeC <- dup:
		return nil
	case <-cc.ctx.Done():
		return ErrConnClosed
	case <-timer.C:
		return errors.New("write queue timeout")
	}
}

// Close 关闭连接，可重复调用
func (cc *ConnContext) Close() error {
	if !cc.closed.CompareAndSwap(false, true) {
		return nil
	}
	cc.cancel()
	return cc.c.Close()
}

func (cc *ConnContext) writeLoop() {
	for {
		select {
		case <-cc.ctx.Done():
			return
		case msg := <-cc.writeC:
			if cc.s.cfg.WriteTimeout > 0 {
				_ = cc.c.SetWriteDeadline(time.Now().Add(cc.s.cfg.WriteTimeout))
			}
			if _, err := cc.c.Write(msg); err != nil {
				_ = cc.Close()
				return
			}
		}
	}
}

// run 读循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	defer cc.Close()

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		cc.writeLoop()
	}()

	readTimeout := cc.s.cfg.ReadTimeout
	buf := make([]byte, 4096)
	for {
		if readTimeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(readTimeout))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if cc.onRead != nil {
				cc.onRead(buf[:n])
			}
		}
		if err != nil {
			// 读超时：设备暂停采集时连接保持，关闭后退出
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && !cc.closed.Load() {
				continue
			}
			break
		}
	}
	_ = cc.Close()
	<-doneW
}
