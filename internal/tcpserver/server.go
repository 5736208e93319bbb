package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/obci-gateway/internal/config"
)

// Server WiFi 扩展板 TCP 接入
type Server struct {
	cfg     cfgpkg.TCPConfig
	log     *zap.Logger
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	handler func(*ConnContext)

	limiter    *ConnectionLimiter
	acceptRate *AcceptLimiter
	nextConnID atomic.Uint64
	conns      sync.Map // id -> *ConnContext

	// 可选指标回调
	onAccept    func()
	onReject    func(reason string)
	onRecvBytes func(n int)
}

// New 创建 TCP 服务；log 为 nil 时不输出日志
func New(cfg cfgpkg.TCPConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		log:        log,
		stopC:      make(chan struct{}),
		limiter:    NewConnectionLimiter(cfg.MaxConnections),
		acceptRate: NewAcceptLimiter(cfg.AcceptRate, cfg.AcceptBurst),
	}
}

// SetConnHandler 新连接回调，在读循环启动前调用，用于安装 onRead
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onReject func(string), onRecvBytes func(int)) {
	s.onAccept, s.onReject, s.onRecvBytes = onAccept, onReject, onRecvBytes
}

// Logger 服务日志
func (s *Server) Logger() *zap.Logger { return s.log }

// Addr 实际监听地址（Start 之后有效）
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats 连接限流统计
func (s *Server) Stats() LimiterStats { return s.limiter.Stats() }

func (s *Server) reject(c net.Conn, reason string) {
	if s.onReject != nil {
		s.onReject(reason)
	}
	s.log.Warn("tcp connection rejected", zap.String("remote", c.RemoteAddr().String()), zap.String("reason", reason))
	_ = c.Close()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("tcp server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if !s.acceptRate.Allow() {
				s.reject(conn, "rate")
				continue
			}
			if !s.limiter.TryAcquire() {
				s.reject(conn, "limit")
				continue
			}
			if s.onAccept != nil {
				s.onAccept()
			}

			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.limiter.Release()
				cc := newConnContext(s, c)
				s.conns.Store(cc.id, cc)
				defer s.conns.Delete(cc.id)
				if s.handler != nil {
					s.handler(cc)
				}
				cc.run()
			}(conn)
		}
	}()
	return nil
}

// Shutdown 关闭监听与全部连接，等待读循环退出
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stopC:
	default:
		close(s.stopC)
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.conns.Range(func(_, v any) bool {
		_ = v.(*ConnContext).Close()
		return true
	})
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
