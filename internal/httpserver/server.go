package httpserver

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/obci-gateway/internal/config"
	"github.com/taoyao-code/obci-gateway/internal/session"
)

// StreamLister 数据流注册表（session.Manager）
type StreamLister interface {
	List() []session.StreamInfo
	Get(id string) (session.StreamInfo, bool)
	IsOnline(id string, now time.Time) bool
}

// Routes 可选路由依赖，nil 字段对应的路由不注册
type Routes struct {
	MetricsPath    string
	MetricsHandler http.Handler
	Ready          func() bool
	Streams        StreamLister
	Logger         *zap.Logger
}

// Server HTTP 服务封装
type Server struct {
	srv *http.Server
}

type streamView struct {
	session.StreamInfo
	Online bool `json:"online"`
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与数据流查询路由
func New(cfg cfgpkg.HTTPConfig, rt Routes) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), RequestTracing())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if rt.Ready == nil || rt.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})

	if rt.MetricsHandler != nil {
		path := rt.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(rt.MetricsHandler))
	}

	if rt.Streams != nil {
		streams := r.Group("/streams")
		if len(cfg.APIKeys) > 0 {
			log := rt.Logger
			if log == nil {
				log = zap.NewNop()
			}
			streams.Use(APIKeyAuth(cfg.APIKeys, log))
		}
		streams.GET("", func(c *gin.Context) {
			now := time.Now()
			list := rt.Streams.List()
			out := make([]streamView, 0, len(list))
			for _, s := range list {
				out = append(out, streamView{StreamInfo: s, Online: rt.Streams.IsOnline(s.ID, now)})
			}
			c.JSON(http.StatusOK, gin.H{"streams": out, "count": len(out)})
		})
		streams.GET("/:id", func(c *gin.Context) {
			id := c.Param("id")
			s, ok := rt.Streams.Get(id)
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
				return
			}
			c.JSON(http.StatusOK, streamView{StreamInfo: s, Online: rt.Streams.IsOnline(id, time.Now())})
		})
	}

	if cfg.Pprof.Enable {
		prefix := cfg.Pprof.Prefix
		if prefix == "" {
			prefix = "/debug/pprof"
		}
		g := r.Group(prefix)
		g.GET("/", gin.WrapF(pprof.Index))
		g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		g.GET("/profile", gin.WrapF(pprof.Profile))
		g.GET("/symbol", gin.WrapF(pprof.Symbol))
		g.GET("/trace", gin.WrapF(pprof.Trace))
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			g.GET("/"+name, gin.WrapH(pprof.Handler(name)))
		}
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
