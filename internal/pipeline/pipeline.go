package pipeline

import (
	"context"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/obci-gateway/internal/logging"
	"github.com/taoyao-code/obci-gateway/internal/metrics"
	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
	"github.com/taoyao-code/obci-gateway/internal/session"
)

// Options 每条数据流共用的解码与下游参数
type Options struct {
	// Decoder 解码模板；Transport 由 Open 的参数覆盖
	Decoder            obci.ContextConfig
	FailureLogInterval time.Duration
	// SinkTimeout 单次下游写入超时，<=0 不设超时
	SinkTimeout time.Duration
}

// Pipeline 把设备字节流接到解码器、会话表、指标和下游
type Pipeline struct {
	opts     Options
	log      *zap.Logger
	metrics  *metrics.AppMetrics
	sessions *session.Manager
	sink     Sink
}

// New metrics 可为 nil；sessions 为 nil 时使用默认超时的内存表；sink 为 nil 时不写下游
func New(opts Options, log *zap.Logger, m *metrics.AppMetrics, sessions *session.Manager, sink Sink) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if sessions == nil {
		sessions = session.New(0)
	}
	if sink == nil {
		sink = NewFanout(nil)
	}
	return &Pipeline{opts: opts, log: log, metrics: m, sessions: sessions, sink: sink}
}

// Sessions 数据流注册表
func (p *Pipeline) Sessions() *session.Manager { return p.sessions }

// Open 为一条新连接创建解码流并登记会话
func (p *Pipeline) Open(ctx context.Context, transport obci.Transport, remote string) (*Stream, error) {
	cfg := p.opts.Decoder
	cfg.Transport = transport

	s := &Stream{
		p:     p,
		ctx:   ctx,
		daisy: cfg.Settings.Daisy(),
	}
	a, err := obci.NewAdapter(cfg, s.handlers())
	if err != nil {
		return nil, err
	}
	s.adapter = a
	s.ref = StreamRef{Transport: a.Context().Transport()}

	channels := len(cfg.Settings)
	if channels == 0 {
		channels = obci.ChannelsDefault
	}
	s.ref.ID = p.sessions.Bind(session.StreamInfo{
		Transport:   string(s.ref.Transport),
		Remote:      remote,
		Channels:    channels,
		ConnectedAt: time.Now(),
	})
	s.log = p.log.With(zap.String("stream", s.ref.ID), zap.String("transport", string(s.ref.Transport)))
	s.warn = logging.NewThrottled(s.log, p.opts.FailureLogInterval)
	s.log.Info("stream opened", zap.String("remote", remote), zap.Int("channels", channels))
	return s, nil
}

// RunOnlineGauge 周期刷新活跃数据流数量，ctx 结束时返回
func (p *Pipeline) RunOnlineGauge(ctx context.Context, every time.Duration) {
	if p.metrics == nil {
		return
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.metrics.OnlineGauge.Set(float64(p.sessions.OnlineCount(now)))
		}
	}
}

// Stream 单条连接的解码流，不可并发写入
type Stream struct {
	p       *Pipeline
	ctx     context.Context
	ref     StreamRef
	adapter *obci.Adapter
	daisy   bool
	log     *zap.Logger
	warn    *logging.Throttled
}

// ID 数据流 ID
func (s *Stream) ID() string { return s.ref.ID }

// Ref 数据流标识
func (s *Stream) Ref() StreamRef { return s.ref }

// Decoder 底层解码上下文
func (s *Stream) Decoder() *obci.Context { return s.adapter.Context() }

// Sniff 实现 adapter.Adapter
func (s *Stream) Sniff(prefix []byte) bool { return s.adapter.Sniff(prefix) }

// ProcessBytes 实现 adapter.Adapter
func (s *Stream) ProcessBytes(b []byte) error { return s.adapter.ProcessBytes(b) }

// Write 实现 io.Writer，便于串口读循环直接 io.Copy
func (s *Stream) Write(b []byte) (int, error) {
	if err := s.adapter.ProcessBytes(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Reset 底层连接重建后丢弃半包、加速度缓存与上一序号，避免跨会话拼包和误报丢包
func (s *Stream) Reset() {
	buffered := s.Decoder().Buffered()
	s.Decoder().Reset()
	s.log.Info("stream decoder reset", zap.Int("discarded_buffer", buffered))
}

// Close 注销会话
func (s *Stream) Close() {
	info, _ := s.p.sessions.Get(s.ref.ID)
	s.p.sessions.Unbind(s.ref.ID)
	s.log.Info("stream closed",
		zap.Uint64("samples", info.Samples),
		zap.Uint64("failures", info.Failures),
		zap.Uint64("dropped", info.Dropped),
	)
}

func (s *Stream) sinkCtx() (context.Context, context.CancelFunc) {
	if s.p.opts.SinkTimeout > 0 {
		return context.WithTimeout(s.ctx, s.p.opts.SinkTimeout)
	}
	return s.ctx, func() {}
}

func (s *Stream) countResult(r obci.Result) {
	if m := s.p.metrics; m != nil {
		m.FramesTotal.WithLabelValues(string(s.ref.Transport)).Inc()
		m.DecodeTotal.WithLabelValues(r.Kind.String()).Inc()
		m.PacketTypeTotal.WithLabelValues(r.Type.String()).Inc()
	}
}

func (s *Stream) handlers() obci.Handlers {
	return obci.Handlers{
		OnSample: func(smp *obci.Sample) {
			s.countResult(obci.Result{Kind: obci.ResultSample, Type: smp.Type()})
			s.p.sessions.OnSample(s.ref.ID, time.Now())
			// daisy 模式只向下游发合并后的 16 通道样本
			if s.daisy {
				return
			}
			ctx, cancel := s.sinkCtx()
			defer cancel()
			_ = s.p.sink.PublishSample(ctx, s.ref, smp)
		},
		OnDaisy: func(d *obci.DaisySample) {
			if m := s.p.metrics; m != nil {
				m.DaisyMerged.Inc()
			}
			ctx, cancel := s.sinkCtx()
			defer cancel()
			_ = s.p.sink.PublishDaisy(ctx, s.ref, d)
		},
		OnGap: func(g obci.Gap) {
			if m := s.p.metrics; m != nil {
				m.DroppedSamples.Add(float64(len(g.Missing)))
			}
			s.p.sessions.OnDropped(s.ref.ID, len(g.Missing))
			ctx, cancel := s.sinkCtx()
			defer cancel()
			_ = s.p.sink.RecordGap(ctx, s.ref, g)
		},
		OnFailure: func(r obci.Result) {
			s.countResult(r)
			s.p.sessions.OnFailure(s.ref.ID)
			fields := []zap.Field{zap.Error(r.Err), zap.Stringer("type", r.Type)}
			if r.Sample != nil {
				fields = append(fields, zap.String("raw", hex.EncodeToString(r.Sample.RawPacket)))
			}
			s.warn.Warn("packet decode failed", fields...)
		},
		OnUnrecognized: func(r obci.Result) {
			s.countResult(r)
			s.warn.Warn("unrecognized packet type", zap.Stringer("type", r.Type))
		},
		OnDiscard: func(n int) {
			if m := s.p.metrics; m != nil {
				m.DiscardedBytes.Add(float64(n))
			}
			s.warn.Warn("stream buffer overflow, bytes discarded", zap.Int("bytes", n))
		},
	}
}
