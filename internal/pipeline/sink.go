package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
)

// StreamRef 标识一条设备数据流
type StreamRef struct {
	ID        string
	Transport obci.Transport
}

// Sink 解码结果的下游
type Sink interface {
	Name() string
	PublishSample(ctx context.Context, ref StreamRef, s *obci.Sample) error
	PublishDaisy(ctx context.Context, ref StreamRef, d *obci.DaisySample) error
	RecordGap(ctx context.Context, ref StreamRef, g obci.Gap) error
}

// Fanout 依次写入全部下游；单个下游失败不影响其余下游
type Fanout struct {
	sinks []Sink
	onErr func(sink string, err error)
}

// NewFanout onErr 可为 nil
func NewFanout(onErr func(sink string, err error), sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, onErr: onErr}
}

func (f *Fanout) Name() string { return "fanout" }

// Len 下游数量
func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) each(call func(Sink) error) error {
	var errs []error
	for _, s := range f.sinks {
		if err := call(s); err != nil {
			if f.onErr != nil {
				f.onErr(s.Name(), err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) PublishSample(ctx context.Context, ref StreamRef, s *obci.Sample) error {
	return f.each(func(k Sink) error { return k.PublishSample(ctx, ref, s) })
}

func (f *Fanout) PublishDaisy(ctx context.Context, ref StreamRef, d *obci.DaisySample) error {
	return f.each(func(k Sink) error { return k.PublishDaisy(ctx, ref, d) })
}

func (f *Fanout) RecordGap(ctx context.Context, ref StreamRef, g obci.Gap) error {
	return f.each(func(k Sink) error { return k.RecordGap(ctx, ref, g) })
}

// guarded 熔断保护的下游
type guarded struct {
	Sink
	b *Breaker
}

// Guard 给下游加上熔断器
func Guard(s Sink, b *Breaker) Sink { return &guarded{Sink: s, b: b} }

func (g *guarded) PublishSample(ctx context.Context, ref StreamRef, s *obci.Sample) error {
	return g.b.Call(func() error { return g.Sink.PublishSample(ctx, ref, s) })
}

func (g *guarded) PublishDaisy(ctx context.Context, ref StreamRef, d *obci.DaisySample) error {
	return g.b.Call(func() error { return g.Sink.PublishDaisy(ctx, ref, d) })
}

func (g *guarded) RecordGap(ctx context.Context, ref StreamRef, gap obci.Gap) error {
	return g.b.Call(func() error { return g.Sink.RecordGap(ctx, ref, gap) })
}

// LogSink 把样本写到日志（debug），丢包写 warn
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) PublishSample(_ context.Context, ref StreamRef, s *obci.Sample) error {
	if ce := l.log.Check(zap.DebugLevel, "sample"); ce != nil {
		ce.Write(
			zap.String("stream", ref.ID),
			zap.Uint8("n", s.SampleNumber),
			zap.Stringer("type", s.Type()),
			zap.Float64s("channels", s.ChannelData),
			zap.Int32s("counts", s.ChannelDataCounts),
			zap.Float64s("accel", s.AccelData),
		)
	}
	return nil
}

func (l *LogSink) PublishDaisy(_ context.Context, ref StreamRef, d *obci.DaisySample) error {
	if ce := l.log.Check(zap.DebugLevel, "daisy sample"); ce != nil {
		ce.Write(
			zap.String("stream", ref.ID),
			zap.Uint8("n", d.SampleNumber),
			zap.Float64s("channels", d.ChannelData),
			zap.Int32s("counts", d.ChannelDataCounts),
		)
	}
	return nil
}

func (l *LogSink) RecordGap(_ context.Context, ref StreamRef, g obci.Gap) error {
	l.log.Warn("sample numbers missing",
		zap.String("stream", ref.ID),
		zap.String("transport", string(ref.Transport)),
		zap.Uint8("previous", g.Previous),
		zap.Uint8("current", g.Current),
		zap.Int("dropped", len(g.Missing)),
	)
	return nil
}

// samplePublisher redis.SampleStream
type samplePublisher interface {
	PublishSample(ctx context.Context, streamID string, s *obci.Sample) error
	PublishDaisy(ctx context.Context, streamID string, d *obci.DaisySample) error
	RecordGap(ctx context.Context, streamID string, g obci.Gap) error
}

// RedisSink 样本写入 Redis Stream
type RedisSink struct {
	pub samplePublisher
}

func NewRedisSink(pub samplePublisher) *RedisSink { return &RedisSink{pub: pub} }

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) PublishSample(ctx context.Context, ref StreamRef, s *obci.Sample) error {
	return r.pub.PublishSample(ctx, ref.ID, s)
}

func (r *RedisSink) PublishDaisy(ctx context.Context, ref StreamRef, d *obci.DaisySample) error {
	return r.pub.PublishDaisy(ctx, ref.ID, d)
}

func (r *RedisSink) RecordGap(ctx context.Context, ref StreamRef, g obci.Gap) error {
	return r.pub.RecordGap(ctx, ref.ID, g)
}

// gapInserter pg.GapRepo
type gapInserter interface {
	Insert(ctx context.Context, streamID string, transport obci.Transport, g obci.Gap) error
}

// GapLogSink 只落库丢包事件，样本忽略
type GapLogSink struct {
	repo gapInserter
}

func NewGapLogSink(repo gapInserter) *GapLogSink { return &GapLogSink{repo: repo} }

func (g *GapLogSink) Name() string { return "postgres" }

func (g *GapLogSink) PublishSample(context.Context, StreamRef, *obci.Sample) error { return nil }

func (g *GapLogSink) PublishDaisy(context.Context, StreamRef, *obci.DaisySample) error { return nil }

func (g *GapLogSink) RecordGap(ctx context.Context, ref StreamRef, gap obci.Gap) error {
	return g.repo.Insert(ctx, ref.ID, ref.Transport, gap)
}
