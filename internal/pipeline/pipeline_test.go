package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/obci-gateway/internal/metrics"
	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
	"github.com/taoyao-code/obci-gateway/internal/session"
)

type recordSink struct {
	mu      sync.Mutex
	name    string
	err     error
	samples []*obci.Sample
	daisy   []*obci.DaisySample
	gaps    []obci.Gap
}

func (r *recordSink) Name() string { return r.name }

func (r *recordSink) PublishSample(_ context.Context, _ StreamRef, s *obci.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return r.err
}

func (r *recordSink) PublishDaisy(_ context.Context, _ StreamRef, d *obci.DaisySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.daisy = append(r.daisy, d)
	return r.err
}

func (r *recordSink) RecordGap(_ context.Context, _ StreamRef, g obci.Gap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaps = append(r.gaps, g)
	return r.err
}

func packet(n uint8) []byte {
	return obci.EncodeStandardAccel(&obci.Sample{
		SampleNumber: n,
		ChannelData:  []float64{0.001, -0.001, 0, 0, 0, 0, 0, 0},
	})
}

func newTestPipeline(t *testing.T, settings obci.ChannelSettings, sink Sink) (*Pipeline, *prometheus.Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	reg := metrics.NewRegistry()
	m := metrics.NewAppMetrics(reg)
	p := New(Options{
		Decoder:            obci.ContextConfig{Settings: settings},
		FailureLogInterval: time.Hour,
		SinkTimeout:        time.Second,
	}, zap.New(core), m, session.New(time.Minute), sink)
	return p, reg, logs
}

func TestStream_SamplesAndGaps(t *testing.T) {
	sink := &recordSink{name: "rec"}
	p, _, logs := newTestPipeline(t, obci.DefaultChannelSettings(8), sink)

	s, err := p.Open(context.Background(), obci.TransportSerial, "/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, obci.TransportSerial, s.Ref().Transport)

	var chunk []byte
	chunk = append(chunk, packet(1)...)
	chunk = append(chunk, packet(2)...)
	chunk = append(chunk, packet(5)...)
	n, err := s.Write(chunk[:40])
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	_, err = s.Write(chunk[40:])
	require.NoError(t, err)

	require.Len(t, sink.samples, 3)
	assert.Equal(t, uint8(5), sink.samples[2].SampleNumber)
	require.Len(t, sink.gaps, 1)
	assert.Equal(t, []uint8{3, 4}, sink.gaps[0].Missing)

	info, ok := p.Sessions().Get(s.ID())
	require.True(t, ok)
	assert.Equal(t, uint64(3), info.Samples)
	assert.Equal(t, uint64(2), info.Dropped)
	assert.Equal(t, 8, info.Channels)
	assert.Equal(t, "/dev/ttyUSB0", info.Remote)

	s.Close()
	_, ok = p.Sessions().Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("stream closed").Len())
}

func TestStream_ResetDropsStaleState(t *testing.T) {
	sink := &recordSink{name: "rec"}
	p, _, logs := newTestPipeline(t, obci.DefaultChannelSettings(8), sink)
	s, err := p.Open(context.Background(), obci.TransportSerial, "/dev/ttyUSB0")
	require.NoError(t, err)

	_, err = s.Write(packet(1))
	require.NoError(t, err)
	// 断线前只收到半个包
	_, err = s.Write(packet(2)[:10])
	require.NoError(t, err)
	assert.Equal(t, 10, s.Decoder().Buffered())

	s.Reset()
	assert.Equal(t, 0, s.Decoder().Buffered())
	assert.Equal(t, obci.LastSampleUnknown, s.Decoder().LastSampleNumber())

	_, err = s.Write(packet(9))
	require.NoError(t, err)
	require.Len(t, sink.samples, 2)
	assert.Equal(t, uint8(9), sink.samples[1].SampleNumber)
	assert.Empty(t, sink.gaps, "重连后首包不与旧会话比较序号")
	assert.Equal(t, 1, logs.FilterMessage("stream decoder reset").Len())
}

func TestStream_FailureThrottledAndCounted(t *testing.T) {
	sink := &recordSink{name: "rec"}
	p, reg, logs := newTestPipeline(t, obci.DefaultChannelSettings(8), sink)
	s, err := p.Open(context.Background(), obci.TransportSerial, "x")
	require.NoError(t, err)

	// 类型码 0x7-0xF 无解析器
	bad := packet(1)
	bad[obci.PositionStopByte] = obci.MakeStopByte(0x0A)
	for i := 0; i < 3; i++ {
		_, _ = s.Write(bad)
	}
	assert.Empty(t, sink.samples)
	assert.Equal(t, 1, logs.FilterMessage("unrecognized packet type").Len())

	body := scrape(t, reg)
	assert.Contains(t, body, `obci_decode_total{result="unrecognized"} 3`)
	assert.Contains(t, body, `obci_frames_total{transport="serial"} 3`)
}

func TestStream_DaisyPublishesMergedOnly(t *testing.T) {
	sink := &recordSink{name: "rec"}
	p, _, _ := newTestPipeline(t, obci.DefaultChannelSettings(16), sink)
	s, err := p.Open(context.Background(), obci.TransportSerial, "x")
	require.NoError(t, err)

	_, err = s.Write(append(packet(1), packet(2)...))
	require.NoError(t, err)

	assert.Empty(t, sink.samples)
	require.Len(t, sink.daisy, 1)
	assert.Len(t, sink.daisy[0].ChannelData, 16)
	assert.Equal(t, uint8(1), sink.daisy[0].SampleNumber)
}

func TestPipeline_OpenRejectsBadTransport(t *testing.T) {
	p, _, _ := newTestPipeline(t, obci.DefaultChannelSettings(8), nil)
	_, err := p.Open(context.Background(), obci.Transport("bluetooth"), "x")
	assert.ErrorIs(t, err, obci.ErrInvalidTransport)
	assert.Empty(t, p.Sessions().List())
}

func TestFanout_ContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordSink{name: "bad", err: boom}
	good := &recordSink{name: "good"}
	var failed []string
	f := NewFanout(func(name string, err error) { failed = append(failed, name) }, bad, good)

	err := f.RecordGap(context.Background(), StreamRef{ID: "s"}, obci.Gap{Missing: []uint8{1}})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, good.gaps, 1)
	assert.Equal(t, []string{"bad"}, failed)
	assert.Equal(t, 2, f.Len())
}

func TestGuard_OpensAfterThreshold(t *testing.T) {
	inner := &recordSink{name: "redis", err: errors.New("down")}
	b := NewBreaker(2, time.Minute)
	g := Guard(inner, b)
	assert.Equal(t, "redis", g.Name())

	ctx := context.Background()
	_ = g.PublishSample(ctx, StreamRef{}, &obci.Sample{})
	_ = g.PublishSample(ctx, StreamRef{}, &obci.Sample{})
	err := g.PublishSample(ctx, StreamRef{}, &obci.Sample{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, inner.samples, 2)
}

type fakeGapRepo struct {
	transport obci.Transport
	id        string
}

func (f *fakeGapRepo) Insert(_ context.Context, id string, tr obci.Transport, _ obci.Gap) error {
	f.id, f.transport = id, tr
	return nil
}

func TestGapLogSink(t *testing.T) {
	repo := &fakeGapRepo{}
	s := NewGapLogSink(repo)
	require.NoError(t, s.PublishSample(context.Background(), StreamRef{}, &obci.Sample{}))
	require.NoError(t, s.RecordGap(context.Background(), StreamRef{ID: "a", Transport: obci.TransportWifi}, obci.Gap{}))
	assert.Equal(t, "a", repo.id)
	assert.Equal(t, obci.TransportWifi, repo.transport)
}

func TestLogSink_GapWarns(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))
	require.NoError(t, s.PublishSample(context.Background(), StreamRef{ID: "a"}, &obci.Sample{}))
	require.NoError(t, s.RecordGap(context.Background(), StreamRef{ID: "a"}, obci.Gap{Previous: 1, Current: 3, Missing: []uint8{2}}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(1), logs.All()[0].ContextMap()["dropped"])
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	b, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(b)
}
