package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 网关业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=limit|rate
	TCPBytesReceived prometheus.Counter
	SerialBytesRead  prometheus.Counter

	FramesTotal     *prometheus.CounterVec // labels: transport
	DecodeTotal     *prometheus.CounterVec // labels: result=sample|failure|unrecognized
	PacketTypeTotal *prometheus.CounterVec // labels: type
	DaisyMerged     prometheus.Counter
	DroppedSamples  prometheus.Counter
	DiscardedBytes  prometheus.Counter
	SinkErrors      *prometheus.CounterVec // labels: sink

	OnlineGauge prometheus.Gauge // 当前活跃数据流
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcp_reject_total",
			Help: "Rejected TCP connections by reason.",
		}, []string{"reason"}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		SerialBytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_read_total",
			Help: "Total bytes read from the serial dongle.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obci_frames_total",
			Help: "Framed 33-byte packets by transport.",
		}, []string{"transport"}),
		DecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obci_decode_total",
			Help: "Packet decode outcomes.",
		}, []string{"result"}),
		PacketTypeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obci_packet_type_total",
			Help: "Packets by stop-byte type code.",
		}, []string{"type"}),
		DaisyMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obci_daisy_merged_total",
			Help: "16-channel samples assembled from two halves.",
		}),
		DroppedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obci_dropped_samples_total",
			Help: "Sample numbers missing from the sequence.",
		}),
		DiscardedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obci_discarded_bytes_total",
			Help: "Unframed bytes discarded by the bounded stream buffer.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obci_sink_errors_total",
			Help: "Downstream sink failures.",
		}, []string{"sink"}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "obci_stream_online_count",
			Help: "Current number of active device streams.",
		}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPRejected, m.TCPBytesReceived, m.SerialBytesRead,
		m.FramesTotal, m.DecodeTotal, m.PacketTypeTotal, m.DaisyMerged,
		m.DroppedSamples, m.DiscardedBytes, m.SinkErrors, m.OnlineGauge,
	)
	return m
}
