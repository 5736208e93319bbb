package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_Exposed(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.DecodeTotal.WithLabelValues("sample").Add(3)
	m.DroppedSamples.Add(2)
	m.OnlineGauge.Set(1)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	for _, name := range []string{"obci_decode_total", "obci_dropped_samples_total", "obci_stream_online_count", "go_goroutines"} {
		assert.True(t, strings.Contains(string(body), name), "missing %s", name)
	}
	assert.Contains(t, string(body), `obci_decode_total{result="sample"} 3`)
	assert.Contains(t, string(body), "obci_dropped_samples_total 2")
}

func TestNewAppMetrics_DuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	NewAppMetrics(reg)
	assert.Panics(t, func() { NewAppMetrics(reg) })
}
