package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/marcelsud/webhook-sender/webhook/sender"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	stats sender.Stats
}

func (f fakeEngine) Stats() sender.Stats { return f.stats }

// values sums the samples of every family starting with prefix, keyed by
// the value of label
func values(t *testing.T, reg *promclient.Registry, prefix, label string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == label {
					key = l.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				out[key] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func newTestExporter(t *testing.T, collector Collector) (*OTelExporter, *promclient.Registry) {
	t.Helper()
	reg := promclient.NewRegistry()
	oe, err := NewOTelExporter(collector, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = oe.Shutdown(context.Background()) })
	return oe, reg
}

func TestOTelExporter_Recorder(t *testing.T) {
	ctx := context.Background()
	oe, reg := newTestExporter(t, nil)

	oe.RecordAttempt(ctx, 0, webhook.RetryScheduled, 10*time.Millisecond)
	oe.RecordAttempt(ctx, 1, webhook.Success, 5*time.Millisecond)
	oe.RecordTerminal(ctx, webhook.Success, 2)
	oe.RecordAbandoned(ctx)
	oe.RecordAbandoned(ctx)

	attempts := values(t, reg, "webhook_delivery_attempts_total", "stage")
	assert.Equal(t, 1.0, attempts["0"])
	assert.Equal(t, 1.0, attempts["1"])

	terminal := values(t, reg, "webhook_delivery_terminal", "outcome")
	assert.Equal(t, 1.0, terminal["success"])

	perItem := values(t, reg, "webhook_delivery_attempts_per_item", "outcome")
	assert.Equal(t, 1.0, perItem["success"])

	abandoned := values(t, reg, "webhook_delivery_abandoned", "")
	assert.Equal(t, 2.0, abandoned[""])
}

func TestOTelExporter_Gauges(t *testing.T) {
	collector := NewRedisCollector(&fakeStream{name: "q1", length: 7, pending: 3})
	oe, reg := newTestExporter(t, collector)

	oe.WatchEngine("api", fakeEngine{stats: sender.Stats{Stages: []sender.StageStats{
		{Index: 0, QueueDepth: 4, InFlight: 2},
		{Index: 1, Delay: time.Minute, QueueDepth: 1},
	}}})

	assert.Equal(t, 7.0, values(t, reg, "webhook_queue_length", "queue_stream")["q1"])
	assert.Equal(t, 3.0, values(t, reg, "webhook_queue_pending", "queue_stream")["q1"])

	depth := values(t, reg, "webhook_stage_queue_depth", "stage")
	assert.Equal(t, 4.0, depth["0"])
	assert.Equal(t, 1.0, depth["1"])
	assert.Equal(t, 2.0, values(t, reg, "webhook_stage_in_flight", "stage")["0"])
}

func TestOTelExporter_Handler(t *testing.T) {
	oe, _ := newTestExporter(t, nil)
	oe.RecordAttempt(context.Background(), 0, webhook.Success, time.Millisecond)

	rec := httptest.NewRecorder()
	oe.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webhook_delivery_attempts")
}
