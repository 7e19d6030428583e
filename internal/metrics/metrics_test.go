package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordPush(t *testing.T) {
	m := New()
	m.RecordPush(true, false, false)
	m.RecordPush(false, true, false)
	m.RecordPush(false, false, true)

	s := m.Snapshot()
	require.Equal(t, uint64(3), s.PushesAttempted)
	require.Equal(t, uint64(1), s.PushesFired)
	require.Equal(t, uint64(1), s.PushesSuppressedCredit)
	require.Equal(t, uint64(1), s.PushesSuppressedCanceled)
}

func TestRecordSend(t *testing.T) {
	m := New()
	m.RecordSend(128, nil)
	m.RecordSend(0, errors.New("boom"))

	s := m.Snapshot()
	require.Equal(t, uint64(2), s.SendOps)
	require.Equal(t, uint64(128), s.BytesSent)
	require.Equal(t, uint64(1), s.SendErrors)
}

func TestPrometheusCollector_Collect(t *testing.T) {
	m := New()
	m.RecordPush(true, false, false)
	m.RecordSwap()

	collector := NewPrometheusCollector(m)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]*dto.MetricFamily{}
	for _, f := range families {
		found[f.GetName()] = f
	}
	require.Contains(t, found, "httpx_pushes_fired_total")
	require.Equal(t, float64(1), found["httpx_pushes_fired_total"].Metric[0].GetCounter().GetValue())
	require.Contains(t, found, "httpx_shadow_swaps_total")
}
