package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Candles.Inc()
	m.ZoneEvents.WithLabelValues("created").Add(2)
	m.Vetoes.WithLabelValues("position_open").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Candles))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ZoneEvents.WithLabelValues("created")))

	n, err := testutil.GatherAndCount(reg, "fvg_risk_vetoes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_NilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		m := New(nil)
		m.Equity.Set(10)
	})
}
