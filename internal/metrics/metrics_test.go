package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAddEnvelope(t *testing.T) {
	before := testutil.ToFloat64(EnvelopeItemsTotal.WithLabelValues("news", "pit"))
	gapsBefore := testutil.ToFloat64(EnvelopeGapsTotal.WithLabelValues("news", "pit_excluded"))

	AddEnvelope("news", "pit", 3, []string{"pit_excluded", "no_data"})

	assert.Equal(t, before+3, testutil.ToFloat64(EnvelopeItemsTotal.WithLabelValues("news", "pit")))
	assert.Equal(t, gapsBefore+1, testutil.ToFloat64(EnvelopeGapsTotal.WithLabelValues("news", "pit_excluded")))
}

func TestIncVerdict(t *testing.T) {
	before := testutil.ToFloat64(GateVerdictsTotal.WithLabelValues("block", "PIT_VIOLATION_GT_CUTOFF"))
	IncVerdict("block", "PIT_VIOLATION_GT_CUTOFF")
	assert.Equal(t, before+1, testutil.ToFloat64(GateVerdictsTotal.WithLabelValues("block", "PIT_VIOLATION_GT_CUTOFF")))
}

func TestObserveDuration_IgnoresUnknownTypes(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveDuration("not a metric", time.Now(), "x")
		ObserveDuration(ProviderRequestDuration, time.Now(), "news")
	})
}
