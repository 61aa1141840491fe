package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTransitionCountsOutcomes(t *testing.T) {
	before := testutil.ToFloat64(transitionsTotal.WithLabelValues("submit", "error"))
	ObserveTransition("submit", errors.New("boom"))
	ObserveTransition("submit", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("submit", "error")))
}

func TestSetStalledStages(t *testing.T) {
	SetStalledStages(4)
	assert.Equal(t, float64(4), testutil.ToFloat64(stalledStages))
}
