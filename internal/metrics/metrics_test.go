package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCommit(t *testing.T) {
	before := testutil.ToFloat64(PromotedRowsTotal)
	RecordCommit("promoted", 7, 4)
	RecordCommit("empty", 99, 4)

	assert.Equal(t, before+7, testutil.ToFloat64(PromotedRowsTotal))
	assert.Equal(t, float64(4), testutil.ToFloat64(CurrentVersion))
}

func TestRecordDrift(t *testing.T) {
	before := testutil.ToFloat64(DriftTotal.WithLabelValues("not_found"))
	RecordDrift("not_found", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(DriftTotal.WithLabelValues("not_found")))
}
