package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForTotal polls until the worker has aggregated n events.
func waitForTotal(t *testing.T, l *QueryLogger, n int64) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := l.Snapshot()
		if snap.TotalQueries >= n {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("telemetry worker did not aggregate %d events in time", n)
	return Snapshot{}
}

func TestRecordAndSnapshot(t *testing.T) {
	logger := NewQueryLogger(Options{})
	defer logger.Close()

	require.True(t, logger.Record(QueryEvent{
		Query:       "how to implement JWT authentication",
		QueryType:   "code_search",
		ResultCount: 5,
		Confidence:  0.9,
		Latency:     20 * time.Millisecond,
	}))
	require.True(t, logger.Record(QueryEvent{
		Query:       "completely unknown thing",
		QueryType:   "documentation",
		ResultCount: 0,
		Latency:     5 * time.Millisecond,
	}))

	snap := waitForTotal(t, logger, 2)
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.QueryTypeCounts["code_search"])
	assert.Equal(t, int64(1), snap.QueryTypeCounts["documentation"])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, []string{"completely unknown thing"}, snap.ZeroResultQueries)
	assert.InDelta(t, 50.0, snap.ZeroResultPercentage(), 0.01)
}

func TestPatternAggregation(t *testing.T) {
	logger := NewQueryLogger(Options{})
	defer logger.Close()

	// Same pattern modulo case and spacing.
	logger.Record(QueryEvent{Query: "JWT Authentication", QueryType: "code_search", ResultCount: 3, Confidence: 0.8})
	logger.Record(QueryEvent{Query: "jwt   authentication", QueryType: "code_search", ResultCount: 5, Confidence: 0.6})

	snap := waitForTotal(t, logger, 2)
	require.Len(t, snap.TopPatterns, 1)
	stats := snap.TopPatterns[0]
	assert.Equal(t, "jwt authentication", stats.Pattern)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(8), stats.TotalResults)
	assert.InDelta(t, 0.7, stats.AvgConfidence, 0.001)
}

func TestRecord_DropsUnderBackpressure(t *testing.T) {
	// Buffer of 1 with a closed worker guarantees the channel fills.
	logger := NewQueryLogger(Options{BufferSize: 1})
	logger.Close()

	// After Close every record is refused.
	assert.False(t, logger.Record(QueryEvent{Query: "a"}))
}

func TestClose_DrainsBufferedEvents(t *testing.T) {
	logger := NewQueryLogger(Options{BufferSize: 64})
	for i := 0; i < 10; i++ {
		logger.Record(QueryEvent{Query: "drain me", QueryType: "code_search", ResultCount: 1})
	}
	logger.Close()

	waitForTotal(t, logger, 10)
}

func TestNormalizePattern(t *testing.T) {
	assert.Equal(t, "jwt authentication", NormalizePattern("  JWT   Authentication "))
	assert.Equal(t, "how implement caching", NormalizePattern("how to implement caching"))
	assert.Equal(t, "(empty)", NormalizePattern(""))
	assert.Equal(t, "(empty)", NormalizePattern("a an to"))
}

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(10*time.Millisecond))
	assert.Equal(t, BucketP100, LatencyToBucket(75*time.Millisecond))
	assert.Equal(t, BucketP500, LatencyToBucket(200*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(time.Second))
}
