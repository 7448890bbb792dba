// Package telemetry records search query patterns for local analysis.
// Recording is fire-and-forget: a bounded channel feeds a single worker
// goroutine, and events are dropped under backpressure so the search hot
// path never blocks on telemetry. All data stays in process.
package telemetry

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a search latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one completed search, recorded after the response is
// already on its way to the caller.
type QueryEvent struct {
	Query        string
	QueryType    string
	RepositoryID string
	ResultCount  int
	Confidence   float64
	Latency      time.Duration
	Timestamp    time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// PatternStats aggregates events sharing a normalized query pattern.
type PatternStats struct {
	Pattern       string
	QueryType     string
	Count         int64
	ZeroResults   int64
	TotalResults  int64
	TotalLatency  time.Duration
	LastSeen      time.Time
	AvgConfidence float64
}

// Snapshot is an immutable view of aggregated telemetry.
type Snapshot struct {
	TotalQueries        int64
	ZeroResultCount     int64
	DroppedEvents       int64
	QueryTypeCounts     map[string]int64
	LatencyDistribution map[LatencyBucket]int64
	TopPatterns         []PatternStats
	ZeroResultQueries   []string
	Since               time.Time
}

// ZeroResultPercentage returns the share of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Options configures the query logger.
type Options struct {
	// BufferSize bounds the event channel (default: 256).
	BufferSize int

	// PatternCapacity bounds the LRU of aggregated patterns (default: 500).
	PatternCapacity int

	// ZeroResultCapacity bounds the retained zero-result queries
	// (default: 100).
	ZeroResultCapacity int

	// Logger receives drop warnings; nil discards them.
	Logger *slog.Logger
}

// QueryLogger aggregates query events off the search hot path.
type QueryLogger struct {
	events chan QueryEvent
	done   chan struct{}
	logger *slog.Logger

	mu          sync.RWMutex
	patterns    *lru.Cache[string, *PatternStats]
	typeCounts  map[string]int64
	latency     map[LatencyBucket]int64
	zeroResults *ringBuffer[string]
	total       int64
	zeroCount   int64
	dropped     int64
	since       time.Time

	closeOnce sync.Once
}

// NewQueryLogger starts the telemetry worker.
func NewQueryLogger(opts Options) *QueryLogger {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.PatternCapacity <= 0 {
		opts.PatternCapacity = 500
	}
	if opts.ZeroResultCapacity <= 0 {
		opts.ZeroResultCapacity = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	patterns, _ := lru.New[string, *PatternStats](opts.PatternCapacity)
	l := &QueryLogger{
		events:      make(chan QueryEvent, opts.BufferSize),
		done:        make(chan struct{}),
		logger:      opts.Logger,
		patterns:    patterns,
		typeCounts:  make(map[string]int64),
		latency:     make(map[LatencyBucket]int64),
		zeroResults: newRingBuffer[string](opts.ZeroResultCapacity),
		since:       time.Now(),
	}
	go l.run()
	return l
}

// Record submits an event without blocking. Returns false if the event
// was dropped under backpressure or after Close.
func (l *QueryLogger) Record(event QueryEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- event:
		return true
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		if dropped == 1 || dropped%100 == 0 {
			l.logger.Warn("telemetry_events_dropped", slog.Int64("dropped", dropped))
		}
		return false
	}
}

func (l *QueryLogger) run() {
	for {
		select {
		case event := <-l.events:
			l.aggregate(event)
		case <-l.done:
			// Drain whatever was buffered before shutdown.
			for {
				select {
				case event := <-l.events:
					l.aggregate(event)
				default:
					return
				}
			}
		}
	}
}

func (l *QueryLogger) aggregate(event QueryEvent) {
	pattern := NormalizePattern(event.Query)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	l.typeCounts[event.QueryType]++
	l.latency[LatencyToBucket(event.Latency)]++
	if event.IsZeroResult() {
		l.zeroCount++
		l.zeroResults.add(event.Query)
	}

	stats, ok := l.patterns.Get(pattern)
	if !ok {
		stats = &PatternStats{Pattern: pattern, QueryType: event.QueryType}
		l.patterns.Add(pattern, stats)
	}
	stats.Count++
	stats.TotalResults += int64(event.ResultCount)
	stats.TotalLatency += event.Latency
	stats.LastSeen = event.Timestamp
	stats.AvgConfidence += (event.Confidence - stats.AvgConfidence) / float64(stats.Count)
	if event.IsZeroResult() {
		stats.ZeroResults++
	}
}

// Snapshot returns a copy of the aggregated state.
func (l *QueryLogger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		TotalQueries:        l.total,
		ZeroResultCount:     l.zeroCount,
		DroppedEvents:       l.dropped,
		QueryTypeCounts:     make(map[string]int64, len(l.typeCounts)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(l.latency)),
		ZeroResultQueries:   l.zeroResults.items(),
		Since:               l.since,
	}
	for k, v := range l.typeCounts {
		snap.QueryTypeCounts[k] = v
	}
	for k, v := range l.latency {
		snap.LatencyDistribution[k] = v
	}
	for _, key := range l.patterns.Keys() {
		if stats, ok := l.patterns.Peek(key); ok {
			snap.TopPatterns = append(snap.TopPatterns, *stats)
		}
	}
	return snap
}

// Close stops the worker after draining buffered events. Subsequent
// Record calls are dropped.
func (l *QueryLogger) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// NormalizePattern reduces a query to a comparable pattern: lowercased,
// whitespace-collapsed, short tokens removed.
func NormalizePattern(query string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return "(empty)"
	}
	return strings.Join(terms, " ")
}

// ringBuffer is a fixed-capacity FIFO buffer. Callers hold the logger
// lock; the buffer itself is not synchronized.
type ringBuffer[T any] struct {
	entries  []T
	head     int
	size     int
	capacity int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &ringBuffer[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

func (b *ringBuffer[T]) add(entry T) {
	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// items returns buffered entries oldest first.
func (b *ringBuffer[T]) items() []T {
	if b.size == 0 {
		return nil
	}
	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.entries[:b.size])
	} else {
		copy(out, b.entries[b.head:])
		copy(out[b.capacity-b.head:], b.entries[:b.head])
	}
	return out
}
