package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	hourlyRetention = 24
	dailyRetention  = 30
)

// Sample buckets are identified by their aligned start, in ms since epoch.
type bucket struct {
	validations int64
	successes   int64
	elapsed     time.Duration
}

// Tracker aggregates (startTime, success) samples from the verification
// pipeline. It is an append-only sink; samples may arrive from any worker in
// any order.
type Tracker struct {
	mu      sync.Mutex
	total   int64
	success int64
	failed  int64
	elapsed time.Duration
	hourly  map[int64]*bucket
	daily   map[int64]*bucket
}

func New() *Tracker {
	return &Tracker{
		hourly: make(map[int64]*bucket),
		daily:  make(map[int64]*bucket),
	}
}

// Record ingests one verification sample.
func (t *Tracker) Record(start time.Time, success bool) {
	elapsed := time.Since(start)

	hourKey := start.UTC().Truncate(time.Hour).UnixMilli()
	y, m, d := start.UTC().Date()
	dayKey := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if success {
		t.success++
	} else {
		t.failed++
	}
	t.elapsed += elapsed

	t.ingest(t.hourly, hourKey, success, elapsed, hourlyRetention)
	t.ingest(t.daily, dayKey, success, elapsed, dailyRetention)
}

func (t *Tracker) ingest(series map[int64]*bucket, key int64, success bool, elapsed time.Duration, retention int) {
	b := series[key]
	if b == nil {
		b = &bucket{}
		series[key] = b
	}
	b.validations++
	if success {
		b.successes++
	}
	b.elapsed += elapsed

	// Drop the oldest buckets beyond the retention horizon.
	for len(series) > retention {
		oldest := int64(math.MaxInt64)
		for k := range series {
			if k < oldest {
				oldest = k
			}
		}
		delete(series, oldest)
	}
}

// SeriesEntry is one time-series point of the metrics snapshot.
type SeriesEntry struct {
	Timestamp   int64   `json:"timestamp"`
	Validations int64   `json:"validations"`
	SuccessRate float64 `json:"successRate"`
	AverageTime int64   `json:"averageTime"`
}

// Snapshot is the wire shape served by GET /api/metrics.
type Snapshot struct {
	TotalValidations      int64         `json:"totalValidations"`
	SuccessfulValidations int64         `json:"successfulValidations"`
	FailedValidations     int64         `json:"failedValidations"`
	AverageValidationTime int64         `json:"averageValidationTime"`
	HourlyMetrics         []SeriesEntry `json:"hourlyMetrics"`
	DailyMetrics          []SeriesEntry `json:"dailyMetrics"`
}

// Snapshot renders the current aggregates. Series are sorted ascending by
// bucket timestamp; averages are in rounded milliseconds.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		TotalValidations:      t.total,
		SuccessfulValidations: t.success,
		FailedValidations:     t.failed,
		HourlyMetrics:         renderSeries(t.hourly),
		DailyMetrics:          renderSeries(t.daily),
	}
	if t.total > 0 {
		snap.AverageValidationTime = int64(math.Round(float64(t.elapsed.Milliseconds()) / float64(t.total)))
	}
	return snap
}

func renderSeries(series map[int64]*bucket) []SeriesEntry {
	entries := make([]SeriesEntry, 0, len(series))
	for key, b := range series {
		entry := SeriesEntry{
			Timestamp:   key,
			Validations: b.validations,
		}
		if b.validations > 0 {
			entry.SuccessRate = math.Round(float64(b.successes)/float64(b.validations)*10000) / 100
			entry.AverageTime = int64(math.Round(float64(b.elapsed.Milliseconds()) / float64(b.validations)))
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
	return entries
}
