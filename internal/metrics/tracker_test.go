package metrics

import (
	"testing"
	"time"
)

func TestTrackerTotals(t *testing.T) {
	tr := New()

	start := time.Now().Add(-10 * time.Millisecond)
	tr.Record(start, true)
	tr.Record(start, true)
	tr.Record(start, false)

	snap := tr.Snapshot()
	if snap.TotalValidations != 3 {
		t.Errorf("TotalValidations = %d, want 3", snap.TotalValidations)
	}
	if snap.SuccessfulValidations != 2 {
		t.Errorf("SuccessfulValidations = %d, want 2", snap.SuccessfulValidations)
	}
	if snap.FailedValidations != 1 {
		t.Errorf("FailedValidations = %d, want 1", snap.FailedValidations)
	}
	if snap.AverageValidationTime < 0 {
		t.Errorf("AverageValidationTime = %d, must be non-negative", snap.AverageValidationTime)
	}
}

func TestTrackerSeries(t *testing.T) {
	tr := New()
	start := time.Now()
	tr.Record(start, true)
	tr.Record(start, false)

	snap := tr.Snapshot()

	var hourlyTotal, dailyTotal int64
	for _, e := range snap.HourlyMetrics {
		hourlyTotal += e.Validations
		if e.Timestamp%int64(time.Hour/time.Millisecond) != 0 {
			t.Errorf("hourly timestamp %d is not bucket-aligned", e.Timestamp)
		}
	}
	for _, e := range snap.DailyMetrics {
		dailyTotal += e.Validations
	}
	if hourlyTotal != 2 || dailyTotal != 2 {
		t.Errorf("series totals = %d hourly / %d daily, want 2 / 2", hourlyTotal, dailyTotal)
	}

	// Both samples share a bucket unless the test straddled a boundary, so
	// the success rate of the only populated bucket is 50%.
	if len(snap.HourlyMetrics) == 1 && snap.HourlyMetrics[0].SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", snap.HourlyMetrics[0].SuccessRate)
	}
}

func TestTrackerRetention(t *testing.T) {
	tr := New()

	// Spread samples across 40 synthetic hours; only 24 buckets survive.
	base := time.Now().Add(-40 * time.Hour)
	for i := 0; i < 40; i++ {
		tr.Record(base.Add(time.Duration(i)*time.Hour), true)
	}

	snap := tr.Snapshot()
	if len(snap.HourlyMetrics) > 24 {
		t.Errorf("hourly retention = %d buckets, want at most 24", len(snap.HourlyMetrics))
	}
	if len(snap.DailyMetrics) > 30 {
		t.Errorf("daily retention = %d buckets, want at most 30", len(snap.DailyMetrics))
	}
	if snap.TotalValidations != 40 {
		t.Errorf("TotalValidations = %d, want 40 (totals outlive buckets)", snap.TotalValidations)
	}

	// Entries are sorted ascending.
	for i := 1; i < len(snap.HourlyMetrics); i++ {
		if snap.HourlyMetrics[i].Timestamp <= snap.HourlyMetrics[i-1].Timestamp {
			t.Fatal("hourly series is not sorted ascending")
		}
	}
}
