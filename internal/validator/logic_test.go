package validator

import (
	"context"
	"testing"

	"mailverify/internal/metrics"
	"mailverify/internal/models"
	"mailverify/internal/ratelimit"
)

func TestVerifyQuickRejects(t *testing.T) {
	tracker := metrics.New()
	v := New(nil, nil, tracker, nil, nil)

	tests := []struct {
		name          string
		email         string
		wantSubStatus string
	}{
		{"no at sign", "notanemail", "format_error"},
		{"no dot in domain", "user@localhost", "format_error"},
		{"embedded whitespace", "user name@example.com", "format_error"},
		{"double at", "user@@example.com", "format_error"},
		{"empty local part", "@example.com", "format_error"},
		{"disposable domain", "user@temp-mail.org", "disposable"},
		{"disposable domain uppercased", "user@TEMP-MAIL.ORG", "disposable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Verify(context.Background(), tt.email, "")
			if res.Status != models.StatusInvalid {
				t.Errorf("Status = %q, want invalid", res.Status)
			}
			if res.SubStatus == nil || *res.SubStatus != tt.wantSubStatus {
				t.Errorf("SubStatus = %v, want %q", res.SubStatus, tt.wantSubStatus)
			}
			if res.IsValid {
				t.Error("IsValid must be false")
			}
		})
	}

	snap := tracker.Snapshot()
	if snap.TotalValidations != int64(len(tests)) {
		t.Errorf("metrics recorded %d samples, want %d", snap.TotalValidations, len(tests))
	}
	if snap.FailedValidations != int64(len(tests)) {
		t.Errorf("metrics recorded %d failures, want %d", snap.FailedValidations, len(tests))
	}
}

func TestVerifyRateLimitGate(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerHour: 1,
		MaxBulkEmails:   100,
		WindowMs:        3600_000,
		BlockDuration:   3600_000,
	})
	v := New(nil, limiter, nil, nil, nil)

	// First admission passes the gate and fails on syntax instead.
	res := v.Verify(context.Background(), "notanemail", "203.0.113.9")
	if res.SubStatus == nil || *res.SubStatus != "format_error" {
		t.Fatalf("first call SubStatus = %v, want format_error", res.SubStatus)
	}

	// Second admission for the same id is denied before any other check.
	res = v.Verify(context.Background(), "notanemail", "203.0.113.9")
	if res.SubStatus == nil || *res.SubStatus != "rate_limit_exceeded" {
		t.Fatalf("second call SubStatus = %v, want rate_limit_exceeded", res.SubStatus)
	}
	if res.Message != "Rate limit exceeded" {
		t.Errorf("Message = %q, want Rate limit exceeded", res.Message)
	}
	if res.Status != models.StatusInvalid || res.IsValid {
		t.Errorf("rate-limited result must be invalid, got %q/%v", res.Status, res.IsValid)
	}

	// A different id is unaffected.
	res = v.Verify(context.Background(), "notanemail", "198.51.100.4")
	if res.SubStatus == nil || *res.SubStatus != "format_error" {
		t.Errorf("other id SubStatus = %v, want format_error", res.SubStatus)
	}
}

func TestVerifyIdempotentQuickReject(t *testing.T) {
	v := New(nil, nil, nil, nil, nil)

	first := v.Verify(context.Background(), "user@temp-mail.org", "")
	second := v.Verify(context.Background(), "user@temp-mail.org", "")

	if first.Status != second.Status || first.IsValid != second.IsValid {
		t.Errorf("results differ across identical calls: %+v vs %+v", first, second)
	}
	if strOrEmpty(first.SubStatus) != strOrEmpty(second.SubStatus) {
		t.Errorf("subStatus differs: %v vs %v", first.SubStatus, second.SubStatus)
	}
}
