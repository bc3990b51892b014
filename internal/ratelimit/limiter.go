package ratelimit

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the limiter policy. All fields are runtime-mutable through Apply.
type Config struct {
	RequestsPerHour int   `json:"requestsPerHour"`
	MaxBulkEmails   int   `json:"maxBulkEmails"`
	WindowMs        int64 `json:"windowMs"`
	BlockDuration   int64 `json:"blockDuration"`
}

// Update is a partial config change; nil fields are left untouched.
type Update struct {
	RequestsPerHour *int   `json:"requestsPerHour" validate:"omitempty,min=1,max=1000"`
	MaxBulkEmails   *int   `json:"maxBulkEmails" validate:"omitempty,min=1,max=500"`
	WindowMs        *int64 `json:"windowMs" validate:"omitempty,min=60000,max=86400000"`
	BlockDuration   *int64 `json:"blockDuration" validate:"omitempty,min=300000,max=86400000"`
}

// DefaultConfig matches the documented defaults: 100 admissions per sliding
// hour, bulk cap 100.
func DefaultConfig() Config {
	return Config{
		RequestsPerHour: 100,
		MaxBulkEmails:   100,
		WindowMs:        3600_000,
		BlockDuration:   3600_000,
	}
}

// Limiter is a process-wide sliding-window counter keyed by caller id.
// Check is atomic with respect to concurrent callers.
type Limiter struct {
	mu           sync.Mutex
	cfg          Config
	hits         map[string][]time.Time
	blockedUntil map[string]time.Time
	validate     *validator.Validate
}

func New(cfg Config) *Limiter {
	v := validator.New()
	// Report violations under the wire field names, not the Go ones.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Limiter{
		cfg:          cfg,
		hits:         make(map[string][]time.Time),
		blockedUntil: make(map[string]time.Time),
		validate:     v,
	}
}

// Check purges entries older than the window, counts the remainder for id,
// and either denies (at the limit) or records this admission. A denial blocks
// the id for the configured block duration.
func (l *Limiter) Check(id string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.blockedUntil[id]; ok {
		if now.Before(until) {
			return false
		}
		delete(l.blockedUntil, id)
	}

	recent := l.purgeLocked(id, now)
	if len(recent) >= l.cfg.RequestsPerHour {
		l.blockedUntil[id] = now.Add(time.Duration(l.cfg.BlockDuration) * time.Millisecond)
		return false
	}
	l.hits[id] = append(recent, now)
	return true
}

// Snapshot reports the values for the X-RateLimit-* response headers:
// the limit, the admissions remaining in the current window, and the epoch
// second by which every admission counted now has left the window. A block
// set by a denial is not reflected and lasts longer when BlockDuration
// exceeds WindowMs.
func (l *Limiter) Snapshot(id string) (limit, remaining int, reset int64) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.purgeLocked(id, now)
	limit = l.cfg.RequestsPerHour
	remaining = limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	reset = (now.UnixMilli() + l.cfg.WindowMs + 999) / 1000
	return limit, remaining, reset
}

// purgeLocked drops entries outside the sliding window and stores the result.
// Caller must hold l.mu.
func (l *Limiter) purgeLocked(id string, now time.Time) []time.Time {
	cutoff := now.Add(-time.Duration(l.cfg.WindowMs) * time.Millisecond)
	recent := l.hits[id][:0]
	for _, t := range l.hits[id] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(l.hits, id)
		return nil
	}
	l.hits[id] = recent
	return recent
}

// Config returns the current policy.
func (l *Limiter) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Apply validates a partial update against the allowed ranges and merges it.
// The error names the offending field.
func (l *Limiter) Apply(u Update) (Config, error) {
	if err := l.validate.Struct(u); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return Config{}, fmt.Errorf("invalid value for %s", errs[0].Field())
		}
		return Config{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if u.RequestsPerHour != nil {
		l.cfg.RequestsPerHour = *u.RequestsPerHour
	}
	if u.MaxBulkEmails != nil {
		l.cfg.MaxBulkEmails = *u.MaxBulkEmails
	}
	if u.WindowMs != nil {
		l.cfg.WindowMs = *u.WindowMs
	}
	if u.BlockDuration != nil {
		l.cfg.BlockDuration = *u.BlockDuration
	}
	return l.cfg, nil
}

// StartEviction launches a goroutine that periodically drops stale entries so
// the maps stay bounded under sustained load. It exits when ctx is cancelled.
func (l *Limiter) StartEviction(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
}

func (l *Limiter) evict() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.hits {
		l.purgeLocked(id, now)
	}
	for id, until := range l.blockedUntil {
		if now.After(until) {
			delete(l.blockedUntil, id)
		}
	}
}
