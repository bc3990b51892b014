package validator

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mailverify/internal/cache"
	"mailverify/internal/lookup"
	"mailverify/internal/metrics"
	"mailverify/internal/models"
	"mailverify/internal/ratelimit"
)

// Coarse address shape: local part, '@', domain with at least one dot, no
// whitespace and no further '@' anywhere.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const domainCacheTTL = 15 * time.Minute

// dmarcEntry wraps the lookup result so a cached "domain has no DMARC" is
// distinguishable from a cache miss.
type dmarcEntry struct {
	record *models.DMARCRecord
}

// Verifier composes the verification pipeline for one address: rate-limit
// gate, syntax check, disposable-domain check, then DMARC and SMTP in
// parallel, finishing with status synthesis. All collaborators are injected
// at construction and shared across workers.
type Verifier struct {
	smtp    *lookup.SMTPVerifier
	limiter *ratelimit.Limiter
	metrics *metrics.Tracker
	domains *cache.Store
	log     *logrus.Logger
}

func New(smtp *lookup.SMTPVerifier, limiter *ratelimit.Limiter, tracker *metrics.Tracker, domains *cache.Store, log *logrus.Logger) *Verifier {
	if smtp == nil {
		smtp = lookup.NewSMTPVerifier()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{
		smtp:    smtp,
		limiter: limiter,
		metrics: tracker,
		domains: domains,
		log:     log,
	}
}

// Verify runs the full pipeline and always returns a complete result record;
// no error escapes to the caller. A sample is emitted to the metrics sink on
// every exit path.
func (v *Verifier) Verify(ctx context.Context, email, clientID string) (res models.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out := models.Outcome{
				Error:  models.ErrKindSystem,
				Reason: fmt.Sprintf("verification failed: %v", r),
			}
			ensureLogs(&out, out.Reason)
			res = BuildResult(email, out)
		}
		if v.metrics != nil {
			v.metrics.Record(start, res.IsValid)
		}
		v.log.WithFields(logrus.Fields{
			"email":    email,
			"status":   res.Status,
			"valid":    res.IsValid,
			"duration": time.Since(start).String(),
		}).Debug("verification completed")
	}()

	if v.limiter != nil && clientID != "" && !v.limiter.Check(clientID) {
		return v.reject(email, models.ErrKindRateLimitExceeded, "Rate limit exceeded")
	}

	if !emailPattern.MatchString(email) {
		return v.reject(email, models.ErrKindFormat, "")
	}
	_, domain, _ := splitAddress(email)

	if lookup.IsDisposableDomain(domain) {
		return v.reject(email, models.ErrKindDisposable, "")
	}

	// DMARC is advisory and independent of the SMTP conversation, so both
	// run concurrently.
	var (
		wg    sync.WaitGroup
		dmarc *models.DMARCRecord
		out   models.Outcome
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dmarc = v.lookupDMARC(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		out = v.smtp.Verify(ctx, email)
	}()
	wg.Wait()

	out.DMARC = dmarc
	out.IsCorporate = lookup.IsCorporateDomain(domain)
	out.Duration = time.Since(start)
	ensureLogs(&out, out.Reason)
	return BuildResult(email, out)
}

// reject short-circuits the pipeline before any network work.
func (v *Verifier) reject(email string, kind models.ErrorKind, reason string) models.Result {
	out := models.Outcome{Error: kind, Reason: reason}
	ensureLogs(&out, reason)
	return BuildResult(email, out)
}

// lookupDMARC consults the per-domain cache before hitting DNS, so bulk runs
// against one domain resolve its policy once.
func (v *Verifier) lookupDMARC(ctx context.Context, domain string) *models.DMARCRecord {
	key := "dmarc:" + domain
	if v.domains != nil {
		if cached, ok := v.domains.Get(key); ok {
			return cached.(dmarcEntry).record
		}
	}
	rec := lookup.LookupDMARC(ctx, domain)
	if v.domains != nil {
		v.domains.Set(key, dmarcEntry{record: rec}, domainCacheTTL)
	}
	return rec
}

// ensureLogs guarantees the outcome carries at least one stage entry, even on
// paths that never opened a connection.
func ensureLogs(out *models.Outcome, detail string) {
	if len(out.Logs) > 0 {
		return
	}
	if detail == "" {
		detail = string(out.Error)
	}
	now := time.Now()
	out.Logs = []models.StageLog{{
		Stage:     models.StageConnect,
		StartTime: now,
		EndTime:   now,
		Success:   false,
		Error:     detail,
	}}
}
