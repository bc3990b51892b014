package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mailverify/internal/config"
	"mailverify/internal/metrics"
	"mailverify/internal/models"
	"mailverify/internal/pool"
	"mailverify/internal/queue"
	"mailverify/internal/ratelimit"
	"mailverify/internal/store"
	"mailverify/internal/validator"
)

// server holds the process-lifetime collaborators, constructed explicitly in
// main and threaded through the handlers.
type server struct {
	cfg      config.Config
	verifier *validator.Verifier
	limiter  *ratelimit.Limiter
	tracker  *metrics.Tracker
	pool     *pool.Pool
	store    *store.Store  // nil when Postgres is not configured
	queue    *queue.Client // nil when Redis is not configured
	log      *logrus.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

// clientIP prefers the forwarded address so the limiter keys on the real
// caller when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) setRateHeaders(w http.ResponseWriter, id string) {
	limit, remaining, reset := s.limiter.Snapshot(id)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}

func rateLimited(res models.Result) bool {
	return res.SubStatus != nil && *res.SubStatus == string(models.ErrKindRateLimitExceeded)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"version": "1.0.0",
	})
}

func (s *server) handleValidateEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
		return
	}

	var body struct {
		Email json.RawMessage `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
		return
	}
	// Unmarshalling JSON null into a string is a silent no-op, so it has to
	// be ruled out explicitly.
	var email string
	if body.Email == nil || string(body.Email) == "null" || json.Unmarshal(body.Email, &email) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email is required and must be a string"})
		return
	}

	ip := clientIP(r)
	result := s.verifier.Verify(r.Context(), email, ip)
	s.setRateHeaders(w, ip)

	if rateLimited(result) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Rate limit exceeded"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleValidateEmails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
		return
	}

	var body struct {
		Emails json.RawMessage `json:"emails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
		return
	}
	var emails []string
	if body.Emails == nil || string(body.Emails) == "null" || json.Unmarshal(body.Emails, &emails) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "emails must be an array of strings"})
		return
	}

	maxBulk := s.limiter.Config().MaxBulkEmails
	if len(emails) > maxBulk {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": fmt.Sprintf("Maximum %d emails allowed per request", maxBulk),
		})
		return
	}

	ip := clientIP(r)
	if _, remaining, _ := s.limiter.Snapshot(ip); remaining == 0 {
		s.setRateHeaders(w, ip)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Rate limit exceeded"})
		return
	}

	// Large batches go through the persistent job store when it's available;
	// the response carries a job id instead of inline results.
	if s.store != nil && s.queue != nil && len(emails) > s.cfg.AsyncThreshold {
		s.enqueueJob(w, r.Context(), emails)
		return
	}

	futures := make([]<-chan models.Result, len(emails))
	for i, email := range emails {
		email := email
		futures[i] = s.pool.Submit(func(ctx context.Context) models.Result {
			return s.verifier.Verify(ctx, email, ip)
		})
	}

	results := make([]models.Result, len(emails))
	for i, future := range futures {
		res := <-future
		res.Email = emails[i]
		results[i] = res
	}

	s.setRateHeaders(w, ip)
	writeJSON(w, http.StatusOK, results)
}

func (s *server) enqueueJob(w http.ResponseWriter, ctx context.Context, emails []string) {
	jobID := uuid.New().String()

	if err := s.store.CreateJob(ctx, jobID, len(emails), nil); err != nil {
		s.log.WithError(err).Error("failed to create job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to create job"})
		return
	}
	for _, email := range emails {
		if err := s.queue.Enqueue(ctx, queue.Task{JobID: jobID, Email: email}); err != nil {
			s.log.WithError(err).WithField("job", jobID).Error("failed to enqueue task")
			if ferr := s.store.FailJob(ctx, jobID, "failed to enqueue tasks"); ferr != nil {
				s.log.WithError(ferr).WithField("job", jobID).Error("failed to mark job failed")
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to enqueue job"})
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":       jobID,
		"totalEmails": len(emails),
		"message":     "Job created successfully. Processing started.",
	})
}

type batchResponse struct {
	store.Job
	Results []models.Result `json:"results,omitempty"`
}

func (s *server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Job store is not configured"})
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/validate-emails/batch/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing job id"})
		return
	}

	job, err := s.store.Job(r.Context(), jobID)
	if err == store.ErrJobNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Job not found"})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to fetch job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch job"})
		return
	}

	resp := batchResponse{Job: job}
	if job.Status == store.JobCompleted {
		results, err := s.store.Results(r.Context(), jobID)
		if err != nil {
			s.log.WithError(err).Error("failed to fetch results")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch results"})
			return
		}
		resp.Results = results
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *server) handleRateLimitConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.limiter.Config())
	case http.MethodPost:
		var update ratelimit.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
			return
		}
		cfg, err := s.limiter.Apply(update)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Rate limit configuration updated",
			"config":  cfg,
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
	}
}
