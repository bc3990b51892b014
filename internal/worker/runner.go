package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"mailverify/internal/queue"
	"mailverify/internal/store"
	"mailverify/internal/validator"
)

// Runner drains the bulk-job queue: one task at a time, verify, persist,
// bump job progress. Admission control happened when the job was accepted,
// so tasks are not re-gated here.
type Runner struct {
	Queue    *queue.Client
	Store    *store.Store
	Verifier *validator.Verifier
	Timeout  time.Duration
	Log      *logrus.Logger
}

// Start blocks, processing tasks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log.Info("worker started, waiting for tasks")
	for {
		task, err := r.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("worker stopping")
				return
			}
			log.WithError(err).Error("queue read failed, backing off")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := r.Store.MarkProcessing(ctx, task.JobID); err != nil {
			log.WithError(err).WithField("job", task.JobID).Error("failed to mark job processing")
		}

		taskCtx, cancel := context.WithTimeout(ctx, timeout)
		result := r.Verifier.Verify(taskCtx, task.Email, "")
		cancel()
		result.Email = task.Email

		if err := r.Store.AppendResult(ctx, task.JobID, result); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"job":   task.JobID,
				"email": task.Email,
			}).Error("failed to save result")
			continue
		}

		log.WithFields(logrus.Fields{
			"job":    task.JobID,
			"email":  task.Email,
			"status": result.Status,
		}).Info("task processed")
	}
}
