package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	jobtypes "github.com/yungbote/trainhub-backend/internal/domain/jobs"
	"github.com/yungbote/trainhub-backend/internal/observability"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/platform/sendgrid"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleRunning reclaims jobs whose worker died mid-send.
	StaleRunning time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	SendTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 5 * time.Minute
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = time.Hour
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

// EmailWorker drains the email_job queue through the mail client.
type EmailWorker struct {
	log     *logger.Logger
	repo    repos.EmailJobRepo
	mailer  sendgrid.Client
	metrics *observability.Metrics
	cfg     Config
	now     func() time.Time
}

func NewEmailWorker(baseLog *logger.Logger, repo repos.EmailJobRepo, mailer sendgrid.Client, metrics *observability.Metrics, cfg Config) *EmailWorker {
	return &EmailWorker{
		log:     baseLog.With("component", "EmailWorker"),
		repo:    repo,
		mailer:  mailer,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled and every loop has returned.
func (w *EmailWorker) Run(ctx context.Context) error {
	w.log.Info("Starting email worker pool", "concurrency", w.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *EmailWorker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain while there is work, then wait for the next tick
			for ctx.Err() == nil {
				ok, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("email job claim failed", "worker_id", workerID, "error", err)
					break
				}
				if !ok {
					break
				}
			}
		}
	}
}

// RunOnce claims and processes a single job. It reports false when nothing was runnable.
func (w *EmailWorker) RunOnce(ctx context.Context) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	job, err := w.repo.ClaimNextRunnable(dbc, w.now(), w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("email job panic", "job_id", job.ID, "kind", job.Kind, "panic", r)
				w.fail(dbc, job, fmt.Errorf("panic: %v", r), true)
			}
		}()
		w.process(ctx, job)
	}()
	return true, nil
}

func (w *EmailWorker) process(ctx context.Context, job *jobtypes.EmailJob) {
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	var payload jobtypes.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.To == "" {
		if err == nil {
			err = fmt.Errorf("payload has no recipient")
		}
		w.fail(dbc, job, fmt.Errorf("decode payload: %w", err), false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	start := time.Now()
	res, err := w.mailer.Send(sendCtx, sendgrid.Message{
		To:         payload.To,
		ToName:     payload.ToName,
		Subject:    payload.Subject,
		Text:       payload.Text,
		HTML:       payload.HTML,
		Categories: []string{job.Kind},
	})
	w.metrics.ObserveEmailSend(job.Kind, err, time.Since(start))
	if err != nil {
		w.fail(dbc, job, err, sendgrid.Retryable(err))
		return
	}
	if err := w.repo.MarkSent(dbc, job.ID, w.now()); err != nil {
		// the job will be reclaimed as stale and sent again
		w.log.Error("mark email sent failed", "job_id", job.ID, "error", err)
		return
	}
	msgID := ""
	if res != nil {
		msgID = res.MessageID
	}
	w.log.Debug("email sent", "job_id", job.ID, "kind", job.Kind, "message_id", msgID)
}

func (w *EmailWorker) fail(dbc dbctx.Context, job *jobtypes.EmailJob, cause error, retry bool) {
	msg := cause.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	var err error
	if !retry || job.Attempts >= job.MaxAttempts {
		w.log.Warn("email job dead", "job_id", job.ID, "kind", job.Kind, "attempts", job.Attempts, "error", msg)
		err = w.repo.MarkDead(dbc, job.ID, msg, w.now())
	} else {
		next := w.now().Add(w.backoff(job.Attempts))
		w.log.Warn("email job failed; will retry", "job_id", job.ID, "kind", job.Kind, "attempts", job.Attempts, "next_run_at", next, "error", msg)
		err = w.repo.MarkFailed(dbc, job.ID, msg, next)
	}
	if err != nil {
		w.log.Error("record email failure", "job_id", job.ID, "error", err)
	}
}

// backoff doubles from RetryBase per attempt, capped at RetryMax.
func (w *EmailWorker) backoff(attempts int) time.Duration {
	d := w.cfg.RetryBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.RetryMax {
			return w.cfg.RetryMax
		}
	}
	return d
}
