// Package ingest launches the external Garmin collector process.
package ingest

import (
	"context"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/cycletrack/internal/domain"
	"example.com/cycletrack/internal/observability"
)

// JobStore records collector runs in the ingestion job ledger.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.IngestionJob) error
	FinishJob(ctx context.Context, jobID string, state domain.JobState, message *string) error
}

// Runner spawns the collector binary with the user's credentials and
// identifier as arguments, the same CLI surface the Python collector had.
type Runner struct {
	collectorBin string
	jobs         JobStore
	logger       *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(collectorBin string, jobs JobStore, logger *zap.Logger) *Runner {
	return &Runner{collectorBin: collectorBin, jobs: jobs, logger: logger}
}

// Start spawns a detached backfill run and returns immediately. The caller
// never learns whether the process started or finished; a spawn failure is
// logged and recorded in the job ledger only. Registration latency stays
// low at the cost of silent ingestion failures.
func (r *Runner) Start(email, password, userID string) {
	job := r.newJob(userID, domain.JobKindFull)

	cmd := exec.Command(r.collectorBin, email, password, userID)
	if err := cmd.Start(); err != nil {
		r.logger.Error("collector spawn failed",
			zap.String("user_id", userID),
			zap.Error(err))
		r.finishJob(job, domain.JobStateFailed, err.Error())
		return
	}

	observability.RecordJobStarted(string(domain.JobKindFull))
	r.logger.Info("collector started",
		zap.String("user_id", userID),
		zap.Int("pid", cmd.Process.Pid))

	// Reap the process off the request path so the ledger still learns the
	// outcome. Nothing downstream waits on this.
	go func() {
		if err := cmd.Wait(); err != nil {
			r.finishJob(job, domain.JobStateFailed, err.Error())
			return
		}
		r.finishJob(job, domain.JobStateSucceeded, "")
	}()
}

// Refresh runs the daily collector to completion. Output and non-zero exit
// codes are logged, never surfaced to the caller.
func (r *Runner) Refresh(ctx context.Context, email, password, userID string) {
	job := r.newJob(userID, domain.JobKindDaily)
	observability.RecordJobStarted(string(domain.JobKindDaily))

	cmd := exec.CommandContext(ctx, r.collectorBin, email, password, userID, "--daily")
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		r.logger.Info("collector output",
			zap.String("user_id", userID),
			zap.ByteString("output", output))
	}
	if err != nil {
		r.logger.Error("daily refresh failed",
			zap.String("user_id", userID),
			zap.Error(err))
		r.finishJob(job, domain.JobStateFailed, err.Error())
		return
	}

	r.finishJob(job, domain.JobStateSucceeded, "")
}

func (r *Runner) newJob(userID string, kind domain.JobKind) domain.IngestionJob {
	job := domain.IngestionJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		State:     domain.JobStateRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.jobs.CreateJob(context.Background(), job); err != nil {
		r.logger.Warn("job ledger write failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job
}

func (r *Runner) finishJob(job domain.IngestionJob, state domain.JobState, message string) {
	var errText *string
	if message != "" {
		errText = &message
	}
	if state == domain.JobStateFailed {
		observability.RecordJobFailed(string(job.Kind))
	} else {
		observability.RecordJobSucceeded(string(job.Kind))
	}
	if err := r.jobs.FinishJob(context.Background(), job.ID, state, errText); err != nil {
		r.logger.Warn("job ledger update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}
