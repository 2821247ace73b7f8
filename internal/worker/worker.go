// Package worker runs the recording finalizer: it drains the finalize queue,
// copies capture artifacts into S3 and flips recording rows to ready.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/internal/recordings"
	"github.com/classlive/backend/pkg/queue"
	"github.com/classlive/backend/pkg/storage"
)

// Finalizer processes recording finalize jobs: download the artifact, upload
// to S3, mark the recording ready.
type Finalizer struct {
	recRepo *recordings.Repository
	s3      *storage.S3
	queue   *queue.Queue
	client  *http.Client
	logger  *zap.Logger
}

// NewFinalizer creates a recording finalizer.
func NewFinalizer(recRepo *recordings.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{
		recRepo: recRepo,
		s3:      s3,
		queue:   q,
		client:  &http.Client{Timeout: 10 * time.Minute},
		logger:  logger,
	}
}

// Process executes one finalize job.
func (f *Finalizer) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingFinalize {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingFinalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := f.recRepo.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("recording not found: %s", payload.RecordingID)
	}
	if rec.Status != models.RecordingStatusProcessing {
		f.logger.Info("recording already finalized",
			zap.String("recording_id", rec.ID.String()), zap.String("status", rec.Status))
		return nil
	}

	// Stream the artifact from the capture pipeline.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.ArtifactRef, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.RecordingKey(payload.SessionID.String(), payload.RecordingID.String())

	s3URL, err := f.s3.Upload(ctx, key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	size := resp.ContentLength
	if size <= 0 {
		// Chunked download; ask S3 for the stored size.
		size, err = f.s3.Confirm(ctx, key)
		if err != nil {
			return fmt.Errorf("confirm upload: %w", err)
		}
	}

	ok, err := f.recRepo.MarkReady(ctx, payload.RecordingID, s3URL, key, size)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if !ok {
		f.logger.Warn("recording state changed under finalizer", zap.String("recording_id", payload.RecordingID.String()))
		return nil
	}

	f.logger.Info("recording finalized",
		zap.String("recording_id", payload.RecordingID.String()),
		zap.String("s3_key", key),
		zap.Int64("size", size))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Once a job
// exhausts its retries the recording is marked errored.
func (f *Finalizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("recording finalizer stopping")
			return
		default:
		}

		job, err := f.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		f.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := f.Process(ctx, job); err != nil {
			f.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			f.fail(ctx, job, err)
			time.Sleep(queue.RetryBackoff)
		}
	}
}

func (f *Finalizer) fail(ctx context.Context, job *queue.Job, cause error) {
	if job.Attempt+1 >= queue.MaxRetries {
		var payload queue.RecordingFinalizePayload
		if err := json.Unmarshal(job.Payload, &payload); err == nil {
			if err := f.recRepo.MarkError(ctx, payload.RecordingID, cause.Error()); err != nil {
				f.logger.Error("mark recording error failed", zap.Error(err), zap.String("recording_id", payload.RecordingID.String()))
			}
		}
	}
	if err := f.queue.Retry(ctx, job); err != nil {
		f.logger.Error("retry enqueue failed", zap.Error(err))
	}
}
