package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording statuses.
const (
	RecordingStatusProcessing = "processing"
	RecordingStatusReady      = "ready"
	RecordingStatusError      = "error"
)

// Recording is one captured media artifact attached to an ended session.
// ArtifactRef is the origin reference handed in by the capture pipeline; the
// finalizer worker copies it to S3 and flips status to ready (or error).
type Recording struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	ArtifactRef     string    `json:"artifact_ref"`
	S3URL           string    `json:"s3_url,omitempty"`
	S3Key           string    `json:"s3_key,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	FileSize        int64     `json:"file_size"`
	Status          string    `json:"status"`
	ErrorReason     string    `json:"error_reason,omitempty"`
	ViewCount       int64     `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RecordingAccess is one replay view logged against a recording.
type RecordingAccess struct {
	ID          uuid.UUID `json:"id"`
	RecordingID uuid.UUID `json:"recording_id"`
	ViewerID    uuid.UUID `json:"viewer_id"`
	AccessedAt  time.Time `json:"accessed_at"`
}
