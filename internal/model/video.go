// Package model contains the record types shared across packages.
package model

import "time"

// VideoStatus describes the lifecycle of a video as it moves through the
// pipeline. Transitions only move forward; FAILED is the terminal error edge.
type VideoStatus string

const (
	StatusPendingUpload VideoStatus = "PENDING_UPLOAD"
	StatusProcessing    VideoStatus = "PROCESSING"
	StatusCompleted     VideoStatus = "COMPLETED"
	StatusFailed        VideoStatus = "FAILED"
)

// Terminal reports whether no further transition is expected for s.
func (s VideoStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VideoRecord holds everything tracked for one uploaded video. Field names in
// the JSON tags match the public API contract.
type VideoRecord struct {
	VideoID      string      `json:"videoId"`
	Filename     string      `json:"filename"`
	ContentType  string      `json:"contentType,omitempty"`
	Status       VideoStatus `json:"status"`
	Views        int64       `json:"views"`
	S3Key        string      `json:"s3Key,omitempty"`
	S3Bucket     string      `json:"s3Bucket,omitempty"`
	FileSize     int64       `json:"fileSize,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	ProcessedAt  *time.Time  `json:"processedAt,omitempty"`
	VideoURL     string      `json:"videoUrl,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}
