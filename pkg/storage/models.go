package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	SourceRemote = "remote"
	SourceUpload = "upload"
)

// Record is one log entry as received by the collector.
type Record struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Source     string                 `json:"source"`
	UploadID   string                 `json:"upload_id,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Upload describes one bulk upload request.
type Upload struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	FileName    string    `json:"file_name,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	FileCount   int       `json:"file_count"`
	LogCount    int       `json:"log_count"`
	ParseErrors int       `json:"parse_errors"`
	UploadTime  string    `json:"upload_time"`
	ReceivedAt  time.Time `json:"received_at"`
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}
