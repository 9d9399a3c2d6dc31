package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/applog/pkg/logger"
	"github.com/kerlexov/applog/pkg/storage"
	"go.uber.org/zap"
)

// batchRequest is the remote sink's envelope.
type batchRequest struct {
	Logs      []json.RawMessage `json:"logs" binding:"required"`
	Timestamp string            `json:"timestamp" binding:"required"`
}

// jsonUploadRequest is the aggregated upload envelope.
type jsonUploadRequest struct {
	Logs       []json.RawMessage `json:"logs" binding:"required"`
	UploadTime string            `json:"uploadTime" binding:"required"`
	FileCount  int               `json:"fileCount" binding:"gte=0"`
	LogCount   int               `json:"logCount" binding:"gte=0"`
}

// multipartUpload holds the text fields of a per-file upload.
type multipartUpload struct {
	FileName   string `form:"fileName" binding:"required"`
	UploadTime string `form:"uploadTime" binding:"required"`
	FileSize   int64  `form:"fileSize" binding:"gte=0"`
}

type invalidEntry struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := s.storage.HealthCheck(ctx)

	statusCode := http.StatusOK
	if health.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    health.Status,
		"timestamp": s.now().UTC(),
		"service":   "applog-collector",
		"storage":   health,
	})
}

func (s *Server) handleIngestLogs(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}

	if len(req.Logs) == 0 {
		abortWithError(c, http.StatusBadRequest, "EMPTY_BATCH", "Batch cannot be empty", nil)
		return
	}
	if limit := s.config.Ingest.MaxBatchSize; len(req.Logs) > limit {
		abortWithError(c, http.StatusBadRequest, "BATCH_TOO_LARGE",
			fmt.Sprintf("Batch size cannot exceed %d entries", limit),
			fmt.Sprintf("Received %d entries", len(req.Logs)))
		return
	}

	received := s.now().UTC()
	records := make([]storage.Record, 0, len(req.Logs))
	var invalid []invalidEntry
	for i, raw := range req.Logs {
		entry, err := logger.ParseEntry(raw)
		if err != nil {
			invalid = append(invalid, invalidEntry{Index: i, Error: err.Error()})
			continue
		}
		records = append(records, s.toRecord(entry, storage.SourceRemote, "", received))
	}

	if len(invalid) > 0 {
		abortWithError(c, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("%d out of %d entries failed validation", len(invalid), len(req.Logs)),
			invalid)
		return
	}

	if err := s.storage.StoreRecords(c.Request.Context(), records); err != nil {
		s.storageFailed(c, err)
		return
	}
	s.observeIngested(storage.SourceRemote, len(records))

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Log entries stored successfully",
		"stored_count": len(records),
	})
}

func (s *Server) handleMultipartUpload(c *gin.Context) {
	var form multipartUpload
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_FORM", "Invalid upload form", err.Error())
		return
	}

	header, err := c.FormFile("logFile")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "MISSING_FILE", "Form field logFile is required", err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_FILE", "Failed to open uploaded file", err.Error())
		return
	}
	defer file.Close()

	received := s.now().UTC()
	uploadID := s.newID()

	records, parseErrors, err := s.parseLines(file, uploadID, received)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_FILE", "Failed to read uploaded file", err.Error())
		return
	}

	upload := storage.Upload{
		ID:          uploadID,
		Format:      "multipart",
		FileName:    form.FileName,
		FileSize:    form.FileSize,
		FileCount:   1,
		LogCount:    len(records),
		ParseErrors: parseErrors,
		UploadTime:  form.UploadTime,
		ReceivedAt:  received,
	}
	s.storeUpload(c, upload, records)
}

func (s *Server) handleJSONUpload(c *gin.Context) {
	var req jsonUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}
	if req.LogCount != len(req.Logs) {
		abortWithError(c, http.StatusBadRequest, "LOG_COUNT_MISMATCH",
			"logCount does not match the number of logs",
			fmt.Sprintf("logCount=%d, logs=%d", req.LogCount, len(req.Logs)))
		return
	}

	received := s.now().UTC()
	uploadID := s.newID()

	records := make([]storage.Record, 0, len(req.Logs))
	parseErrors := 0
	for _, raw := range req.Logs {
		entry, err := logger.ParseEntry(raw)
		if err != nil {
			parseErrors++
			continue
		}
		records = append(records, s.toRecord(entry, storage.SourceUpload, uploadID, received))
	}

	upload := storage.Upload{
		ID:          uploadID,
		Format:      "json",
		FileCount:   req.FileCount,
		LogCount:    len(records),
		ParseErrors: parseErrors,
		UploadTime:  req.UploadTime,
		ReceivedAt:  received,
	}
	s.storeUpload(c, upload, records)
}

func (s *Server) storeUpload(c *gin.Context, upload storage.Upload, records []storage.Record) {
	if s.metrics != nil && upload.ParseErrors > 0 {
		s.metrics.ParseErrors.Add(float64(upload.ParseErrors))
	}

	if err := s.storage.StoreUpload(c.Request.Context(), upload, records); err != nil {
		s.storageFailed(c, err)
		return
	}
	s.observeIngested(storage.SourceUpload, len(records))

	c.JSON(http.StatusCreated, gin.H{
		"id":           upload.ID,
		"log_count":    upload.LogCount,
		"parse_errors": upload.ParseErrors,
	})
}

// parseLines decodes one entry per non-blank line. Lines that are not
// valid entries are counted, not fatal.
func (s *Server) parseLines(r io.Reader, uploadID string, received time.Time) ([]storage.Record, int, error) {
	var records []storage.Record
	parseErrors := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := logger.ParseEntry([]byte(line))
		if err != nil {
			parseErrors++
			continue
		}
		records = append(records, s.toRecord(entry, storage.SourceUpload, uploadID, received))
	}
	return records, parseErrors, scanner.Err()
}

func (s *Server) toRecord(entry logger.LogEntry, source, uploadID string, received time.Time) storage.Record {
	return storage.Record{
		ID:         s.newID(),
		Timestamp:  entry.Timestamp(),
		Level:      entry.Level().String(),
		Message:    entry.Message(),
		Context:    entry.Context(),
		Error:      entry.ErrorString(),
		StackTrace: entry.StackTrace(),
		Source:     source,
		UploadID:   uploadID,
		ReceivedAt: received,
	}
}

func (s *Server) storageFailed(c *gin.Context, err error) {
	if s.metrics != nil {
		s.metrics.StorageErrors.Inc()
	}
	s.log.Error("failed to store logs", zap.String("path", c.Request.URL.Path), zap.Error(err))
	abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to store log entries", nil)
}

func (s *Server) observeIngested(source string, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.LogsIngested.WithLabelValues(source).Add(float64(n))
	}
}
