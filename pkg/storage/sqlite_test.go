package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "collector.db"), 1)
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, level string, received time.Time) Record {
	return Record{
		ID:         id,
		Timestamp:  received.Add(-time.Second),
		Level:      level,
		Message:    "message " + id,
		Source:     SourceRemote,
		ReceivedAt: received,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.db")
	first, err := NewSQLiteStorage(path, 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	first.Close()

	second, err := NewSQLiteStorage(path, 1)
	if err != nil {
		t.Fatalf("Expected reopening to succeed, got %v", err)
	}
	defer second.Close()

	var versions int
	if err := second.db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&versions); err != nil {
		t.Fatal(err)
	}
	if versions != len(migrations) {
		t.Errorf("Expected %d recorded migrations, got %d", len(migrations), versions)
	}
}

func TestStoreAndReadRecords(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	withContext := testRecord("b", "error", now)
	withContext.Context = map[string]interface{}{"userId": "u1"}
	withContext.Error = "timeout"
	withContext.StackTrace = "a\nb"

	if err := s.StoreRecords(ctx, []Record{testRecord("a", "info", now.Add(-time.Minute)), withContext}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Expected 2 records, got %d (%v)", count, err)
	}

	records, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" {
		t.Fatalf("Expected newest record first, got %+v", records)
	}
	got := records[0]
	if got.Context["userId"] != "u1" || got.Error != "timeout" || got.StackTrace != "a\nb" {
		t.Errorf("Expected optional columns to round trip, got %+v", got)
	}
	if !got.ReceivedAt.Equal(now) {
		t.Errorf("Expected received_at %v, got %v", now, got.ReceivedAt)
	}
}

func TestStoreRecordsRejectsUnknownLevel(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.StoreRecords(ctx, []Record{
		testRecord("ok", "info", time.Now()),
		testRecord("bad", "verbose", time.Now()),
	})
	if err == nil {
		t.Fatal("Expected constraint violation")
	}

	count, _ := s.Count(ctx)
	if count != 0 {
		t.Errorf("Expected the whole batch to roll back, got %d records", count)
	}
}

func TestStoreUpload(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	upload := Upload{
		ID:          "up-1",
		Format:      "multipart",
		FileName:    "app_2024-01-01.log",
		FileSize:    512,
		FileCount:   1,
		LogCount:    1,
		ParseErrors: 2,
		UploadTime:  "2024-01-01T10:00:00Z",
		ReceivedAt:  now,
	}
	record := testRecord("r1", "warning", now)
	record.Source = SourceUpload
	record.UploadID = upload.ID

	if err := s.StoreUpload(ctx, upload, []Record{record}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stored, err := s.GetUpload(ctx, "up-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stored.FileName != upload.FileName || stored.ParseErrors != 2 || stored.UploadTime != upload.UploadTime {
		t.Errorf("Unexpected upload: %+v", stored)
	}

	records, _ := s.Recent(ctx, 1)
	if len(records) != 1 || records[0].UploadID != "up-1" {
		t.Errorf("Expected record linked to upload, got %+v", records)
	}

	if _, err := s.GetUpload(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestStorage(t)
	status := s.HealthCheck(context.Background())
	if status.Status != "healthy" {
		t.Errorf("Expected healthy, got %+v", status)
	}
	if status.Details["log_count"] != "0" {
		t.Errorf("Expected log_count 0, got %s", status.Details["log_count"])
	}

	s.Close()
	if status := s.HealthCheck(context.Background()); status.Status != "unhealthy" {
		t.Errorf("Expected unhealthy after close, got %s", status.Status)
	}
}
