package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database and applies pending migrations
func NewSQLiteStorage(connectionString string, maxConnections int) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return nil, err
	}
	if maxConnections > 0 {
		db.SetMaxOpenConns(maxConnections)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
		CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			format TEXT NOT NULL CHECK (format IN ('multipart', 'json')),
			file_name TEXT,
			file_size INTEGER NOT NULL DEFAULT 0,
			file_count INTEGER NOT NULL DEFAULT 0,
			log_count INTEGER NOT NULL DEFAULT 0,
			parse_errors INTEGER NOT NULL DEFAULT 0,
			upload_time TEXT,
			received_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS log_entries (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			level TEXT NOT NULL CHECK (level IN ('debug', 'info', 'warning', 'error', 'fatal')),
			message TEXT NOT NULL,
			context TEXT, -- JSON
			error TEXT,
			stack_trace TEXT,
			source TEXT NOT NULL CHECK (source IN ('remote', 'upload')),
			upload_id TEXT REFERENCES uploads(id) ON DELETE CASCADE,
			received_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries(timestamp);
		CREATE INDEX IF NOT EXISTS idx_log_entries_level ON log_entries(level);
		CREATE INDEX IF NOT EXISTS idx_log_entries_upload_id ON log_entries(upload_id);
		`,
	},
	{
		version: 2,
		sql: `CREATE INDEX IF NOT EXISTS idx_log_entries_received_at ON log_entries(received_at);`,
	},
}

// migrate runs database migrations
func (s *SQLiteStorage) migrate() error {
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range migrations {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", migration.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration version %d: %w", migration.version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.db.Exec(migration.sql); err != nil {
			return fmt.Errorf("failed to apply migration version %d: %w", migration.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO migrations (version) VALUES (?)", migration.version); err != nil {
			return fmt.Errorf("failed to record migration version %d: %w", migration.version, err)
		}
	}

	return nil
}

// StoreRecords stores a batch of log entries
func (s *SQLiteStorage) StoreRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRecords(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// StoreUpload stores the upload row and its records atomically
func (s *SQLiteStorage) StoreUpload(ctx context.Context, upload Upload, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO uploads (
			id, format, file_name, file_size, file_count, log_count, parse_errors, upload_time, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		upload.ID,
		upload.Format,
		nullString(upload.FileName),
		upload.FileSize,
		upload.FileCount,
		upload.LogCount,
		upload.ParseErrors,
		nullString(upload.UploadTime),
		upload.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload %s: %w", upload.ID, err)
	}

	if err := insertRecords(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_entries (
			id, timestamp, level, message, context, error, stack_trace, source, upload_id, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		var contextJSON *string
		if len(record.Context) > 0 {
			data, err := json.Marshal(record.Context)
			if err != nil {
				return fmt.Errorf("failed to marshal context for record %s: %w", record.ID, err)
			}
			str := string(data)
			contextJSON = &str
		}

		_, err := stmt.ExecContext(ctx,
			record.ID,
			record.Timestamp.UTC(),
			record.Level,
			record.Message,
			contextJSON,
			nullString(record.Error),
			nullString(record.StackTrace),
			record.Source,
			nullString(record.UploadID),
			record.ReceivedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", record.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) GetUpload(ctx context.Context, id string) (*Upload, error) {
	var (
		upload     Upload
		fileName   sql.NullString
		uploadTime sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, format, file_name, file_size, file_count, log_count, parse_errors, upload_time, received_at
		FROM uploads WHERE id = ?
	`, id).Scan(
		&upload.ID,
		&upload.Format,
		&fileName,
		&upload.FileSize,
		&upload.FileCount,
		&upload.LogCount,
		&upload.ParseErrors,
		&uploadTime,
		&upload.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload %s: %w", id, err)
	}
	upload.FileName = fileName.String
	upload.UploadTime = uploadTime.String
	return &upload, nil
}

func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, level, message, context, error, stack_trace, source, upload_id, received_at
		FROM log_entries
		ORDER BY received_at DESC, timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var contextJSON, errStr, stackTrace, uploadID sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.Timestamp,
			&record.Level,
			&record.Message,
			&contextJSON,
			&errStr,
			&stackTrace,
			&record.Source,
			&uploadID,
			&record.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if contextJSON.Valid {
			if err := json.Unmarshal([]byte(contextJSON.String), &record.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context for record %s: %w", record.ID, err)
			}
		}
		record.Error = errStr.String
		record.StackTrace = stackTrace.String
		record.UploadID = uploadID.String
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return count, nil
}

// HealthCheck returns the health status of the storage system
func (s *SQLiteStorage) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Details:   make(map[string]string),
	}

	if err := s.db.PingContext(ctx); err != nil {
		status.Status = "unhealthy"
		status.Details["database"] = fmt.Sprintf("ping failed: %v", err)
		return status
	}

	count, err := s.Count(ctx)
	if err != nil {
		status.Status = "unhealthy"
		status.Details["query"] = err.Error()
		return status
	}

	status.Details["database"] = "connected"
	status.Details["log_count"] = fmt.Sprintf("%d", count)

	return status
}

// Close closes the storage connection
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
