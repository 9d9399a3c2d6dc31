package storage

import (
	"context"
)

// Storage persists what the collector receives.
type Storage interface {
	// StoreRecords stores a batch of entries in one transaction.
	StoreRecords(ctx context.Context, records []Record) error

	// StoreUpload stores an upload and the entries parsed from it.
	StoreUpload(ctx context.Context, upload Upload, records []Record) error

	// GetUpload returns the upload with the given id, or ErrNotFound.
	GetUpload(ctx context.Context, id string) (*Upload, error)

	// Recent returns up to limit records, newest received first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	HealthCheck(ctx context.Context) HealthStatus

	Close() error
}
