package share

import (
	"context"
	"io"
	"time"
)

const (
	ShareIDLength   = 8
	ShareCodeDigits = 6
	MaxCodeAttempts = 5

	DefaultTTL        = 24 * time.Hour
	DefaultPresignTTL = time.Hour
	DefaultBaseURL    = "http://localhost:8080"

	// ArchiveName is the file name offered for zip downloads.
	ArchiveName = "quickshare_files.zip"
)

// BatchStatus tracks how far a batch got through the write path.
type BatchStatus string

const (
	StatusPending          BatchStatus = "pending"
	StatusPartiallyWritten BatchStatus = "partially_written"
	StatusComplete         BatchStatus = "complete"
	StatusFailed           BatchStatus = "failed"
)

// Batch is one upload request's worth of files.
type Batch struct {
	ShareID   string      `db:"share_id"`
	ShareCode string      `db:"share_code"`
	ExpiresAt time.Time   `db:"expires_at"`
	Status    BatchStatus `db:"status"`
	FileCount int         `db:"file_count"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// FileRecord is the metadata kept for one stored object.
type FileRecord struct {
	ShareID     string    `db:"share_id"`
	ObjectKey   string    `db:"object_key"`
	FileName    string    `db:"file_name"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	ShareCode   string    `db:"share_code"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// Expired reports whether the record is past its expiry at now.
// Comparison is done at second granularity; a record is still valid
// during the second it expires in.
func (r FileRecord) Expired(now time.Time) bool {
	return now.Unix() > r.ExpiresAt.Unix()
}

// ObjectKey returns the storage key for a file within a batch.
func ObjectKey(shareID, fileName string) string {
	return shareID + "/" + fileName
}

// File is one part of an upload request.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Result is returned by a successful upload.
type Result struct {
	ShareID   string
	ShareCode string
	ExpiresAt time.Time
	Files     []FileRecord
}

// AccessDescriptor gives a client direct access to one stored object.
type AccessDescriptor struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// ObjectStore is the blob storage the batches are written to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, size int64, r io.Reader, tags map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Stat(ctx context.Context, key string) (int64, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// PrefixRemover deletes every object under a key prefix and reports how
// many were removed.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// CodeReserver claims a share code for a batch. The claim succeeds only
// if the code is unused or its previous holder has expired at now.
// ReleaseShareCode drops a claim, but only while shareID still holds it.
type CodeReserver interface {
	ReserveShareCode(ctx context.Context, code, shareID string, expiresAt, now time.Time) (bool, error)
	ReleaseShareCode(ctx context.Context, code, shareID string) error
}

// RecordReader looks records up by their two keys.
type RecordReader interface {
	RecordsByShareID(ctx context.Context, shareID string) ([]FileRecord, error)
	RecordsByShareCode(ctx context.Context, code string) ([]FileRecord, error)
}

// Index is the metadata store holding batches, records and code
// reservations.
type Index interface {
	CodeReserver
	RecordReader
	CreateBatch(ctx context.Context, b Batch) error
	UpdateBatchStatus(ctx context.Context, shareID string, status BatchStatus, fileCount int) error
	PutRecord(ctx context.Context, rec FileRecord) error
}

// SweepIndex extends Index with what the expired batch sweeper needs.
type SweepIndex interface {
	Index
	ExpiredBatches(ctx context.Context, now time.Time, limit int) ([]Batch, error)
	StaleBatches(ctx context.Context, updatedBefore time.Time, limit int) ([]Batch, error)
	DeleteBatch(ctx context.Context, shareID string) error
}
