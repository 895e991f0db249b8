package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"quick-share/internal/share"
)

// Index is the Postgres backed share.Index.
type Index struct {
	db *sqlx.DB
}

var _ share.SweepIndex = (*Index)(nil)

// NewIndex wraps a pool opened with the pgx driver.
func NewIndex(conn *sql.DB) *Index {
	return &Index{db: sqlx.NewDb(conn, "pgx")}
}

// ReserveShareCode claims code for shareID. An existing reservation is
// taken over only once it has expired; the conditional upsert makes the
// check and the claim one statement.
func (x *Index) ReserveShareCode(ctx context.Context, code, shareID string, expiresAt, now time.Time) (bool, error) {
	res, err := x.db.ExecContext(ctx, `
		INSERT INTO share_codes (code, share_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE
		   SET share_id = EXCLUDED.share_id, expires_at = EXCLUDED.expires_at
		 WHERE share_codes.expires_at < $4`,
		code, shareID, expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("reserve share code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseShareCode deletes the reservation of code if shareID holds it.
func (x *Index) ReleaseShareCode(ctx context.Context, code, shareID string) error {
	_, err := x.db.ExecContext(ctx,
		`DELETE FROM share_codes WHERE code = $1 AND share_id = $2`, code, shareID)
	if err != nil {
		return fmt.Errorf("release share code: %w", err)
	}
	return nil
}

func (x *Index) CreateBatch(ctx context.Context, b share.Batch) error {
	_, err := x.db.NamedExecContext(ctx, `
		INSERT INTO share_batches (share_id, share_code, expires_at, status, file_count, created_at, updated_at)
		VALUES (:share_id, :share_code, :expires_at, :status, :file_count, :created_at, :updated_at)`, b)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (x *Index) UpdateBatchStatus(ctx context.Context, shareID string, status share.BatchStatus, fileCount int) error {
	res, err := x.db.ExecContext(ctx, `
		UPDATE share_batches SET status = $2, file_count = $3, updated_at = now()
		 WHERE share_id = $1`, shareID, string(status), fileCount)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update batch %s: %w", shareID, sql.ErrNoRows)
	}
	return nil
}

// PutRecord inserts a record, replacing an earlier one for the same key.
func (x *Index) PutRecord(ctx context.Context, rec share.FileRecord) error {
	_, err := x.db.NamedExecContext(ctx, `
		INSERT INTO file_records (share_id, object_key, file_name, content_type, size_bytes, share_code, expires_at, created_at)
		VALUES (:share_id, :object_key, :file_name, :content_type, :size_bytes, :share_code, :expires_at, :created_at)
		ON CONFLICT (share_id, object_key) DO UPDATE
		   SET file_name = EXCLUDED.file_name,
		       content_type = EXCLUDED.content_type,
		       size_bytes = EXCLUDED.size_bytes`, rec)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

const recordColumns = `share_id, object_key, file_name, content_type, size_bytes, share_code, expires_at, created_at`

func (x *Index) RecordsByShareID(ctx context.Context, shareID string) ([]share.FileRecord, error) {
	var recs []share.FileRecord
	err := x.db.SelectContext(ctx, &recs, `
		SELECT `+recordColumns+` FROM file_records
		 WHERE share_id = $1
		 ORDER BY created_at, object_key`, shareID)
	if err != nil {
		return nil, fmt.Errorf("records by share id: %w", err)
	}
	return recs, nil
}

func (x *Index) RecordsByShareCode(ctx context.Context, code string) ([]share.FileRecord, error) {
	var recs []share.FileRecord
	err := x.db.SelectContext(ctx, &recs, `
		SELECT `+recordColumns+` FROM file_records
		 WHERE share_code = $1
		 ORDER BY created_at, object_key`, code)
	if err != nil {
		return nil, fmt.Errorf("records by share code: %w", err)
	}
	return recs, nil
}

const batchColumns = `share_id, share_code, expires_at, status, file_count, created_at, updated_at`

func (x *Index) ExpiredBatches(ctx context.Context, now time.Time, limit int) ([]share.Batch, error) {
	var out []share.Batch
	err := x.db.SelectContext(ctx, &out, `
		SELECT `+batchColumns+` FROM share_batches
		 WHERE expires_at < $1
		 ORDER BY expires_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired batches: %w", err)
	}
	return out, nil
}

// StaleBatches returns batches that never reached complete and have not
// been touched since updatedBefore.
func (x *Index) StaleBatches(ctx context.Context, updatedBefore time.Time, limit int) ([]share.Batch, error) {
	var out []share.Batch
	err := x.db.SelectContext(ctx, &out, `
		SELECT `+batchColumns+` FROM share_batches
		 WHERE status <> 'complete' AND updated_at < $1
		 ORDER BY updated_at
		 LIMIT $2`, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("stale batches: %w", err)
	}
	return out, nil
}

// DeleteBatch removes the batch, its records and its code reservation.
// A reservation already taken over by another batch is left alone.
func (x *Index) DeleteBatch(ctx context.Context, shareID string) error {
	tx, err := x.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM file_records WHERE share_id = $1`,
		`DELETE FROM share_codes WHERE share_id = $1`,
		`DELETE FROM share_batches WHERE share_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, shareID); err != nil {
			return fmt.Errorf("delete batch %s: %w", shareID, err)
		}
	}
	return tx.Commit()
}

// Stats reports the number of live batches and their stored bytes.
func (x *Index) Stats(ctx context.Context) (batches int64, bytes int64, err error) {
	row := x.db.QueryRowxContext(ctx, `
		SELECT COUNT(DISTINCT share_id), COALESCE(SUM(size_bytes), 0)
		  FROM file_records WHERE expires_at > now()`)
	err = row.Scan(&batches, &bytes)
	return batches, bytes, err
}
