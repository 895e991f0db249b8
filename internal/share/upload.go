package share

import (
	"context"
	"strconv"
	"time"
)

const defaultContentType = "application/octet-stream"

// UploaderConfig tunes an Uploader. Zero values fall back to defaults.
type UploaderConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// Uploader writes a batch of files under one share identifier and code.
type Uploader struct {
	store   ObjectStore
	index   Index
	manager *Manager
	ttl     time.Duration
	now     func() time.Time
}

func NewUploader(store ObjectStore, index Index, manager *Manager, cfg UploaderConfig) *Uploader {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Uploader{store: store, index: index, manager: manager, ttl: cfg.TTL, now: cfg.Now}
}

// Upload stores every non-empty file of the batch. Files without a name
// or with zero size are skipped. Writes are sequential; the first failure
// marks the batch failed and is returned, leaving earlier files in place.
func (u *Uploader) Upload(ctx context.Context, files []File) (Result, error) {
	kept := make([]File, 0, len(files))
	for _, f := range files {
		if f.Name == "" || f.Size <= 0 {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return Result{}, ErrEmptyBatch
	}

	now := u.now()
	expiresAt := now.Add(u.ttl).Truncate(time.Second)
	shareID := u.manager.NewShareID()

	code, err := u.manager.UniqueShareCode(ctx, shareID, expiresAt, now)
	if err != nil {
		return Result{}, err
	}

	if err := u.index.CreateBatch(ctx, Batch{
		ShareID:   shareID,
		ShareCode: code,
		ExpiresAt: expiresAt,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		// No batch row exists, so the sweeper would never free the code.
		_ = u.index.ReleaseShareCode(context.WithoutCancel(ctx), code, shareID)
		return Result{}, writeErr("create_batch", shareID, err)
	}

	tags := map[string]string{
		"share-id":   shareID,
		"expires-at": strconv.FormatInt(expiresAt.Unix(), 10),
	}

	records := make([]FileRecord, 0, len(kept))
	// Duplicate names inside a batch map to the same key; the last one wins.
	seen := make(map[string]int, len(kept))
	for i, f := range kept {
		rec, err := u.writeFile(ctx, shareID, code, expiresAt, f, tags)
		if err != nil {
			u.markFailed(ctx, shareID, len(records))
			return Result{}, err
		}
		if j, ok := seen[rec.ObjectKey]; ok {
			records[j] = rec
		} else {
			seen[rec.ObjectKey] = len(records)
			records = append(records, rec)
		}
		if i == 0 && len(kept) > 1 {
			if err := u.index.UpdateBatchStatus(ctx, shareID, StatusPartiallyWritten, len(records)); err != nil {
				u.markFailed(ctx, shareID, len(records))
				return Result{}, writeErr("update_batch", shareID, err)
			}
		}
	}

	if err := u.index.UpdateBatchStatus(ctx, shareID, StatusComplete, len(records)); err != nil {
		u.markFailed(ctx, shareID, len(records))
		return Result{}, writeErr("update_batch", shareID, err)
	}

	return Result{ShareID: shareID, ShareCode: code, ExpiresAt: expiresAt, Files: records}, nil
}

func (u *Uploader) writeFile(ctx context.Context, shareID, code string, expiresAt time.Time, f File, tags map[string]string) (FileRecord, error) {
	key := ObjectKey(shareID, f.Name)
	contentType := f.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	body, err := f.Open()
	if err != nil {
		return FileRecord{}, writeErr("open", key, err)
	}
	err = u.store.Put(ctx, key, contentType, f.Size, body, tags)
	body.Close()
	if err != nil {
		return FileRecord{}, writeErr("put", key, err)
	}

	rec := FileRecord{
		ShareID:     shareID,
		ObjectKey:   key,
		FileName:    f.Name,
		ContentType: contentType,
		SizeBytes:   f.Size,
		ShareCode:   code,
		ExpiresAt:   expiresAt,
		CreatedAt:   u.now(),
	}
	if err := u.index.PutRecord(ctx, rec); err != nil {
		// The object would otherwise be unreachable.
		_ = u.store.Remove(context.WithoutCancel(ctx), key)
		return FileRecord{}, writeErr("put_record", key, err)
	}
	return rec, nil
}

func (u *Uploader) markFailed(ctx context.Context, shareID string, written int) {
	_ = u.index.UpdateBatchStatus(context.WithoutCancel(ctx), shareID, StatusFailed, written)
}
