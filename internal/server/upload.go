package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"quick-share/internal/events"
	"quick-share/internal/share"
)

// multipartMemory is how much of a multipart body is kept in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// uploadResp is the JSON response returned after a successful upload.
type uploadResp struct {
	ShareID   string `json:"shareId"`
	ShareLink string `json:"shareLink"`
	ShareCode string `json:"shareCode"`
}

// uploadHandler handles POST /api/files/upload. Every part named "file"
// becomes one file of the batch.
func (cfg Config) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			GetMetrics().RecordUploadError()
			if isMaxBytesError(err) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		headers := r.MultipartForm.File["file"]
		files := make([]share.File, 0, len(headers))
		for _, fh := range headers {
			files = append(files, share.File{
				Name:        SanitizeFilename(fh.Filename),
				ContentType: contentTypeFor(fh),
				Size:        fh.Size,
				Open:        func() (io.ReadCloser, error) { return fh.Open() },
			})
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		res, err := cfg.Uploader.Upload(ctx, files)
		if err != nil {
			GetMetrics().RecordUploadError()
			writeUploadError(w, r, err)
			return
		}

		var total int64
		for _, f := range res.Files {
			total += f.SizeBytes
		}
		GetMetrics().RecordUpload(len(res.Files), total, time.Since(start))

		cfg.publish(r, events.Event{
			Type:       events.ShareCreated,
			ShareID:    res.ShareID,
			FileCount:  len(res.Files),
			TotalBytes: total,
			ExpiresAt:  res.ExpiresAt.Unix(),
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(uploadResp{
			ShareID:   res.ShareID,
			ShareLink: cfg.Resolver.LinkFor(res.ShareID, res.ShareCode),
			ShareCode: res.ShareCode,
		})
	})
}

func isMaxBytesError(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// mime/multipart does not always wrap the reader error.
	return strings.Contains(err.Error(), "request body too large")
}

// publish sends an event without failing the request.
func (cfg Config) publish(r *http.Request, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()
	if err := cfg.Events.Publish(ctx, ev); err != nil {
		Warn("event_publish_failed", map[string]any{
			"rid":      RequestIDFromContext(r.Context()),
			"type":     ev.Type,
			"share_id": ev.ShareID,
			"error":    err.Error(),
		})
	}
}
