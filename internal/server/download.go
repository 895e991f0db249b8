package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quick-share/internal/events"
	"quick-share/internal/share"
)

// clientRequestHeader switches the download route from a zip stream to a
// JSON list of presigned URLs.
const clientRequestHeader = "X-Client-Request"

// downloadHandler handles GET /api/files/download/{shareId}?code=...
func (cfg Config) downloadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		shareID := r.PathValue("shareId")
		code := r.URL.Query().Get("code")

		if r.Header.Get(clientRequestHeader) == "true" {
			cfg.servePresigned(w, r, shareID, code, start)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
		defer cancel()

		archive, err := cfg.Resolver.Archive(ctx, shareID, code)
		if err != nil {
			GetMetrics().RecordDownloadError()
			writeShareError(w, r, "archive_failed", err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, share.ArchiveName))
		w.WriteHeader(http.StatusOK)

		n, err := archive.WithContext(ctx).WriteTo(w)
		if err != nil {
			// Headers are gone; the client sees a truncated zip.
			GetMetrics().RecordDownloadError()
			Error("archive_stream_failed", map[string]any{
				"rid":      RequestIDFromContext(r.Context()),
				"share_id": shareID,
				"bytes":    n,
			}, err)
			return
		}

		GetMetrics().RecordDownload(modeArchive, n, time.Since(start))
		cfg.publish(r, events.Event{Type: events.ShareDownloaded, ShareID: shareID, Mode: modeArchive})
	})
}

func (cfg Config) servePresigned(w http.ResponseWriter, r *http.Request, shareID, code string, start time.Time) {
	descs, err := cfg.Resolver.Descriptors(r.Context(), shareID, code)
	if err != nil {
		GetMetrics().RecordDownloadError()
		writeShareError(w, r, "presign_failed", err)
		return
	}

	var total int64
	for _, d := range descs {
		total += d.Size
	}
	GetMetrics().RecordDownload(modePresigned, total, time.Since(start))
	cfg.publish(r, events.Event{Type: events.ShareDownloaded, ShareID: shareID, Mode: modePresigned})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(descs)
}
