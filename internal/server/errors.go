package server

import (
	"errors"
	"log"
	"net/http"

	"quick-share/internal/share"
)

// shareErrorStatus maps share errors to a status code and a short body.
func shareErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, share.ErrEmptyBatch):
		return http.StatusBadRequest, "No files uploaded"
	case errors.Is(err, share.ErrNotFound):
		return http.StatusNotFound, "share not found"
	case errors.Is(err, share.ErrExpired):
		return http.StatusGone, "share expired"
	case errors.Is(err, share.ErrInvalidCode):
		return http.StatusForbidden, "invalid share code"
	case errors.Is(err, share.ErrShareCodeExhausted):
		return http.StatusServiceUnavailable, "Unable to generate unique share code"
	case errors.Is(err, share.ErrStorageWrite):
		return http.StatusBadGateway, "upload failed"
	case errors.Is(err, share.ErrStorageRead):
		return http.StatusBadGateway, "storage error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// uploadErrorStatus is shareErrorStatus for the upload route, where any
// failure to store the batch is a server error.
func uploadErrorStatus(err error) (int, string) {
	code, msg := shareErrorStatus(err)
	if errors.Is(err, share.ErrShareCodeExhausted) || errors.Is(err, share.ErrStorageWrite) {
		code = http.StatusInternalServerError
	}
	return code, msg
}

func writeShareError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg := shareErrorStatus(err)
	writeStatus(w, r, op, err, code, msg)
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := uploadErrorStatus(err)
	writeStatus(w, r, "upload_failed", err, code, msg)
}

func writeStatus(w http.ResponseWriter, r *http.Request, op string, err error, code int, msg string) {
	if code >= 500 {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=%s err=%v", rid, op, err)
	}
	http.Error(w, msg, code)
}
