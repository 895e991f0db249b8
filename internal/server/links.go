package server

import (
	"errors"
	"net/http"

	"quick-share/internal/share"
)

// shareLinkHandler handles GET /api/files/share-link/{shareId}.
func (cfg Config) shareLinkHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link, err := cfg.Resolver.ShareLink(r.Context(), r.PathValue("shareId"))
		if err != nil {
			writeShareError(w, r, "share_link_failed", err)
			return
		}
		writeText(w, link)
	})
}

// validateCodeHandler handles GET /api/files/validate-code/{code} and
// answers with the identifier of the batch holding the code.
func (cfg Config) validateCodeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		if !share.ValidShareCode(code) {
			GetMetrics().RecordCodeLookup(false)
			http.Error(w, "Invalid or expired code", http.StatusNotFound)
			return
		}

		shareID, err := cfg.Resolver.ResolveCode(r.Context(), code)
		if err != nil {
			GetMetrics().RecordCodeLookup(false)
			if errors.Is(err, share.ErrNotFound) || errors.Is(err, share.ErrExpired) {
				http.Error(w, "Invalid or expired code", http.StatusNotFound)
				return
			}
			writeShareError(w, r, "validate_code_failed", err)
			return
		}
		GetMetrics().RecordCodeLookup(true)
		writeText(w, shareID)
	})
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
}
