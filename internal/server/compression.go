// compression.go - gzip for JSON and text responses.
package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

var gzipPool = sync.Pool{
	New: func() any {
		gz, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return gz
	},
}

// compressionResponseWriter wraps http.ResponseWriter to compress responses.
// The encoding header is set when the status is written so that handlers
// resetting headers (http.Error) cannot drop it.
type compressionResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	wroteHeader bool
}

func (crw *compressionResponseWriter) WriteHeader(code int) {
	if !crw.wroteHeader {
		crw.wroteHeader = true
		crw.Header().Del("Content-Length") // Length will change with compression
		crw.Header().Set("Content-Encoding", "gzip")
	}
	crw.ResponseWriter.WriteHeader(code)
}

func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	if !crw.wroteHeader {
		crw.WriteHeader(http.StatusOK)
	}
	return crw.gz.Write(b)
}

func (crw *compressionResponseWriter) Unwrap() http.ResponseWriter {
	return crw.ResponseWriter
}

// CompressionMiddleware gzips responses for clients that accept it.
// Archive downloads and uploads pass through untouched.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if !acceptsCompression(r) || shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(w)
		crw := &compressionResponseWriter{ResponseWriter: w, gz: gz}
		defer func() {
			// Nothing written means no gzip stream either.
			if crw.wroteHeader {
				_ = gz.Close()
			}
			gzipPool.Put(gz)
		}()

		next.ServeHTTP(crw, r)
	})
}

// acceptsCompression checks if the client accepts gzip encoding.
func acceptsCompression(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// shouldSkipCompression determines if compression should be skipped for this request.
func shouldSkipCompression(r *http.Request) bool {
	path := r.URL.Path

	// Zip streams are already compressed. Presigned lists are small JSON and
	// are still compressed.
	if strings.HasPrefix(path, "/api/files/download/") && r.Header.Get(clientRequestHeader) != "true" {
		return true
	}
	if path == "/api/files/upload" {
		return true
	}
	return false
}
