// validation.go - Input validation and sanitization helpers
package server

import (
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// SanitizeFilename removes potentially dangerous characters from filenames.
// A name with nothing usable left (empty, dots or spaces only, a bare
// directory) comes back empty so the upload path skips it.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return ""
	}

	// Browsers on some platforms send the full client path.
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}

	filename = strings.ReplaceAll(filename, "\x00", "")

	// Trim spaces and dots from start/end
	filename = strings.Trim(filename, " .")

	// Limit length
	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 32 {
			ext = ""
		}
		nameWithoutExt := filename[:len(filename)-len(ext)]
		filename = nameWithoutExt[:255-len(ext)] + ext
	}

	return filename
}

// contentTypeFor picks the part's declared content type, falling back to
// one derived from the file extension.
func contentTypeFor(fh *multipart.FileHeader) string {
	ct := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
