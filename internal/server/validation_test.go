package server

import (
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty stays empty", "", ""},
		{"plain", "report.pdf", "report.pdf"},
		{"unix path", "docs/2024/report.pdf", "report.pdf"},
		{"windows path", `C:\Users\me\report.pdf`, "report.pdf"},
		{"nul byte", "rep\x00ort.pdf", "report.pdf"},
		{"dots and spaces", " ..hidden. ", "hidden"},
		{"only dots", "...", ""},
		{"dots and spaces", " . . ", ""},
		{"trailing slash", "dir/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".txt")
	if len(got) != 255 {
		t.Errorf("len = %d, want 255", len(got))
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Errorf("extension should survive truncation: %q", got[len(got)-8:])
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     string
	}{
		{"declared wins", "a.bin", "image/png", "image/png"},
		{"octet-stream falls back to extension", "notes.txt", "application/octet-stream", "text/plain"},
		{"missing falls back to extension", "page.html", "", "text/html"},
		{"unknown extension", "blob.qqq", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &multipart.FileHeader{Filename: tt.filename, Header: textproto.MIMEHeader{}}
			if tt.declared != "" {
				fh.Header.Set("Content-Type", tt.declared)
			}
			// Extension lookups may carry a charset parameter.
			if got := contentTypeFor(fh); !strings.HasPrefix(got, tt.want) {
				t.Errorf("contentTypeFor = %q, want prefix %q", got, tt.want)
			}
		})
	}
}
