package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestShareLinkHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.index.seed(env.store, "abcd1234", "123456", time.Now().Add(time.Hour), map[string]string{"a.txt": "hello"})
	env.index.seed(env.store, "old00000", "654321", time.Now().Add(-time.Hour), map[string]string{"a.txt": "gone"})

	tests := []struct {
		name     string
		shareID  string
		wantCode int
		wantBody string
	}{
		{name: "live", shareID: "abcd1234", wantCode: http.StatusOK, wantBody: "http://share.test/api/files/download/abcd1234?code=123456"},
		{name: "unknown", shareID: "nope0000", wantCode: http.StatusNotFound},
		{name: "expired", shareID: "old00000", wantCode: http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/api/files/share-link/"+tt.shareID, nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestValidateCodeHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.index.seed(env.store, "abcd1234", "123456", time.Now().Add(time.Hour), map[string]string{"a.txt": "hello"})
	env.index.seed(env.store, "old00000", "654321", time.Now().Add(-time.Hour), map[string]string{"a.txt": "gone"})

	tests := []struct {
		name     string
		code     string
		wantCode int
		wantBody string
	}{
		{name: "live code", code: "123456", wantCode: http.StatusOK, wantBody: "abcd1234"},
		{name: "expired code", code: "654321", wantCode: http.StatusNotFound, wantBody: "Invalid or expired code"},
		{name: "unknown code", code: "111111", wantCode: http.StatusNotFound, wantBody: "Invalid or expired code"},
		{name: "too short", code: "12345", wantCode: http.StatusNotFound, wantBody: "Invalid or expired code"},
		{name: "not digits", code: "12a456", wantCode: http.StatusNotFound, wantBody: "Invalid or expired code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/api/files/validate-code/"+tt.code, nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestValidateCodeHandler_ReusedCodePrefersLiveBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.index.seed(env.store, "old00000", "123456", time.Now().Add(-time.Hour), map[string]string{"a.txt": "gone"})
	env.index.seed(env.store, "new00000", "123456", time.Now().Add(time.Hour), map[string]string{"a.txt": "fresh"})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/files/validate-code/123456", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "new00000" {
		t.Errorf("got %d %q, want 200 new00000", rr.Code, rr.Body.String())
	}
}

func TestUploadThenValidateCode(t *testing.T) {
	env := newTestEnv(t, nil)

	up := env.do(multipartRequest(t, part{name: "a.txt", body: "hello"}))
	if up.Code != http.StatusOK {
		t.Fatalf("upload: %d", up.Code)
	}
	code := env.index.records[0].ShareCode
	shareID := env.index.records[0].ShareID

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/files/validate-code/"+code, nil))
	if rr.Code != http.StatusOK || rr.Body.String() != shareID {
		t.Errorf("got %d %q, want 200 %q", rr.Code, rr.Body.String(), shareID)
	}
}
