package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quick-share/internal/events"
	"quick-share/internal/share"
)

var errNoSuchKey = errors.New("no such key")

// stubStore is an in-memory share.ObjectStore.
type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newStubStore() *stubStore { return &stubStore{objects: map[string][]byte{}} }

func (s *stubStore) Put(_ context.Context, key, _ string, _ int64, r io.Reader, _ map[string]string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *stubStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, 0, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, 0, errNoSuchKey
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (s *stubStore) Stat(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, errNoSuchKey
	}
	return int64(len(data)), nil
}

func (s *stubStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func (s *stubStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *stubStore) BucketExists(context.Context) (bool, error) { return true, nil }

// stubIndex is an in-memory share.Index.
type stubIndex struct {
	mu      sync.Mutex
	codes   map[string]time.Time
	records []share.FileRecord
	full    bool // every code is taken
}

func newStubIndex() *stubIndex { return &stubIndex{codes: map[string]time.Time{}} }

func (x *stubIndex) ReserveShareCode(_ context.Context, code, _ string, expiresAt, now time.Time) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.full {
		return false, nil
	}
	if exp, ok := x.codes[code]; ok && !exp.Before(now) {
		return false, nil
	}
	x.codes[code] = expiresAt
	return true, nil
}

func (x *stubIndex) ReleaseShareCode(_ context.Context, code, _ string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.codes, code)
	return nil
}

func (x *stubIndex) CreateBatch(context.Context, share.Batch) error { return nil }

func (x *stubIndex) UpdateBatchStatus(context.Context, string, share.BatchStatus, int) error {
	return nil
}

func (x *stubIndex) PutRecord(_ context.Context, rec share.FileRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, r := range x.records {
		if r.ShareID == rec.ShareID && r.ObjectKey == rec.ObjectKey {
			x.records[i] = rec
			return nil
		}
	}
	x.records = append(x.records, rec)
	return nil
}

func (x *stubIndex) RecordsByShareID(_ context.Context, shareID string) ([]share.FileRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []share.FileRecord
	for _, r := range x.records {
		if r.ShareID == shareID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (x *stubIndex) RecordsByShareCode(_ context.Context, code string) ([]share.FileRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []share.FileRecord
	for _, r := range x.records {
		if r.ShareCode == code {
			out = append(out, r)
		}
	}
	return out, nil
}

// seed stores a batch directly, bypassing the uploader.
func (x *stubIndex) seed(store *stubStore, shareID, code string, expiresAt time.Time, files map[string]string) {
	for name, body := range files {
		key := share.ObjectKey(shareID, name)
		store.objects[key] = []byte(body)
		x.records = append(x.records, share.FileRecord{
			ShareID:     shareID,
			ObjectKey:   key,
			FileName:    name,
			ContentType: "text/plain",
			SizeBytes:   int64(len(body)),
			ShareCode:   code,
			ExpiresAt:   expiresAt,
			CreatedAt:   expiresAt.Add(-share.DefaultTTL),
		})
	}
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type testEnv struct {
	store   *stubStore
	index   *stubIndex
	events  *recordingPublisher
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	store := newStubStore()
	index := newStubIndex()
	pub := &recordingPublisher{}

	cfg := Config{
		Addr:     ":0",
		Build:    BuildInfo{Version: "test", Commit: "abc123"},
		Uploader: share.NewUploader(store, index, share.NewManager(index), share.UploaderConfig{}),
		Resolver: share.NewResolver(store, index, share.ResolverConfig{BaseURL: "http://share.test"}),
		Events:   pub,
		Storage:  store,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testEnv{store: store, index: index, events: pub, handler: New(cfg).Handler()}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

type part struct {
	name, contentType, body string
}

// multipartRequest builds an upload request with one "file" part per entry.
func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + p.name + `"`}
		if p.contentType != "" {
			h["Content-Type"] = []string{p.contentType}
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.Copy(w, strings.NewReader(p.body)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
