package share

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	tags        map[string]string
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject

	putErr     error
	failPutAt  int // 1-based put call that fails, 0 disables
	puts       int
	getErr     error
	presignErr error
	removed    []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}}
}

func (s *memStore) Put(_ context.Context, key, contentType string, size int64, r io.Reader, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil && (s.failPutAt == 0 || s.failPutAt == s.puts) {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	s.objects[key] = memObject{data: data, contentType: contentType, tags: cp}
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, 0, s.getErr
	}
	o, ok := s.objects[key]
	if !ok {
		return nil, 0, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(o.data)), int64(len(o.data)), nil
}

func (s *memStore) Stat(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok {
		return 0, errors.New("no such key")
	}
	return int64(len(o.data)), nil
}

func (s *memStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://objects.test/" + key + "?ttl=" + ttl.String(), nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.removed = append(s.removed, key)
	return nil
}

func (s *memStore) RemovePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
			n++
		}
	}
	return n, nil
}

type reservation struct {
	shareID   string
	expiresAt time.Time
}

type memIndex struct {
	mu       sync.Mutex
	codes    map[string]reservation
	batches  map[string]Batch
	records  []FileRecord
	reserves int

	reserveFn func(code string) bool // overrides the table when set
	putErr    error
	createErr error
	updateErr map[BatchStatus]error
}

func newMemIndex() *memIndex {
	return &memIndex{codes: map[string]reservation{}, batches: map[string]Batch{}}
}

func (x *memIndex) ReserveShareCode(_ context.Context, code, shareID string, expiresAt, now time.Time) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reserves++
	if x.reserveFn != nil {
		return x.reserveFn(code), nil
	}
	if r, ok := x.codes[code]; ok && !r.expiresAt.Before(now) {
		return false, nil
	}
	x.codes[code] = reservation{shareID: shareID, expiresAt: expiresAt}
	return true, nil
}

func (x *memIndex) ReleaseShareCode(_ context.Context, code, shareID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if r, ok := x.codes[code]; ok && r.shareID == shareID {
		delete(x.codes, code)
	}
	return nil
}

func (x *memIndex) CreateBatch(_ context.Context, b Batch) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.createErr != nil {
		return x.createErr
	}
	x.batches[b.ShareID] = b
	return nil
}

func (x *memIndex) UpdateBatchStatus(_ context.Context, shareID string, status BatchStatus, fileCount int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.updateErr[status]; err != nil {
		return err
	}
	b, ok := x.batches[shareID]
	if !ok {
		return errors.New("no batch")
	}
	b.Status = status
	b.FileCount = fileCount
	x.batches[shareID] = b
	return nil
}

func (x *memIndex) PutRecord(_ context.Context, rec FileRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.putErr != nil {
		return x.putErr
	}
	for i, r := range x.records {
		if r.ShareID == rec.ShareID && r.ObjectKey == rec.ObjectKey {
			x.records[i] = rec
			return nil
		}
	}
	x.records = append(x.records, rec)
	return nil
}

func (x *memIndex) RecordsByShareID(_ context.Context, shareID string) ([]FileRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []FileRecord
	for _, r := range x.records {
		if r.ShareID == shareID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (x *memIndex) RecordsByShareCode(_ context.Context, code string) ([]FileRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []FileRecord
	for _, r := range x.records {
		if r.ShareCode == code {
			out = append(out, r)
		}
	}
	return out, nil
}

func (x *memIndex) ExpiredBatches(_ context.Context, now time.Time, limit int) ([]Batch, error) {
	return x.filterBatches(func(b Batch) bool { return b.ExpiresAt.Before(now) }, limit), nil
}

func (x *memIndex) StaleBatches(_ context.Context, before time.Time, limit int) ([]Batch, error) {
	return x.filterBatches(func(b Batch) bool {
		return b.Status != StatusComplete && b.UpdatedAt.Before(before)
	}, limit), nil
}

func (x *memIndex) filterBatches(keep func(Batch) bool, limit int) []Batch {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []Batch
	for _, b := range x.batches {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShareID < out[j].ShareID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (x *memIndex) DeleteBatch(_ context.Context, shareID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.batches, shareID)
	kept := x.records[:0]
	for _, r := range x.records {
		if r.ShareID != shareID {
			kept = append(kept, r)
		}
	}
	x.records = kept
	for code, r := range x.codes {
		if r.shareID == shareID {
			delete(x.codes, code)
		}
	}
	return nil
}

func textFile(name, body string) File {
	return File{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
