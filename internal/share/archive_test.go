package share

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

func TestArchive_WriteTo(t *testing.T) {
	store, idx := newMemStore(), newMemIndex()
	u := newTestUploader(store, idx, &fixedClock{t: time.Now()})
	res, err := u.Upload(context.Background(), []File{textFile("a.txt", "hello"), textFile("b.txt", "world!")})
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(store, idx, ResolverConfig{})

	a, err := r.Archive(context.Background(), res.ShareID, "")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	want := map[string]string{"a.txt": "hello", "b.txt": "world!"}
	if len(zr.File) != len(want) {
		t.Fatalf("zip has %d entries, want %d", len(zr.File), len(want))
	}
	for i, f := range zr.File {
		if i == 0 && f.Name != "a.txt" {
			t.Errorf("first entry = %q, want a.txt", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != want[f.Name] {
			t.Errorf("entry %s = %q, want %q", f.Name, body, want[f.Name])
		}
	}
}

func TestArchive_ValidatesBeforeStreaming(t *testing.T) {
	idx := newMemIndex()
	seedBatch(idx, "live0001", "123456", time.Now().Add(time.Hour), "a.txt")
	seedBatch(idx, "dead0001", "654321", time.Now().Add(-time.Hour), "old.txt")
	r := NewResolver(newMemStore(), idx, ResolverConfig{})

	if _, err := r.Archive(context.Background(), "dead0001", "654321"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
	if _, err := r.Archive(context.Background(), "live0001", "999999"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
	if _, err := r.Archive(context.Background(), "nope0000", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestArchive_ReadFailure(t *testing.T) {
	store, idx := newMemStore(), newMemIndex()
	seedBatch(idx, "live0001", "123456", time.Now().Add(time.Hour), "missing.txt")
	r := NewResolver(store, idx, ResolverConfig{})

	a, err := r.Archive(context.Background(), "live0001", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.WriteTo(io.Discard); !errors.Is(err, ErrStorageRead) {
		t.Errorf("expected ErrStorageRead, got %v", err)
	}
}
