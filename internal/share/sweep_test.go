package share

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_Sweep(t *testing.T) {
	now := time.Now()
	store, idx := newMemStore(), newMemIndex()
	u := newTestUploader(store, idx, &fixedClock{t: now.Add(-48 * time.Hour)})

	old, err := u.Upload(context.Background(), []File{textFile("a.txt", "old")})
	if err != nil {
		t.Fatal(err)
	}
	u.now = func() time.Time { return now }
	fresh, err := u.Upload(context.Background(), []File{textFile("b.txt", "new")})
	if err != nil {
		t.Fatal(err)
	}
	// An abandoned batch whose object landed but whose record did not.
	idx.batches["stale001"] = Batch{ShareID: "stale001", Status: StatusFailed, ExpiresAt: now.Add(time.Hour), UpdatedAt: now.Add(-2 * time.Hour)}
	store.objects["stale001/orphan.bin"] = memObject{data: []byte("x")}

	s := NewSweeper(store, idx, time.Hour, 10)
	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Batches != 2 || report.Objects != 2 {
		t.Errorf("report = %+v, want 2 batches and 2 objects", report)
	}
	if _, ok := idx.batches[old.ShareID]; ok {
		t.Error("expired batch should be deleted")
	}
	if _, ok := idx.batches[fresh.ShareID]; !ok {
		t.Error("live batch should survive")
	}
	if _, ok := store.objects[fresh.ShareID+"/b.txt"]; !ok {
		t.Error("live object should survive")
	}
	if _, ok := idx.codes[old.ShareCode]; ok && idx.codes[old.ShareCode].shareID == old.ShareID {
		t.Error("expired code reservation should be released")
	}
}
