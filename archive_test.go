package driftwatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func TestArchiver_ExportsJournalBatches(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).UnixNano()
	for i := 1; i <= 5; i++ {
		if err := j.Record(flagged(base+int64(i), 160, 4)); err != nil {
			t.Fatal(err)
		}
	}

	up := newFakeUploader()
	a, err := newArchiver(j, ArchiveConfig{Bucket: "test", BatchLimit: 2}, up)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.runOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 5 entries with a batch limit of 2 -> 3 objects.
	if len(up.objects) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(up.objects))
	}

	total := 0
	for key, body := range up.objects {
		if !strings.Contains(key, "anomalies/2026/08/30/") {
			t.Errorf("unexpected object key %q", key)
		}
		entries, err := decodeBatch(body, nil)
		if err != nil {
			t.Fatal(err)
		}
		total += len(entries)
	}
	if total != 5 {
		t.Errorf("expected 5 archived entries, got %d", total)
	}

	// A second run with no new rows uploads nothing.
	before := len(up.objects)
	if err := a.runOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(up.objects) != before {
		t.Error("expected no new objects without new journal rows")
	}
}

func TestArchiver_ResumesAfterLastExportedRow(t *testing.T) {
	j := openTestJournal(t)
	for i := 1; i <= 2; i++ {
		if err := j.Record(flagged(int64(i), 160, 4)); err != nil {
			t.Fatal(err)
		}
	}

	up := newFakeUploader()
	a, err := newArchiver(j, ArchiveConfig{Bucket: "test"}, up)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.runOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := j.Record(flagged(3, 170, 5)); err != nil {
		t.Fatal(err)
	}
	if err := a.runOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(up.objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(up.objects))
	}

	total := 0
	for _, body := range up.objects {
		entries, err := decodeBatch(body, nil)
		if err != nil {
			t.Fatal(err)
		}
		total += len(entries)
	}
	// No row exported twice.
	if total != 3 {
		t.Errorf("expected 3 archived entries total, got %d", total)
	}
}

func TestArchiver_SealedBatches(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Record(flagged(1, 160, 4)); err != nil {
		t.Fatal(err)
	}

	up := newFakeUploader()
	a, err := newArchiver(j, ArchiveConfig{Bucket: "test", EncryptionPassword: "pw"}, up)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.runOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	for key, body := range up.objects {
		if !strings.HasSuffix(key, ".sealed") {
			t.Errorf("expected sealed object suffix, got %q", key)
		}
		if _, err := decodeBatch(body, nil); err == nil {
			t.Error("sealed batch decoded without the key")
		}
		enc, err := newBatchEncryptor(nil, "pw")
		if err != nil {
			t.Fatal(err)
		}
		entries, err := decodeBatch(body, enc)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Value != 160 {
			t.Errorf("unexpected entries: %+v", entries)
		}
	}
}

func TestArchiver_StartStop(t *testing.T) {
	j := openTestJournal(t)
	up := newFakeUploader()
	a, err := newArchiver(j, ArchiveConfig{Bucket: "test", Interval: Duration(10 * time.Millisecond)}, up)
	if err != nil {
		t.Fatal(err)
	}

	a.Start(context.Background())
	if err := j.Record(flagged(1, 160, 4)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		up.mu.Lock()
		n := len(up.objects)
		up.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("archiver never exported")
		case <-time.After(10 * time.Millisecond):
		}
	}
	a.Stop()
}
