package driftwatch

import (
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(DefaultJournalConfig(":memory:"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func flagged(ts int64, value, score float64) ClassifiedSample {
	return ClassifiedSample{
		Sample:    Sample{Timestamp: ts, Value: value},
		Score:     score,
		Mean:      10,
		StdDev:    2,
		IsAnomaly: true,
		Kind:      KindSpike,
		Severity:  SeverityWarning,
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t)

	for i := 1; i <= 5; i++ {
		if err := j.Record(flagged(int64(i), float64(i*10), 3.5)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Timestamp != 5 || entries[2].Timestamp != 3 {
		t.Errorf("unexpected order: %+v", entries)
	}
	if entries[0].Kind != string(KindSpike) || entries[0].Severity != string(SeverityWarning) {
		t.Errorf("classification not persisted: %+v", entries[0])
	}
}

func TestJournal_IgnoresNonAnomalies(t *testing.T) {
	j := openTestJournal(t)

	cs := ClassifiedSample{Sample: Sample{Timestamp: 1, Value: 10}, Score: 0.5}
	if err := j.Record(cs); err != nil {
		t.Fatal(err)
	}

	n, err := j.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows, got %d", n)
	}
}

func TestJournal_Since(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now().UnixNano()
	for i := 0; i < 10; i++ {
		ts := base + int64(i)*int64(time.Second)
		if err := j.Record(flagged(ts, 100, 4)); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := time.Unix(0, base+5*int64(time.Second))
	entries, err := j.Since(cutoff, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Errorf("expected 5 entries since cutoff, got %d", len(entries))
	}
}

func TestJournal_After(t *testing.T) {
	j := openTestJournal(t)

	for i := 1; i <= 6; i++ {
		if err := j.Record(flagged(int64(i), 100, 4)); err != nil {
			t.Fatal(err)
		}
	}

	first, err := j.After(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(first))
	}
	// Oldest first for paging.
	if first[0].Timestamp != 1 || first[3].Timestamp != 4 {
		t.Errorf("unexpected page: %+v", first)
	}

	rest, err := j.After(first[3].ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 {
		t.Errorf("expected 2 remaining entries, got %d", len(rest))
	}
}

func TestJournal_Prune(t *testing.T) {
	cfg := DefaultJournalConfig(":memory:")
	cfg.MaxRows = 3
	j, err := OpenJournal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = j.Close() }()

	for i := 1; i <= 10; i++ {
		if err := j.Record(flagged(int64(i), 100, 4)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := j.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows after pruning, got %d", n)
	}

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Timestamp != 10 {
		t.Errorf("expected newest entry retained, got %+v", entries[0])
	}
}

func TestJournal_DrainFromHub(t *testing.T) {
	j := openTestJournal(t)

	hub := NewHub(100, false)
	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	j.Drain(sub)

	for i := 1; i <= 3; i++ {
		hub.Publish(flagged(int64(i), 100, 4))
	}
	hub.Publish(ClassifiedSample{Sample: Sample{Timestamp: 4, Value: 10}})
	hub.Close()

	// Drain goroutine exits when the subscription closes; Close waits.
	deadline := time.After(2 * time.Second)
	for {
		n, err := j.Count()
		if err != nil {
			t.Fatal(err)
		}
		if n == 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected 3 journaled anomalies, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
