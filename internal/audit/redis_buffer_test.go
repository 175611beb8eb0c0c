package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBuffer(t *testing.T) (*RedisBuffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBuffer(client, "test:audit"), mr
}

func sampleRecord(session string) *Record {
	return &Record{
		Timestamp:        time.Now().UTC().Truncate(time.Second),
		ChatID:           "chat-1",
		UserID:           "user-1",
		SessionID:        session,
		CredentialSource: "personal",
		Model:            "gpt-4o",
		UpstreamMs:       120,
	}
}

func TestBufferEnqueueDrain(t *testing.T) {
	buffer, _ := newTestBuffer(t)

	for i, session := range []string{"s1", "s2", "s3"} {
		if err := buffer.Enqueue(sampleRecord(session)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	n, err := buffer.Len(context.Background())
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}

	records, err := buffer.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Drain() returned %d records, want 3", len(records))
	}
	// FIFO order.
	for i, want := range []string{"s1", "s2", "s3"} {
		if records[i].SessionID != want {
			t.Errorf("records[%d].SessionID = %q, want %q", i, records[i].SessionID, want)
		}
	}
	if records[0].CredentialSource != "personal" || records[0].UpstreamMs != 120 {
		t.Errorf("record did not round-trip: %+v", records[0])
	}
}

func TestBufferDrainRespectsMax(t *testing.T) {
	buffer, _ := newTestBuffer(t)
	for i := 0; i < 5; i++ {
		if err := buffer.Enqueue(sampleRecord("s")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	records, err := buffer.Drain(context.Background(), 2)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Drain(max=2) returned %d records", len(records))
	}

	n, _ := buffer.Len(context.Background())
	if n != 3 {
		t.Errorf("Len() = %d after partial drain, want 3", n)
	}
}

func TestBufferDrainSkipsGarbage(t *testing.T) {
	buffer, mr := newTestBuffer(t)

	if err := buffer.Enqueue(sampleRecord("s1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	mr.Push("test:audit", "not json")
	if err := buffer.Enqueue(sampleRecord("s2")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	records, err := buffer.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Drain() returned %d records, want 2 with garbage skipped", len(records))
	}
	if records[0].SessionID != "s1" || records[1].SessionID != "s2" {
		t.Errorf("unexpected sessions: %q, %q", records[0].SessionID, records[1].SessionID)
	}
}

func TestBufferDrainEmpty(t *testing.T) {
	buffer, _ := newTestBuffer(t)

	records, err := buffer.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Drain() on empty buffer returned %d records", len(records))
	}
}

type fakeBatchWriter struct {
	mu      sync.Mutex
	batches [][]*Record
}

func (f *fakeBatchWriter) WriteBatch(_ context.Context, records []*Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return "fake/key.jsonl", nil
}

func (f *fakeBatchWriter) snapshot() [][]*Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]*Record, len(f.batches))
	copy(out, f.batches)
	return out
}

func TestWorkerFlushOnStop(t *testing.T) {
	buffer, _ := newTestBuffer(t)
	for i := 0; i < 3; i++ {
		if err := buffer.Enqueue(sampleRecord("s")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	writer := &fakeBatchWriter{}
	worker := NewWorker(buffer, writer, 100, time.Hour)
	worker.Start()
	worker.Stop()

	batches := writer.snapshot()
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("batches = %v, want one batch of 3", batches)
	}

	n, _ := buffer.Len(context.Background())
	if n != 0 {
		t.Errorf("Len() = %d after final flush, want 0", n)
	}
}

func TestWorkerFlushOnInterval(t *testing.T) {
	buffer, _ := newTestBuffer(t)
	if err := buffer.Enqueue(sampleRecord("s")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	writer := &fakeBatchWriter{}
	worker := NewWorker(buffer, writer, 100, 10*time.Millisecond)
	worker.Start()
	defer worker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(writer.snapshot()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("worker did not flush within the deadline")
}

func TestWorkerDrainsInBatches(t *testing.T) {
	buffer, _ := newTestBuffer(t)
	for i := 0; i < 5; i++ {
		if err := buffer.Enqueue(sampleRecord("s")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	writer := &fakeBatchWriter{}
	worker := NewWorker(buffer, writer, 2, time.Hour)
	worker.Start()
	worker.Stop()

	batches := writer.snapshot()
	total := 0
	for _, batch := range batches {
		if len(batch) > 2 {
			t.Errorf("batch of %d exceeds batch size 2", len(batch))
		}
		total += len(batch)
	}
	if total != 5 {
		t.Errorf("flushed %d records, want 5", total)
	}
}
