package audit

import (
	"context"
	"sync"
	"time"

	"chatgateway/internal/utils"
)

// BatchWriter persists a drained batch somewhere durable.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*Record) (string, error)
}

// Worker periodically drains the Redis buffer and hands batches to the
// writer. One worker per process is enough; multiple pods each flush their
// own batches under distinct keys.
type Worker struct {
	buffer    *RedisBuffer
	writer    BatchWriter
	batchSize int
	interval  time.Duration
	logger    *utils.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a flush worker
func NewWorker(buffer *RedisBuffer, writer BatchWriter, batchSize int, interval time.Duration) *Worker {
	return &Worker{
		buffer:    buffer,
		writer:    writer,
		batchSize: batchSize,
		interval:  interval,
		logger:    utils.NewLogger("audit-worker"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the flush loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.flush()
			case <-w.stopCh:
				// Final drain before exit.
				w.flush()
				return
			}
		}
	}()
}

// Stop flushes remaining records and stops the worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *Worker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		records, err := w.buffer.Drain(ctx, w.batchSize)
		if err != nil {
			w.logger.Error("Failed to drain audit buffer", "error", err)
			return
		}
		if len(records) == 0 {
			return
		}

		if _, err := w.writer.WriteBatch(ctx, records); err != nil {
			w.logger.Error("Failed to write audit batch", "error", err, "count", len(records))
			return
		}

		if len(records) < w.batchSize {
			return
		}
	}
}
