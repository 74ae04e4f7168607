package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/kafka"
)

// Publisher writes a batch of events. *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorHooks observe collector activity; any field may be nil.
type CollectorHooks struct {
	OnTracked   func()
	OnDropped   func(n int)
	OnPublished func(n int)
	OnFailed    func(n int)
}

// BatchCollector buffers events and publishes them when the batch fills or
// the flush interval passes, whichever comes first. Track never blocks the
// request path.
type BatchCollector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	flushCh       chan struct{}
	done          chan struct{}
	hooks         CollectorHooks
	logger        *slog.Logger
}

// NewBatchCollector creates a BatchCollector. At most three batches are
// held while the publisher is failing; older events beyond that are
// dropped.
func NewBatchCollector(publisher Publisher, batchSize int, flushInterval time.Duration, hooks CollectorHooks) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffered:   batchSize * 3,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
		hooks:         hooks,
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the flush loop. Cancelling ctx performs a final flush.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-bc.flushCh:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("analytics collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers an event. A full batch wakes the flush loop.
func (bc *BatchCollector) Track(event RerankEvent) {
	bc.mu.Lock()
	if len(bc.buffer) >= bc.maxBuffered {
		bc.mu.Unlock()
		bc.hook(bc.hooks.OnDropped, 1)
		return
	}
	bc.buffer = append(bc.buffer, kafka.Event{Key: string(event.Endpoint), Value: event})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if bc.hooks.OnTracked != nil {
		bc.hooks.OnTracked()
	}
	if full {
		select {
		case bc.flushCh <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop to exit after its context is cancelled.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the number of events waiting to be published.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.publisher.PublishBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		bc.hook(bc.hooks.OnFailed, len(batch))

		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if dropped := len(bc.buffer) - bc.maxBuffered; dropped > 0 {
			bc.buffer = bc.buffer[dropped:]
			bc.mu.Unlock()
			bc.logger.Warn("buffer overflow, oldest events dropped", "dropped", dropped)
			bc.hook(bc.hooks.OnDropped, dropped)
			return
		}
		bc.mu.Unlock()
		return
	}
	bc.hook(bc.hooks.OnPublished, len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
}

func (bc *BatchCollector) hook(fn func(int), n int) {
	if fn != nil {
		fn(n)
	}
}
