package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// BatchConfig holds configuration for the batcher
type BatchConfig struct {
	MaxBatchSize int
	FlushEvery   time.Duration
	SendTimeout  time.Duration
}

// Batcher buffers observations for one dataset and sends them periodically
type Batcher struct {
	config    BatchConfig
	dataset   string
	transport Transport

	pending []observation.Observation
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flushing atomic.Bool // at most one background flush
	sent     atomic.Int64
	failed   atomic.Int64
}

// NewBatcher creates a batcher sending to dataset through transport
func NewBatcher(transport Transport, dataset string, config BatchConfig) *Batcher {
	if config.SendTimeout == 0 {
		config.SendTimeout = 5 * time.Second
	}
	return &Batcher{
		config:    config,
		dataset:   dataset,
		transport: transport,
		pending:   make([]observation.Observation, 0, config.MaxBatchSize),
		done:      make(chan struct{}),
	}
}

// Start starts the periodic flush loop
func (b *Batcher) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	go b.flushLoop()
	return nil
}

// Add queues one observation and starts a background flush once the batch is full
func (b *Batcher) Add(o observation.Observation) {
	b.mu.Lock()
	b.pending = append(b.pending, o)
	shouldFlush := len(b.pending) >= b.config.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		go func() {
			b.flushAll()
			b.flushing.Store(false)
		}()
	}
}

// Flush sends everything pending and returns the first send error
func (b *Batcher) Flush() error {
	for {
		batch := b.take()
		if len(batch) == 0 {
			return nil
		}
		if err := b.send(batch); err != nil {
			return err
		}
	}
}

// Stop stops the flush loop and sends what remains
func (b *Batcher) Stop() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return b.Flush()
}

// Sent returns how many observations were accepted by the server
func (b *Batcher) Sent() int64 {
	return b.sent.Load()
}

// Failed returns how many observations were dropped after a failed send
func (b *Batcher) Failed() int64 {
	return b.failed.Load()
}

func (b *Batcher) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.flushing.CompareAndSwap(false, true) {
				b.flushAll()
				b.flushing.Store(false)
			}
		}
	}
}

// flushAll drains the buffer in the background. Errors are logged since
// there is no caller to return them to.
func (b *Batcher) flushAll() {
	if err := b.Flush(); err != nil {
		log.Warn().Err(err).Str("dataset", b.dataset).Msg("Background flush failed")
	}
}

// take removes at most one batch from the buffer
func (b *Batcher) take() []observation.Observation {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.pending)
	if n == 0 {
		return nil
	}
	if b.config.MaxBatchSize > 0 && n > b.config.MaxBatchSize {
		n = b.config.MaxBatchSize
	}
	batch := make([]observation.Observation, n)
	copy(batch, b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)
	return batch
}

func (b *Batcher) send(batch []observation.Observation) error {
	parent := b.ctx
	if parent == nil || parent.Err() != nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, b.config.SendTimeout)
	defer cancel()

	if err := b.transport.Send(ctx, b.dataset, batch); err != nil {
		b.failed.Add(int64(len(batch)))
		return err
	}
	b.sent.Add(int64(len(batch)))
	return nil
}
