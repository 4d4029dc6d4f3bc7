package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching and buffering.
type AsyncOptions struct {
	BufferSize     int           // queued events before writes fall back to synchronous
	BatchSize      int           // target events per batch
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // per-batch storage timeout
}

// AsyncWriter batches events and writes them from a single goroutine.
type AsyncWriter struct {
	bw      BatchWriter
	queue   chan pendingEvent
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	options AsyncOptions
}

type pendingEvent struct {
	event  Event
	result chan error
}

// NewAsyncWriter starts the batching goroutine. The returned function stops
// it, flushing queued events first.
func NewAsyncWriter(bw BatchWriter, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		bw:      bw,
		queue:   make(chan pendingEvent, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
	}
	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// Store queues the event and waits for its batch to be written. When the
// buffer is full the event is written synchronously.
func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	select {
	case <-aw.done:
		return ErrStorageNotAvailable
	default:
	}

	result := make(chan error, 1)
	select {
	case aw.queue <- pendingEvent{event: event, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return aw.bw.StoreBatch(ctx, []Event{event})
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	events := make([]Event, 0, aw.options.BatchSize)
	waiters := make([]chan error, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(events) == 0 {
			return
		}
		// Detached from caller contexts so a cancelled request cannot drop
		// the rest of the batch.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		err := aw.bw.StoreBatch(ctx, events)
		cancel()
		for _, w := range waiters {
			w <- err
		}
		events = events[:0]
		waiters = waiters[:0]
	}

	for {
		select {
		case p := <-aw.queue:
			events = append(events, p.event)
			waiters = append(waiters, p.result)
			if len(events) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case p := <-aw.queue:
					events = append(events, p.event)
					waiters = append(waiters, p.result)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the writer and waits for the final flush or ctx expiry.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.once.Do(func() { close(aw.done) })

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
