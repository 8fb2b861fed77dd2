package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/audit"
	"github.com/oneshare/signal-server-go/internal/model"
)

// Sink persists room snapshots somewhere outside the process.
type Sink interface {
	UpsertRoom(ctx context.Context, room model.Room) error
	DeleteRoom(ctx context.Context, shareID string) error
}

type op struct {
	room    model.Room
	shareID string
	delete  bool
}

// Writer is a bounded write-behind queue in front of a Sink. Enqueueing never
// blocks: when the queue is full the new operation is dropped. Failed writes
// are logged and not retried. Nothing is ever read back.
type Writer struct {
	sink    Sink
	queue   chan op
	timeout time.Duration
	done    chan struct{}
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
}

func NewWriter(sink Sink, size int, timeout time.Duration) *Writer {
	if size <= 0 {
		size = 1
	}
	return &Writer{
		sink:    sink,
		queue:   make(chan op, size),
		timeout: timeout,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (w *Writer) Start() {
	go w.run()
	log.Info().Int("capacity", cap(w.queue)).Msg("room mirror started")
}

// Stop flushes what is already queued and waits for the worker to exit.
// Operations enqueued afterwards are discarded.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	<-w.stopped
	log.Info().
		Int64("written", w.written.Load()).
		Int64("dropped", w.dropped.Load()).
		Int64("failed", w.failed.Load()).
		Msg("room mirror stopped")
}

func (w *Writer) Upsert(room model.Room) {
	w.enqueue(op{room: room, shareID: room.ShareID})
}

func (w *Writer) Delete(shareID string) {
	w.enqueue(op{shareID: shareID, delete: true})
}

func (w *Writer) enqueue(o op) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.queue <- o:
	default:
		w.dropped.Add(1)
		log.Warn().
			Str("shareId", o.shareID).
			Bool("delete", o.delete).
			Msg("room mirror queue full, dropping write")
	}
}

func (w *Writer) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			w.drain()
			return
		case o := <-w.queue:
			w.apply(o)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case o := <-w.queue:
			w.apply(o)
		default:
			return
		}
	}
}

func (w *Writer) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	if o.delete {
		err = w.sink.DeleteRoom(ctx, o.shareID)
	} else {
		err = w.sink.UpsertRoom(ctx, o.room)
	}
	if err != nil {
		w.failed.Add(1)
		audit.ReportError(err, "room mirror write failed", map[string]interface{}{
			"shareId": o.shareID,
			"delete":  o.delete,
		})
		return
	}
	w.written.Add(1)
}

// Pending is the number of queued operations.
func (w *Writer) Pending() int {
	return len(w.queue)
}

func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Writer) Failed() int64 {
	return w.failed.Load()
}
