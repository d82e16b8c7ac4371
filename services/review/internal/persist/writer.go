// Package persist sequences fire-and-forget writes of whole-collection
// snapshots to a kv.Store.
//
// A Writer holds at most one pending operation and runs at most one backend
// call at a time. Enqueueing while a call is in flight replaces the pending
// operation, so intermediate snapshots are dropped and the newest state is
// always the last one written.
package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/frame-review/internal/platform/logging"
	"github.com/example/frame-review/services/review/internal/kv"
)

type opKind int

const (
	opSet opKind = iota
	opRemove
)

func (k opKind) String() string {
	if k == opRemove {
		return "remove"
	}
	return "set"
}

type op struct {
	kind opKind
	data []byte
	seq  uint64
}

// Writer serialises writes for a single key.
type Writer struct {
	store   kv.Store
	key     string
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	pending *op
	running bool
	seq     uint64
	lastErr error
	waiters []chan struct{}
}

// Options configure a Writer. Zero values take defaults.
type Options struct {
	// Timeout bounds every backend call. Default 5s.
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewWriter(store kv.Store, key string, opts Options) *Writer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	opts.Logger = logging.OrNop(opts.Logger)
	return &Writer{
		store:   store,
		key:     key,
		timeout: opts.Timeout,
		log:     opts.Logger.With(zap.String("key", key)),
	}
}

// Save schedules data to be written under the key. It never blocks on I/O.
func (w *Writer) Save(data []byte) {
	w.enqueue(op{kind: opSet, data: data})
}

// Remove schedules deletion of the key, ordered after every earlier Save.
func (w *Writer) Remove() {
	w.enqueue(op{kind: opRemove})
}

func (w *Writer) enqueue(o op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	o.seq = w.seq
	if w.pending != nil {
		supersededTotal.WithLabelValues(w.key).Inc()
	}
	w.pending = &o
	if !w.running {
		w.running = true
		go w.loop()
	}
}

func (w *Writer) loop() {
	for {
		w.mu.Lock()
		o := w.pending
		w.pending = nil
		if o == nil {
			w.running = false
			for _, ch := range w.waiters {
				close(ch)
			}
			w.waiters = nil
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		err := w.apply(*o)

		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
	}
}

func (w *Writer) apply(o op) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	var err error
	switch o.kind {
	case opRemove:
		err = w.store.Remove(ctx, w.key)
	default:
		err = w.store.Set(ctx, w.key, o.data)
	}
	writeSeconds.WithLabelValues(w.key).Observe(time.Since(start).Seconds())

	if err != nil {
		writesTotal.WithLabelValues(w.key, o.kind.String(), "error").Inc()
		w.log.Error("persist failed", zap.String("op", o.kind.String()), zap.Uint64("seq", o.seq), zap.Error(err))
		return err
	}
	writesTotal.WithLabelValues(w.key, o.kind.String(), "ok").Inc()
	w.log.Debug("persisted", zap.String("op", o.kind.String()), zap.Uint64("seq", o.seq), zap.Int("bytes", len(o.data)))
	return nil
}

// Flush waits until every operation enqueued so far has been applied (or
// superseded) and returns the error of the last applied operation, if any.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		err := w.lastErr
		w.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
