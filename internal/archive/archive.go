// Package archive feeds created memories into the long-term archive in the
// background. Submissions are non-blocking so the dispatch path never waits
// on an embedding call or a database insert.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/k00jax/omi/pkg/memory"
	"github.com/k00jax/omi/pkg/provider/embeddings"
)

const (
	defaultQueueSize    = 64
	defaultStoreTimeout = 15 * time.Second
)

// Archiver embeds and stores memories asynchronously. Records arrive via
// [Archiver.Submit] and are processed by [Archiver.Run] in a single worker
// goroutine. When the archive backend fails the archiver marks itself
// degraded and keeps accepting submissions; the failing record is logged
// and dropped rather than retried, since the memory already exists in the
// primary memory backends.
//
// All methods are safe for concurrent use.
type Archiver struct {
	store    memory.Archive
	embedder embeddings.Provider
	timeout  time.Duration

	queue    chan memory.Record
	degraded atomic.Bool
	dropped  atomic.Int64
}

// Option configures an [Archiver].
type Option func(*Archiver)

// WithEmbedder attaches an embedding provider. Records are stored with an
// embedding vector when one can be computed; embedding failures degrade to
// storing the record without a vector.
func WithEmbedder(p embeddings.Provider) Option {
	return func(a *Archiver) { a.embedder = p }
}

// WithQueueSize sets the submission buffer size. The default is 64.
func WithQueueSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.queue = make(chan memory.Record, n)
		}
	}
}

// WithStoreTimeout bounds a single embed-and-store cycle. The default is 15
// seconds.
func WithStoreTimeout(d time.Duration) Option {
	return func(a *Archiver) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New creates an [Archiver] writing to store. Call [Archiver.Run] to start
// processing submissions.
func New(store memory.Archive, opts ...Option) *Archiver {
	a := &Archiver{
		store:   store,
		timeout: defaultStoreTimeout,
		queue:   make(chan memory.Record, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit queues a record for archival without blocking. Returns false when
// the buffer is full and the record was dropped.
func (a *Archiver) Submit(rec memory.Record) bool {
	select {
	case a.queue <- rec:
		return true
	default:
		a.dropped.Add(1)
		slog.Warn("archive: submission buffer full, dropping record",
			"user_id", rec.UserID,
			"category", rec.Category,
		)
		return false
	}
}

// Run processes queued records until ctx is cancelled. It always returns
// nil so that an errgroup running the pipeline is not torn down by archive
// trouble; failures surface through [Archiver.IsDegraded] and logs.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-a.queue:
			a.process(ctx, rec)
		}
	}
}

// process embeds and stores a single record.
func (a *Archiver) process(ctx context.Context, rec memory.Record) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var embedding []float32
	if a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, rec.Text)
		if err != nil {
			slog.Warn("archive: embedding failed, storing without vector", "error", err)
		} else {
			embedding = vec
		}
	}

	if err := a.store.Store(ctx, rec, embedding); err != nil {
		a.degraded.Store(true)
		slog.Warn("archive: store failed, dropping record",
			"user_id", rec.UserID,
			"error", err,
		)
		return
	}
	a.degraded.Store(false)
}

// IsDegraded reports whether the most recent store attempt failed.
func (a *Archiver) IsDegraded() bool {
	return a.degraded.Load()
}

// Dropped returns the number of submissions rejected because the buffer
// was full.
func (a *Archiver) Dropped() int64 {
	return a.dropped.Load()
}

// Check implements a readiness probe over the archiver state.
func (a *Archiver) Check(ctx context.Context) error {
	if a.IsDegraded() {
		return fmt.Errorf("archive backend degraded (%d dropped submissions)", a.Dropped())
	}
	return nil
}
