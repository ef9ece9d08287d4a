package audit

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/example/house-heist/internal/game"
)

// Recorder is the world's AuditSink. It keeps the most recent entries in
// memory and forwards every entry to the optional journal and index.
type Recorder struct {
	log     *log.Logger
	journal *Journal
	index   *Index

	mu     sync.Mutex
	recent []game.AuditEntry
	limit  int
}

type Option func(*Recorder)

func WithJournal(j *Journal) Option { return func(r *Recorder) { r.journal = j } }

func WithIndex(ix *Index) Option { return func(r *Recorder) { r.index = ix } }

// WithMemoryLimit bounds the in-memory history; older entries are only
// available from the index.
func WithMemoryLimit(n int) Option { return func(r *Recorder) { r.limit = n } }

func NewRecorder(logger *log.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	r := &Recorder{log: logger, limit: 10000}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements game.AuditSink. Sink failures are logged, never
// returned to the world.
func (r *Recorder) Record(e game.AuditEntry) {
	r.mu.Lock()
	r.recent = append(r.recent, e)
	if over := len(r.recent) - r.limit; r.limit > 0 && over > 0 {
		r.recent = append(r.recent[:0], r.recent[over:]...)
	}
	r.mu.Unlock()

	if r.journal != nil {
		if err := r.journal.Write(e); err != nil {
			r.log.Printf("journal write: %v", err)
		}
	}
	if r.index != nil {
		_ = r.index.Write(e)
	}
}

// Entries returns the audit trail, from the index when there is one.
func (r *Recorder) Entries(ctx context.Context, q Query) ([]game.AuditEntry, error) {
	if r.index != nil {
		return r.index.Entries(ctx, q)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []game.AuditEntry
	for _, e := range r.recent {
		if q.Round != 0 && e.Round != q.Round {
			continue
		}
		if q.Player != "" && e.Player != q.Player {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (r *Recorder) Close() error {
	var errs []error
	if r.journal != nil {
		errs = append(errs, r.journal.Close())
	}
	if r.index != nil {
		errs = append(errs, r.index.Close())
	}
	return errors.Join(errs...)
}
