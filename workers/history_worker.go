// workers/history_worker.go
package workers

import (
	"context"
	"errors"
	"time"

	"game-night-server/services"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("history queue is full")

const (
	defaultQueueSize = 32
	saveAttempts     = 3
	saveTimeout      = 10 * time.Second
)

// HistoryWorker writes finished sessions in the background so action
// handlers never wait on the database.
type HistoryWorker struct {
	store   services.HistoryStore
	jobs    chan services.HistoryJob
	backoff time.Duration
	log     *logrus.Entry
}

func NewHistoryWorker(store services.HistoryStore, size int, logger *logrus.Logger) *HistoryWorker {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HistoryWorker{
		store:   store,
		jobs:    make(chan services.HistoryJob, size),
		backoff: 500 * time.Millisecond,
		log:     logger.WithField("worker", "history"),
	}
}

// Enqueue hands a job to the worker without blocking.
func (w *HistoryWorker) Enqueue(job services.HistoryJob) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *HistoryWorker) Run(ctx context.Context) {
	w.log.Info("history worker started")
	for {
		select {
		case <-ctx.Done():
			w.flush()
			w.log.Info("history worker stopped")
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *HistoryWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	for {
		select {
		case job := <-w.jobs:
			w.process(ctx, job)
		default:
			return
		}
	}
}

func (w *HistoryWorker) process(ctx context.Context, job services.HistoryJob) {
	kind := services.GameKniffel
	if job.Olympiade != nil {
		kind = services.GameOlympiade
	}

	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		err = w.save(ctx, job)
		if err == nil {
			break
		}
		w.log.WithError(err).WithFields(logrus.Fields{"game": kind, "attempt": attempt}).Warn("history save failed")
		if attempt == saveAttempts {
			break
		}
		select {
		case <-ctx.Done():
			attempt = saveAttempts
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}

	if err != nil {
		w.log.WithError(err).WithField("game", kind).Error("history save abandoned")
	}
	if job.Done != nil {
		job.Done(err)
	}
}

func (w *HistoryWorker) save(ctx context.Context, job services.HistoryJob) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	switch {
	case job.Kniffel != nil:
		return w.store.SaveKniffel(ctx, *job.Kniffel)
	case job.Olympiade != nil:
		return w.store.SaveOlympiade(ctx, *job.Olympiade)
	default:
		return errors.New("empty history job")
	}
}
