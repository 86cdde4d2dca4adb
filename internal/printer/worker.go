package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gantry/internal/job"
	"gantry/internal/logging"
	"gantry/internal/storage"
)

// Worker runs print sessions one at a time. Requests are accepted through
// Enqueue after the tracker has already moved the job into the printing
// phase, so the queue never holds more than one entry.
type Worker struct {
	store      *storage.Store
	tracker    *job.Tracker
	open       Opener
	ackTimeout time.Duration
	logger     *slog.Logger

	requests chan string
	wg       sync.WaitGroup
}

func NewWorker(store *storage.Store, tracker *job.Tracker, open Opener, ackTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:      store,
		tracker:    tracker,
		open:       open,
		ackTimeout: ackTimeout,
		logger:     logging.NewComponentLogger(logger, "print-worker"),
		requests:   make(chan string, 1),
	}
}

// Start launches the worker goroutine. It runs until ctx is canceled; Wait
// blocks until the goroutine has drained.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Wait blocks until the worker goroutine exits.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Enqueue hands an instruction file to the worker. The tracker's phase
// arbitration guarantees a free slot, but a full queue is still reported
// rather than blocked on.
func (w *Worker) Enqueue(name string) error {
	select {
	case w.requests <- name:
		return nil
	default:
		return fmt.Errorf("print worker busy")
	}
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-w.requests:
			w.print(ctx, name)
		}
	}
}

func (w *Worker) print(ctx context.Context, name string) {
	logger := w.logger.With(logging.String(logging.FieldFile, name))
	logger.Info("starting print")

	entry, err := w.store.Stat(storage.Instructions, name)
	if err != nil {
		logger.Error("failed to open instruction file", logging.Error(err))
		w.tracker.FailPrint(fmt.Sprintf("failed to open file: %s", name))
		return
	}
	file, err := w.store.OpenRead(storage.Instructions, name)
	if err != nil {
		logger.Error("failed to open instruction file", logging.Error(err))
		w.tracker.FailPrint(fmt.Sprintf("failed to open file: %s", name))
		return
	}
	defer file.Close()

	port, err := w.open()
	if err != nil {
		logger.Error("machine link unavailable", logging.Error(err))
		w.tracker.FailPrint("machine link unavailable")
		return
	}
	defer port.Close()

	streamer := NewStreamer(port, w.ackTimeout, w.logger)
	stats, err := streamer.Stream(ctx, file, entry.SizeBytes, func(pct int) {
		w.tracker.SetPrintProgress(pct)
	})
	if err != nil {
		logger.Error("print aborted", logging.Error(err))
		w.tracker.FailPrint(fmt.Sprintf("print aborted: %v", err))
		return
	}

	logger.Info("print complete",
		logging.Int("transactions", stats.Transactions),
		logging.Int("nacks", stats.Nacks),
		logging.Int64("bytes", stats.BytesConsumed))
	w.tracker.FinishPrint()
}
