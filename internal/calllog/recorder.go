package calllog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veridocproj/veridoc/internal/providers"
)

const (
	recorderQueueSize    = 256
	recorderInsertBudget = 5 * time.Second
)

// Recorder handles fire-and-forget call recording.
// Writes are queued and drained by a background goroutine; a full queue
// drops the record with a warning rather than stalling the pipeline.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	queue    chan *Call
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecorder creates a new call recorder. A nil store produces a recorder
// that silently discards records, so callers never need a nil check.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan *Call, recorderQueueSize),
	}
}

// Start begins draining queued records.
func (r *Recorder) Start() {
	if r.store == nil {
		return
	}
	r.wg.Add(1)
	go r.run()
}

// Stop drains remaining records and shuts the recorder down.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
	})
}

// Record queues a call record (fire-and-forget).
func (r *Recorder) Record(call *Call) {
	if r.store == nil || call == nil {
		return
	}

	// Recover send-on-closed when Stop races a late record.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("call recorder stopped, dropping record", "kind", call.Kind, "provider", call.Provider)
		}
	}()

	select {
	case r.queue <- call:
	default:
		r.logger.Warn("call recorder queue full, dropping record", "kind", call.Kind, "provider", call.Provider)
	}
}

// RecordChat captures an LLM call result asynchronously.
func (r *Recorder) RecordChat(result *providers.ChatResult, opts RecordOptions) {
	r.Record(FromChatResult(result, opts))
}

// RecordOCR captures an OCR call result asynchronously.
func (r *Recorder) RecordOCR(provider string, result *providers.OCRResult, opts RecordOptions) {
	r.Record(FromOCRResult(provider, result, opts))
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for call := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recorderInsertBudget)
		if err := r.store.Insert(ctx, call); err != nil {
			r.logger.Warn("failed to record provider call",
				"error", err,
				"kind", call.Kind,
				"provider", call.Provider)
		}
		cancel()
	}
}
