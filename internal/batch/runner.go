package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

// Result of one extraction. Exactly one of Text and Err is set.
type Result struct {
	Path    string
	Text    string
	Err     error
	Elapsed time.Duration
}

// Runner fans independent Extract calls for many files over a fixed worker pool.
type Runner struct {
	extractor llm.Extractor
	logger    *slog.Logger
	workers   int
	timeout   time.Duration
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithItemTimeout bounds each file's whole extraction, retries included. Zero means no bound.
func WithItemTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.timeout = d
		}
	}
}

func NewRunner(extractor llm.Extractor, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		extractor: extractor,
		logger:    logger,
		workers:   2,
		timeout:   5 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run extracts every path and returns results in input order. Files not started before
// ctx is done get ctx's error.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 1; w <= min(r.workers, max(len(paths), 1)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.logger.Debug("batch.worker.started", "worker_id", workerID)
			for i := range jobs {
				results[i] = r.one(ctx, workerID, paths[i])
			}
			r.logger.Debug("batch.worker.stopped", "worker_id", workerID)
		}(w)
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(paths); j++ {
				results[j] = Result{Path: paths[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (r *Runner) one(ctx context.Context, workerID int, path string) Result {
	start := time.Now()
	ctx = common.WithRequestID(ctx, uuid.New().String())
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.extractor.Extract(ctx, imaging.FromPath(path))
	res := Result{Path: path, Text: text, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		res.Text = ""
		r.logger.Error("batch.item.failed",
			"worker_id", workerID, "path", path,
			"req_id", common.RequestIDFromContext(ctx),
			"error", err, "elapsed_ms", res.Elapsed.Milliseconds(),
		)
		return res
	}
	r.logger.Info("batch.item.ok",
		"worker_id", workerID, "path", path,
		"req_id", common.RequestIDFromContext(ctx),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res
}
