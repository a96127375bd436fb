package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/grader"
	"golang.org/x/sync/errgroup"
)

var allowedExtensions = map[string]struct{}{
	".cpp": {},
	".cc":  {},
	".cxx": {},
}

// ProgressFactory builds an additional per-submission progress sink, e.g.
// a NATS or SQS publisher. May be nil.
type ProgressFactory func(job grader.Job) grader.Gatherer

// Pool owns the submission FIFO, a fixed set of workers and the results
// store. A worker grades exactly one submission at a time to completion;
// submissions never share a worker mid-flight.
type Pool struct {
	grader         *grader.Grader
	store          *Store
	jobs           chan queued
	workers        int
	maxSourceBytes int64
	progress       ProgressFactory
	logger         *slog.Logger
}

type queued struct {
	job     grader.Job
	builder *reportBuilder
}

func New(g *grader.Grader, workers, queueCap int, maxSourceBytes int64,
	progress ProgressFactory, logger *slog.Logger) *Pool {

	if workers < 1 {
		workers = 1
	}
	return &Pool{
		grader:         g,
		store:          NewStore(),
		jobs:           make(chan queued, queueCap),
		workers:        workers,
		maxSourceBytes: maxSourceBytes,
		progress:       progress,
		logger:         logger,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight submission has been graded to completion.
func (p *Pool) Run(ctx context.Context) error {
	errs, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		id := i + 1
		errs.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}
	p.logger.Info("worker pool started", "workers", p.workers)
	return errs.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker shutting down", "worker_id", id)
			return
		case q := <-p.jobs:
			p.runJob(ctx, id, q)
		}
	}
}

// runJob is the worker boundary: whatever escapes the pipeline is
// recovered here and the report is still driven to a completed state.
func (p *Pool) runJob(ctx context.Context, workerID int, q queued) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				"worker_id", workerID, "submission", q.job.SubmID, "panic", r)
			q.builder.InternalError(fmt.Sprintf("grading failed: %v", r))
		}
	}()

	p.logger.Info("grading submission",
		"worker_id", workerID, "submission", q.job.SubmID, "filename", q.job.Filename)

	gath := grader.Gatherer(q.builder)
	if p.progress != nil {
		if extra := p.progress(q.job); extra != nil {
			gath = grader.Fanout{q.builder, extra}
		}
	}
	p.grader.Grade(ctx, q.job, gath)
}

// Submit validates the source file, registers a pending report and
// enqueues the submission. It blocks rather than fails when the queue is
// momentarily full.
func (p *Pool) Submit(sourcePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(sourcePath))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("invalid file type %q: only .cpp, .cc and .cxx are allowed", ext)
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat source file: %w", err)
	}
	if p.maxSourceBytes > 0 && info.Size() > p.maxSourceBytes {
		return "", fmt.Errorf("source file exceeds %d bytes", p.maxSourceBytes)
	}

	submID := uuid.NewString()
	builder := newReportBuilder(p.store, submID, filepath.Base(sourcePath))

	p.jobs <- queued{
		job: grader.Job{
			SubmID:     submID,
			SourcePath: sourcePath,
			Filename:   filepath.Base(sourcePath),
		},
		builder: builder,
	}
	p.logger.Info("submission queued", "submission", submID, "filename", filepath.Base(sourcePath))
	return submID, nil
}

// SubmitBatch submits several files, skipping those that fail validation.
func (p *Pool) SubmitBatch(sourcePaths []string) []string {
	ids := make([]string, 0, len(sourcePaths))
	for _, path := range sourcePaths {
		id, err := p.Submit(path)
		if err != nil {
			p.logger.Warn("skipping submission", "path", path, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Status returns the current report snapshot. Ids unknown to the store
// get a synthetic queued snapshot: absence of a record is not failure.
func (p *Pool) Status(submID string) api.Report {
	if rep, ok := p.store.Get(submID); ok {
		return rep
	}
	return api.Report{
		SubmID:   submID,
		Status:   api.StatusProcessing,
		Compile:  api.CompilePending,
		Overall:  api.VerdictPending,
		Outcomes: []api.TestOutcome{},
	}
}
