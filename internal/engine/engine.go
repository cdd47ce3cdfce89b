package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/storage"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// Stage names, used in logs, metrics, and reports.
const (
	StageResolve = "resolve"
	StageDetails = "details"
)

// URLColumn is the column of the intermediate dataset that feeds Stage B.
const URLColumn = "url"

// RecordPipeline post-processes records before export. A nil record with a
// nil error drops the record.
type RecordPipeline interface {
	Process(rec *types.Record) (*types.Record, error)
}

// Report summarizes one stage.
type Report struct {
	Stage     string
	Read      int
	Skipped   int
	Items     int
	Succeeded int
	Failed    int
	Exported  int
	Output    string
	Elapsed   time.Duration
}

// Engine runs the two scraping stages: resolving ISBNs to product URLs,
// then extracting details from those URLs.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	pacer   Pacer
	robots  *RobotsManager

	resolveWorker Worker[string, *types.Record]
	detailWorker  Worker[string, *types.Record]

	pipelines   map[string]RecordPipeline
	detailSinks []storage.Storage
	onProgress  ProgressCallback
}

// New creates a new Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		pacer:     SleepPacer{},
		pipelines: make(map[string]RecordPipeline),
	}
}

// SetResolveWorker sets the Stage A worker (ISBN to URL record).
func (e *Engine) SetResolveWorker(w Worker[string, *types.Record]) {
	e.resolveWorker = w
}

// SetDetailWorker sets the Stage B worker (URL to detail record).
func (e *Engine) SetDetailWorker(w Worker[string, *types.Record]) {
	e.detailWorker = w
}

// SetPipeline sets the record pipeline applied to a stage's output.
func (e *Engine) SetPipeline(stage string, p RecordPipeline) {
	e.pipelines[stage] = p
}

// AddDetailSink adds a storage backend that receives detail records in
// addition to the detail file. The engine closes it in Close.
func (e *Engine) AddDetailSink(s storage.Storage) {
	e.detailSinks = append(e.detailSinks, s)
}

// SetMetrics attaches metrics collection.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// SetPacer replaces the pacer used between batches and between stages.
func (e *Engine) SetPacer(p Pacer) {
	if p != nil {
		e.pacer = p
	}
}

// SetRobots enables robots.txt filtering of Stage B URLs.
func (e *Engine) SetRobots(rm *RobotsManager) {
	e.robots = rm
}

// OnProgress registers a callback invoked after each batch of either stage.
func (e *Engine) OnProgress(cb ProgressCallback) {
	e.onProgress = cb
}

// URLFilePath returns the path of the intermediate URL dataset.
func (e *Engine) URLFilePath() string {
	return storage.OutputPath(e.cfg.Output.Format, e.cfg.Output.URLDir, e.cfg.Output.URLFile)
}

// DetailFilePath returns the path of the final detail dataset.
func (e *Engine) DetailFilePath() string {
	return storage.OutputPath(e.cfg.Output.Format, e.cfg.Output.DetailDir, e.cfg.Output.DetailFile)
}

// ResolveStage runs the resolve worker over isbns.
func (e *Engine) ResolveStage(ctx context.Context, isbns []string) (*Result[*types.Record], error) {
	return e.runStage(ctx, StageResolve, isbns, e.resolveWorker, e.cfg.Engine.InterBatchDelay)
}

// DetailStage runs the detail worker over urls.
func (e *Engine) DetailStage(ctx context.Context, urls []string) (*Result[*types.Record], error) {
	return e.runStage(ctx, StageDetails, urls, e.detailWorker, e.cfg.Engine.InterBatchDelay)
}

func (e *Engine) runStage(ctx context.Context, stage string, items []string, worker Worker[string, *types.Record], delay time.Duration) (*Result[*types.Record], error) {
	runner := NewRunner[string, *types.Record](stage, e.logger)
	runner.SetPacer(e.pacer)
	runner.SetMetrics(e.metrics)
	runner.OnProgress(e.onProgress)
	return runner.Run(ctx, items, worker, e.cfg.Engine.BatchSize, delay)
}

// RunResolve reads the ISBN list, resolves each ISBN to a product URL and
// writes the intermediate URL dataset.
func (e *Engine) RunResolve(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Stage: StageResolve, Output: e.URLFilePath()}

	raw, err := storage.ReadColumn(e.cfg.Input.ISBNFile, e.cfg.Input.ISBNColumn)
	if err != nil {
		return nil, err
	}
	isbns := Unique(raw, NormalizeISBN)
	for i, isbn := range isbns {
		isbns[i] = NormalizeISBN(isbn)
	}
	report.Read = len(raw)
	report.Skipped = len(raw) - len(isbns)
	report.Items = len(isbns)

	e.logger.Info("resolve stage starting",
		"input", e.cfg.Input.ISBNFile,
		"read", report.Read,
		"unique", len(isbns),
	)

	result, err := e.ResolveStage(ctx, isbns)
	if err != nil {
		return nil, err
	}
	report.Succeeded = result.Succeeded()
	report.Failed = result.Failed()

	records := e.process(StageResolve, result.Records())
	if err := e.export(report.Output, records, nil); err != nil {
		return nil, err
	}
	report.Exported = len(records)
	report.Elapsed = time.Since(start)

	e.logger.Info("resolve stage finished",
		"resolved", report.Succeeded,
		"failed", report.Failed,
		"exported", report.Exported,
		"output", report.Output,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// RunDetails reads the intermediate URL dataset, drops failed-search URLs,
// extracts details from each remaining URL and writes the final dataset.
func (e *Engine) RunDetails(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Stage: StageDetails, Output: e.DetailFilePath()}

	raw, err := storage.ReadColumn(e.URLFilePath(), URLColumn)
	if err != nil {
		return nil, err
	}
	report.Read = len(raw)

	urls, dropped := ExcludeSubstrings(raw, e.cfg.Engine.ExcludeURLSubstrings)
	for _, u := range dropped {
		e.logger.Info("skipping unresolved url", "url", u)
	}
	urls = Unique(urls, CanonicalizeURL)

	delay := e.cfg.Engine.InterBatchDelay
	if e.robots != nil {
		var crawlDelay time.Duration
		urls, crawlDelay = e.robots.Filter(ctx, urls)
		if crawlDelay > delay {
			e.logger.Info("using robots.txt crawl-delay", "delay", crawlDelay)
			delay = crawlDelay
		}
	}
	report.Items = len(urls)
	report.Skipped = report.Read - report.Items

	e.logger.Info("details stage starting",
		"input", e.URLFilePath(),
		"read", report.Read,
		"skipped", report.Skipped,
		"items", report.Items,
	)

	result, err := e.runStage(ctx, StageDetails, urls, e.detailWorker, delay)
	if err != nil {
		return nil, err
	}
	report.Succeeded = result.Succeeded()
	report.Failed = result.Failed()

	records := e.process(StageDetails, result.Records())
	if err := e.export(report.Output, records, e.detailSinks); err != nil {
		return nil, err
	}
	report.Exported = len(records)
	report.Elapsed = time.Since(start)

	e.logger.Info("details stage finished",
		"scraped", report.Succeeded,
		"failed", report.Failed,
		"exported", report.Exported,
		"output", report.Output,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// Run executes both stages with a pause in between.
func (e *Engine) Run(ctx context.Context) ([]*Report, error) {
	resolved, err := e.RunResolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve stage: %w", err)
	}

	e.pacer.Wait(ctx, e.cfg.Engine.StagePause)
	if err := ctx.Err(); err != nil {
		return []*Report{resolved}, err
	}

	details, err := e.RunDetails(ctx)
	if err != nil {
		return []*Report{resolved}, fmt.Errorf("details stage: %w", err)
	}
	return []*Report{resolved, details}, nil
}

// Close releases the extra detail sinks.
func (e *Engine) Close() error {
	if len(e.detailSinks) == 0 {
		return nil
	}
	return storage.NewMultiStorage(e.detailSinks, e.logger).Close()
}

// process runs records through the stage's pipeline, dropping those it
// rejects.
func (e *Engine) process(stage string, records []*types.Record) []*types.Record {
	p := e.pipelines[stage]
	if p == nil {
		return records
	}

	out := make([]*types.Record, 0, len(records))
	for _, rec := range records {
		processed, err := p.Process(rec)
		if err != nil {
			e.logger.Warn("pipeline dropped record", "stage", stage, "source", rec.Source, "error", err)
			continue
		}
		if processed == nil {
			continue
		}
		out = append(out, processed)
	}
	return out
}

// export writes records to the file at path and to any extra sinks. The
// file is always written, even when there are no records.
func (e *Engine) export(path string, records []*types.Record, extra []storage.Storage) error {
	file, err := storage.NewFileStorageAt(path, e.logger)
	if err != nil {
		return err
	}

	var sink storage.Storage = file
	if len(extra) > 0 {
		sink = storage.NewMultiStorage(append([]storage.Storage{file}, extra...), e.logger)
	}

	storeErr := sink.Store(records)
	if closeErr := file.Close(); closeErr != nil && storeErr == nil {
		storeErr = closeErr
	}
	return storeErr
}
