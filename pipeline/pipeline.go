// Package pipeline runs the fetch, clean, save, load and plot stages in
// order and aborts on the first failure.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-fiction-books/models"
	"github.com/aluiziolira/go-fiction-books/normalizer"
)

// Fetcher returns raw search records.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) ([]models.RawRecord, error)
}

// DatasetStore persists and reloads a clean dataset.
type DatasetStore interface {
	Save(ctx context.Context, ds models.CleanDataset) error
	Load(ctx context.Context) (models.CleanDataset, error)
}

// ChartRenderer draws the year distribution of a dataset.
type ChartRenderer interface {
	Plot(ds models.CleanDataset) (models.YearHistogram, error)
}

// OutputWriter exports a dataset. Output is staged until Commit; Close
// drops anything not committed.
type OutputWriter interface {
	Write(records models.CleanDataset) error
	Validate() error
	Commit() error
	Close() error
}

// Result summarises a pipeline run.
type Result struct {
	Fetched   int
	Clean     normalizer.Stats
	Stored    int
	Histogram models.YearHistogram
	Stages    map[string]time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Pipeline wires the stages together. Stages run sequentially on the
// calling goroutine.
type Pipeline struct {
	fetcher  Fetcher
	store    DatasetStore
	renderer ChartRenderer
	exporter OutputWriter
	limit    int
	logger   *slog.Logger
	metrics  *Metrics
}

// NewPipeline builds a pipeline that fetches at most limit records.
func NewPipeline(fetcher Fetcher, store DatasetStore, renderer ChartRenderer, limit int) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		renderer: renderer,
		limit:    limit,
		logger:   slog.Default(),
	}
}

// WithExporter writes the reloaded dataset to w after the chart is saved.
// w is committed only when every earlier stage succeeded.
func (p *Pipeline) WithExporter(w OutputWriter) *Pipeline {
	p.exporter = w
	return p
}

// WithLogger replaces the default logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithMetrics records stage metrics on m.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Run executes fetch, clean, save, load and plot. The first failing stage
// aborts the run and its error is returned wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := newResult()
	defer func() { res.EndTime = time.Now() }()

	var raw []models.RawRecord
	if err := p.stage(ctx, res, "fetch", func() error {
		var err error
		raw, err = p.fetcher.Fetch(ctx, p.limit)
		res.Fetched = len(raw)
		return err
	}); err != nil {
		return res, err
	}

	var clean models.CleanDataset
	if err := p.stage(ctx, res, "clean", func() error {
		clean, res.Clean = normalizer.CleanWithStats(raw)
		p.metrics.observeClean(res.Clean)
		p.logger.Info("cleaned records",
			slog.Int("input", res.Clean.Input),
			slog.Int("output", res.Clean.Output),
			slog.Any("dropped", res.Clean.Dropped),
		)
		return nil
	}); err != nil {
		return res, err
	}

	if err := p.stage(ctx, res, "save", func() error {
		return p.store.Save(ctx, clean)
	}); err != nil {
		return res, err
	}

	if err := p.reloadAndPlot(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// Report reloads the stored dataset and plots it without fetching.
func (p *Pipeline) Report(ctx context.Context) (*Result, error) {
	res := newResult()
	defer func() { res.EndTime = time.Now() }()

	if err := p.reloadAndPlot(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) reloadAndPlot(ctx context.Context, res *Result) error {
	var stored models.CleanDataset
	if err := p.stage(ctx, res, "load", func() error {
		var err error
		stored, err = p.store.Load(ctx)
		res.Stored = len(stored)
		p.metrics.setStored(len(stored))
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, res, "plot", func() error {
		var err error
		res.Histogram, err = p.renderer.Plot(stored)
		return err
	}); err != nil {
		return err
	}

	if p.exporter == nil {
		return nil
	}
	return p.stage(ctx, res, "export", func() error {
		if err := p.exporter.Write(stored); err != nil {
			return err
		}
		if err := p.exporter.Validate(); err != nil {
			return err
		}
		return p.exporter.Commit()
	})
}

func (p *Pipeline) stage(ctx context.Context, res *Result, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	p.logger.Debug("stage started", slog.String("stage", name))
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	res.Stages[name] = elapsed
	p.metrics.observeStage(name, elapsed, err)

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("stage finished", slog.String("stage", name), slog.Duration("elapsed", elapsed))
	return nil
}

func newResult() *Result {
	return &Result{
		Stages:    make(map[string]time.Duration),
		StartTime: time.Now(),
	}
}
