package pipeline

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/go-fiction-books/config"
	"github.com/aluiziolira/go-fiction-books/fetcher"
	"github.com/aluiziolira/go-fiction-books/models"
	"github.com/aluiziolira/go-fiction-books/report"
	"github.com/aluiziolira/go-fiction-books/store"
)

type stubFetcher struct {
	records []models.RawRecord
	err     error
	limit   int
	calls   int
}

func (sf *stubFetcher) Fetch(ctx context.Context, limit int) ([]models.RawRecord, error) {
	sf.calls++
	sf.limit = limit
	return sf.records, sf.err
}

type memoryStore struct {
	saved   models.CleanDataset
	hasData bool
	saveErr error
	loadErr error
	saves   int
}

func (ms *memoryStore) Save(ctx context.Context, ds models.CleanDataset) error {
	ms.saves++
	if ms.saveErr != nil {
		return ms.saveErr
	}
	ms.saved = append(models.CleanDataset{}, ds...)
	ms.hasData = true
	return nil
}

func (ms *memoryStore) Load(ctx context.Context) (models.CleanDataset, error) {
	if ms.loadErr != nil {
		return nil, ms.loadErr
	}
	if !ms.hasData {
		return nil, &store.StoreError{Op: "load", Table: "fiction_books", Err: store.ErrTableNotFound}
	}
	return append(models.CleanDataset{}, ms.saved...), nil
}

type recordingRenderer struct {
	plotted models.CleanDataset
	calls   int
}

func (rr *recordingRenderer) Plot(ds models.CleanDataset) (models.YearHistogram, error) {
	rr.calls++
	rr.plotted = ds
	if len(ds) == 0 {
		return nil, &report.ReportError{Path: "books_by_year.png", Err: report.ErrEmptyDataset}
	}
	return report.Histogram(ds), nil
}

func rawBatch() []models.RawRecord {
	return []models.RawRecord{
		models.NewRawRecord("Book A", []string{"X", "Y"}, 1999),
		models.NewRawRecord(models.RawNull, []string{"X"}, 1999),
		models.NewRawRecord("Book A", []string{"X", "Y"}, 2004),
		models.NewRawRecord("Book B", "not-a-list", 2000),
		models.NewRawRecord("Book C", []string{"Z"}, "unknown"),
		models.NewRawRecord("Book D", []string{"W"}, "1999"),
	}
}

func TestPipelineRun(t *testing.T) {
	f := &stubFetcher{records: rawBatch()}
	s := &memoryStore{}
	r := &recordingRenderer{}
	metrics := NewMetrics(prometheus.NewRegistry())

	res, err := NewPipeline(f, s, r, 100).WithMetrics(metrics).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if f.limit != 100 || f.calls != 1 {
		t.Fatalf("fetch called %d times with limit %d", f.calls, f.limit)
	}
	want := models.CleanDataset{
		{Title: "Book A", Authors: "X; Y", FirstPublishYear: 1999},
		{Title: "Book D", Authors: "W", FirstPublishYear: 1999},
	}
	if len(s.saved) != len(want) || s.saved[0] != want[0] || s.saved[1] != want[1] {
		t.Fatalf("saved = %v, want %v", s.saved, want)
	}
	if len(r.plotted) != 2 {
		t.Fatalf("plotted %d records, want 2", len(r.plotted))
	}

	if res.Fetched != 6 || res.Stored != 2 || res.Clean.Output != 2 {
		t.Fatalf("unexpected result counts: %+v", res)
	}
	if len(res.Histogram) != 1 || res.Histogram[0] != (models.YearCount{Year: 1999, Count: 2}) {
		t.Fatalf("histogram = %v", res.Histogram)
	}
	for _, stage := range []string{"fetch", "clean", "save", "load", "plot"} {
		if _, ok := res.Stages[stage]; !ok {
			t.Fatalf("missing timing for stage %q", stage)
		}
	}
	if res.EndTime.Before(res.StartTime) {
		t.Fatalf("end time before start time")
	}

	if got := testutil.ToFloat64(metrics.Dropped.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("duplicate drops metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Stored); got != 2 {
		t.Fatalf("stored metric = %v, want 2", got)
	}
}

func TestPipelineAbortsOnFetchError(t *testing.T) {
	fetchErr := &fetcher.FetchError{Kind: fetcher.KindTimeout, URL: "http://example.test", Err: context.DeadlineExceeded}
	f := &stubFetcher{err: fetchErr}
	s := &memoryStore{}
	r := &recordingRenderer{}

	_, err := NewPipeline(f, s, r, 10).Run(context.Background())

	var got *fetcher.FetchError
	if !errors.As(err, &got) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if s.saves != 0 || r.calls != 0 {
		t.Fatalf("later stages ran after fetch failure: saves=%d plots=%d", s.saves, r.calls)
	}
}

func TestPipelineAbortsOnSaveError(t *testing.T) {
	f := &stubFetcher{records: rawBatch()}
	s := &memoryStore{saveErr: errors.New("disk full")}
	r := &recordingRenderer{}

	_, err := NewPipeline(f, s, r, 10).Run(context.Background())
	if err == nil || err.Error() != "save: disk full" {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("plot ran after save failure")
	}
}

func TestPipelineEmptyDatasetFailsReport(t *testing.T) {
	f := &stubFetcher{records: nil}
	s := &memoryStore{}
	r := &recordingRenderer{}

	res, err := NewPipeline(f, s, r, 10).Run(context.Background())

	if !errors.Is(err, report.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	if res.Clean.Output != 0 || s.saves != 1 {
		t.Fatalf("empty dataset should still be saved: %+v saves=%d", res.Clean, s.saves)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	f := &stubFetcher{records: rawBatch()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(f, &memoryStore{}, &recordingRenderer{}, 10).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.calls != 0 {
		t.Fatalf("fetch should not run on a cancelled context")
	}
}

func TestPipelineReportWithoutTable(t *testing.T) {
	_, err := NewPipeline(&stubFetcher{}, &memoryStore{}, &recordingRenderer{}, 10).Report(context.Background())

	var storeErr *store.StoreError
	if !errors.As(err, &storeErr) || !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected StoreError wrapping ErrTableNotFound, got %v", err)
	}
}

func TestPipelineExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	res, err := NewPipeline(&stubFetcher{records: rawBatch()}, &memoryStore{}, &recordingRenderer{}, 10).
		WithExporter(writer).
		Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := res.Stages["export"]; !ok {
		t.Fatalf("export stage did not run")
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("export was not committed: %v", err)
	}
}

func TestPipelineFailedRunKeepsExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	previous := "title,authors,first_publish_year\nDune,Frank Herbert,1965\n"
	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		t.Fatalf("seed export: %v", err)
	}
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	f := &stubFetcher{err: &fetcher.FetchError{Kind: fetcher.KindStatus, StatusCode: 503, Err: errors.New("unavailable")}}
	_, runErr := NewPipeline(f, &memoryStore{}, &recordingRenderer{}, 10).
		WithExporter(writer).
		Run(context.Background())
	if runErr == nil {
		t.Fatalf("expected fetch error")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(got) != previous {
		t.Fatalf("failed run changed the export: %q", got)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Limit = 5

	f, err := fetcher.New(cfg, fetcher.NewMetrics(prometheus.NewRegistry()), nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponderWithQuery("GET", "http://example.test/search.json",
		map[string]string{"subject": "fiction", "limit": "5"},
		httpmock.NewStringResponder(http.StatusOK, `{"docs": [
			{"title": "Book A", "author_name": ["X", "Y"], "first_publish_year": 1999},
			{"title": "Book B", "author_name": ["Q"], "first_publish_year": 2001},
			{"title": "Book A", "author_name": ["X", "Y"], "first_publish_year": 2010},
			{"author_name": ["Nobody"], "first_publish_year": 2001}
		]}`))
	f.UseTransport(transport)

	s, err := store.Open(filepath.Join(dir, "books.db"), cfg.Table)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	chart := filepath.Join(dir, "books_by_year.png")
	r := report.New(report.Options{File: chart, DPI: 20, Title: report.DefaultTitle(cfg.Limit)})

	res, err := NewPipeline(f, s, r, cfg.Limit).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Fetched != 4 || res.Stored != 2 {
		t.Fatalf("fetched=%d stored=%d, want 4 and 2", res.Fetched, res.Stored)
	}

	stored, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored[0].Title != "Book A" || stored[0].FirstPublishYear != 1999 || stored[1].Title != "Book B" {
		t.Fatalf("stored = %v", stored)
	}
}
