// Package report aggregates a dataset by publish year and renders the
// distribution as a bar chart image.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/aluiziolira/go-fiction-books/models"
)

// ErrEmptyDataset is wrapped by ReportError when there is nothing to plot.
var ErrEmptyDataset = errors.New("dataset is empty")

// ReportError reports a failed chart render.
type ReportError struct {
	Path string
	Err  error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s: %v", e.Path, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Theme is the chart styling. A nil GridColor disables grid lines.
type Theme struct {
	Background color.Color
	BarColor   color.Color
	GridColor  color.Color
}

// WhiteGrid is a white background with light horizontal grid lines.
func WhiteGrid() Theme {
	return Theme{
		Background: color.White,
		BarColor:   color.RGBA{R: 76, G: 114, B: 176, A: 255},
		GridColor:  color.Gray{Y: 220},
	}
}

// Options configures a Reporter.
type Options struct {
	File   string
	Title  string
	DPI    int
	Width  float64 // inches
	Height float64 // inches
	Theme  Theme
	// Open displays the image after saving when a display is available.
	Open   bool
	Opener func(path string) error
	Logger *slog.Logger
}

// DefaultTitle is the chart title for a run capped at limit records.
func DefaultTitle(limit int) string {
	return fmt.Sprintf("Fiction Books Published by Year (Top %d)", limit)
}

// Reporter renders year distribution charts.
type Reporter struct {
	opts Options
}

// New returns a Reporter. Zero-valued options fall back to the defaults of
// a plain run.
func New(opts Options) *Reporter {
	if opts.File == "" {
		opts.File = "books_by_year.png"
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle(100)
	}
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	if opts.Width <= 0 {
		opts.Width = 16
	}
	if opts.Height <= 0 {
		opts.Height = 7
	}
	if opts.Theme.Background == nil && opts.Theme.BarColor == nil {
		opts.Theme = WhiteGrid()
	}
	if opts.Opener == nil {
		opts.Opener = openFile
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reporter{opts: opts}
}

// File returns the path the chart is written to.
func (r *Reporter) File() string {
	return r.opts.File
}

// Histogram counts records per first publish year, ascending by year.
func Histogram(ds models.CleanDataset) models.YearHistogram {
	sorted := slices.Clone(ds)
	slices.SortStableFunc(sorted, func(a, b models.CleanRecord) int {
		return cmp.Compare(a.FirstPublishYear, b.FirstPublishYear)
	})

	hist := models.YearHistogram{}
	for _, rec := range sorted {
		last := len(hist) - 1
		if last >= 0 && hist[last].Year == rec.FirstPublishYear {
			hist[last].Count++
			continue
		}
		hist = append(hist, models.YearCount{Year: rec.FirstPublishYear, Count: 1})
	}
	return hist
}

// Plot renders the year distribution of ds to the configured file and
// returns the histogram it drew. An empty dataset is an error and writes
// nothing.
func (r *Reporter) Plot(ds models.CleanDataset) (models.YearHistogram, error) {
	if len(ds) == 0 {
		return nil, &ReportError{Path: r.opts.File, Err: ErrEmptyDataset}
	}

	hist := Histogram(ds)
	p, err := r.buildPlot(hist)
	if err != nil {
		return nil, &ReportError{Path: r.opts.File, Err: err}
	}
	if err := r.save(p); err != nil {
		return nil, &ReportError{Path: r.opts.File, Err: err}
	}

	r.opts.Logger.Info("chart saved",
		slog.String("file", r.opts.File),
		slog.Int("years", len(hist)),
		slog.Int("records", hist.Total()),
	)

	if r.opts.Open {
		r.display()
	}
	return hist, nil
}

func (r *Reporter) buildPlot(hist models.YearHistogram) (*plot.Plot, error) {
	theme := r.opts.Theme

	p := plot.New()
	p.Title.Text = r.opts.Title
	p.X.Label.Text = "First Publish Year"
	p.Y.Label.Text = "Number of Books"
	if theme.Background != nil {
		p.BackgroundColor = theme.Background
	}

	if theme.GridColor != nil {
		grid := plotter.NewGrid()
		grid.Vertical.Color = nil
		grid.Horizontal.Color = theme.GridColor
		p.Add(grid)
	}

	values := make(plotter.Values, len(hist))
	labels := make([]string, len(hist))
	for i, bucket := range hist {
		values[i] = float64(bucket.Count)
		labels[i] = strconv.Itoa(bucket.Year)
	}

	bars, err := plotter.NewBarChart(values, r.barWidth(len(hist)))
	if err != nil {
		return nil, fmt.Errorf("building bar chart: %w", err)
	}
	bars.LineStyle.Width = 0
	if theme.BarColor != nil {
		bars.Color = theme.BarColor
	}
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	p.Y.Min = 0

	return p, nil
}

// barWidth spreads the bars over most of the canvas width.
func (r *Reporter) barWidth(n int) vg.Length {
	width := vg.Length(r.opts.Width) * vg.Inch * 0.8 / vg.Length(n)
	if maxWidth := vg.Length(0.5) * vg.Inch; width > maxWidth {
		width = maxWidth
	}
	return width
}

func (r *Reporter) save(p *plot.Plot) error {
	if dir := filepath.Dir(r.opts.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.opts.Width)*vg.Inch, vg.Length(r.opts.Height)*vg.Inch),
		vgimg.UseDPI(r.opts.DPI),
	)
	p.Draw(draw.New(canvas))

	f, err := os.Create(r.opts.File)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

func (r *Reporter) display() {
	if !displayAvailable() {
		r.opts.Logger.Debug("no display available, skipping chart preview")
		return
	}
	if err := r.opts.Opener(r.opts.File); err != nil {
		r.opts.Logger.Warn("open chart", slog.String("file", r.opts.File), slog.Any("error", err))
	}
}
