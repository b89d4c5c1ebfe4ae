// Package fetcher issues the bounded book search request and maps the
// response documents to raw records.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-fiction-books/config"
	"github.com/aluiziolira/go-fiction-books/models"
)

// searchResponse is the subset of search.json the pipeline reads.
type searchResponse struct {
	NumFound int                `json:"numFound"`
	Docs     []models.RawRecord `json:"docs"`
}

// Fetcher wraps a colly collector configured for one JSON request per call.
type Fetcher struct {
	cfg       *config.Config
	endpoint  *url.URL
	collector *colly.Collector
	logger    *slog.Logger
	Metrics   *Metrics
}

// New builds a fetcher from cfg. A nil logger falls back to slog.Default.
func New(cfg *config.Config, metrics *Metrics, logger *slog.Logger) (*Fetcher, error) {
	endpoint, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	endpoint = endpoint.JoinPath(cfg.SearchPath)

	collector := colly.NewCollector(
		colly.AllowedDomains(endpoint.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		// Unbounded: large limits exceed colly's 10 MB default.
		colly.MaxBodySize(0),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		cfg:       cfg,
		endpoint:  endpoint,
		collector: collector,
		logger:    logger,
		Metrics:   metrics,
	}, nil
}

// UseTransport swaps the HTTP transport of the underlying collector.
func (f *Fetcher) UseTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// SearchURL returns the request URL for limit.
func (f *Fetcher) SearchURL(limit int) string {
	u := *f.endpoint
	q := u.Query()
	q.Set("subject", f.cfg.Subject)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch issues exactly one search request capped at limit results. Failures
// are returned as *FetchError and never retried.
func (f *Fetcher) Fetch(ctx context.Context, limit int) ([]models.RawRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		return nil, &FetchError{
			Kind: KindInvalidLimit,
			URL:  f.endpoint.String(),
			Err:  fmt.Errorf("limit must be positive, got %d", limit),
		}
	}

	reqURL := f.SearchURL(limit)
	if err := ctx.Err(); err != nil {
		return nil, f.fail(newFetchError(reqURL, 0, err))
	}

	var (
		body       []byte
		statusCode int
		reqErr     error
	)
	c := f.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		reqErr = err
	})

	f.logger.Debug("fetching records", slog.String("url", reqURL))
	start := time.Now()
	f.Metrics.IncRequest()
	err := c.Visit(reqURL)
	f.Metrics.ObserveDuration(time.Since(start))
	if err == nil {
		err = reqErr
	}
	if err != nil || statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, f.fail(newFetchError(reqURL, statusCode, err))
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, f.fail(&FetchError{
			Kind:       KindDecode,
			URL:        reqURL,
			StatusCode: statusCode,
			Err:        err,
		})
	}

	records := payload.Docs
	if records == nil {
		records = []models.RawRecord{}
	}
	f.Metrics.AddRecords(len(records))
	f.logger.Info("fetched records",
		slog.Int("count", len(records)),
		slog.Int("limit", limit),
		slog.Int("num_found", payload.NumFound),
	)
	return records, nil
}

func (f *Fetcher) fail(err *FetchError) *FetchError {
	f.Metrics.IncError(err.Kind)
	f.logger.Error("fetch failed",
		slog.String("url", err.URL),
		slog.String("category", err.Kind),
		slog.Int("status", err.StatusCode),
		slog.Any("error", err.Err),
	)
	return err
}
