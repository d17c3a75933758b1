package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/caching"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *caching.PageCache
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each request. Zero leaves the transport's own behavior.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithRateLimit limits outbound requests per second. Zero means unlimited.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithCache serves HTML pages from c when fresh. Assets are never cached.
func WithCache(c *caching.PageCache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
		f.client.SetLogger(restyLogger{logger})
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  resty.New(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
	}
	f.client.SetLogger(restyLogger{f.logger})
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetPage fetches an HTML page, consulting the cache first.
func (f *Fetcher) GetPage(ctx context.Context, url string) (*models.RawPage, error) {
	if f.cache != nil {
		if body, ok := f.cache.Load(url); ok {
			f.logger.Debug("Page served from cache", "url", url)
			return &models.RawPage{URL: url, FinalURL: url, Body: body}, nil
		}
	}

	page, err := f.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Store(url, page.Body); err != nil {
			f.logger.Warn("Failed to cache page", "url", url, "error", err)
		}
	}
	return page, nil
}

// EvictPage drops url from the page cache so the next GetPage goes back to
// the site.
func (f *Fetcher) EvictPage(url string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Evict(url); err != nil {
		f.logger.Warn("Failed to evict cached page", "url", url, "error", err)
	}
}

// Get issues a GET request with optional query parameters. A non-2xx status
// is a *FetchError; a response reached through redirects is a
// *NotFoundError. The status is checked before the redirect.
func (f *Fetcher) Get(ctx context.Context, url string, params map[string]string) (*models.RawPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Kind: KindOther, Err: err}
	}

	req := f.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: classifyTransport(err), Err: fmt.Errorf("failed to make HTTP request: %w", err)}
	}

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &FetchError{URL: url, StatusCode: status, Kind: KindOther}
	}

	finalURL, wasRedirected := finalLocation(resp)
	if wasRedirected {
		return nil, &NotFoundError{URL: url, FinalURL: finalURL}
	}
	if finalURL == "" {
		finalURL = url
	}

	return &models.RawPage{
		URL:      url,
		FinalURL: finalURL,
		Body:     resp.Body(),
	}, nil
}

// finalLocation returns the URL the response was served from and whether it
// took one or more redirects to get there.
func finalLocation(resp *resty.Response) (string, bool) {
	raw := resp.RawResponse
	if raw == nil || raw.Request == nil || raw.Request.URL == nil {
		return "", false
	}
	return raw.Request.URL.String(), raw.Request.Response != nil
}

// restyLogger routes resty's internal messages into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
