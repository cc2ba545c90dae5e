// Package collyfetcher implements static page rendering and binary downloads using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// DefaultMaxDownloadBytes is the ceiling for a single download.
const DefaultMaxDownloadBytes = 50 << 20

// ErrTooLarge reports a response body over the configured ceiling.
var ErrTooLarge = errors.New("response exceeds size limit")

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int
}

// Fetcher implements crawler.Renderer for server-rendered pages and
// crawler.Downloader for PDFs.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	url    string
	status int
	body   []byte
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxDownloadBytes
	}
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Render fetches url without executing scripts and extracts its content.
func (f *Fetcher) Render(ctx context.Context, url string) (crawler.RenderedPage, error) {
	page, _, err := f.RenderRaw(ctx, url)
	return page, err
}

// RenderRaw is Render that also returns the response body, so callers can
// decide whether the static markup was enough.
func (f *Fetcher) RenderRaw(ctx context.Context, url string) (crawler.RenderedPage, []byte, error) {
	res, err := f.fetch(ctx, url)
	if err != nil {
		return crawler.RenderedPage{}, nil, fmt.Errorf("%w: %w", crawler.ErrFetch, err)
	}
	page, err := crawler.ExtractHTML(res.url, res.body)
	if err != nil {
		return crawler.RenderedPage{}, nil, fmt.Errorf("%w: %w", crawler.ErrFetch, err)
	}
	return page, res.body, nil
}

// Download returns the body of url, rejecting bodies over the size ceiling.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	res, err := f.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrFetch, err)
	}
	return res.body, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (fetchResult, error) {
	var (
		result   fetchResult
		fetchErr error
	)
	collector := f.buildCollector(ctx, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return fetchResult{}, err
	}
	return result, nil
}

// buildCollector clones the base collector for one request. The request runs
// under ctx, so cancellation aborts an in-flight transfer.
func (f *Fetcher) buildCollector(ctx context.Context, result *fetchResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	// One extra byte lets an oversized body be told apart from one at the limit.
	collector.MaxBodySize = f.cfg.MaxBodyBytes + 1
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	f.configureCollectorHooks(collector, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult, fetchErr *error) {
	limit := f.cfg.MaxBodyBytes
	hooks.OnResponseHeaders(func(r *colly.Response) {
		if r.Headers == nil {
			return
		}
		if n, err := strconv.Atoi(r.Headers.Get("Content-Length")); err == nil && n > limit {
			*fetchErr = fmt.Errorf("%w: content-length %d > %d", ErrTooLarge, n, limit)
			r.Request.Abort()
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		if len(r.Body) > limit {
			*fetchErr = fmt.Errorf("%w: body over %d bytes", ErrTooLarge, limit)
			return
		}
		*result = fetchResult{
			url:    r.Request.URL.String(),
			status: r.StatusCode,
			body:   append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if *fetchErr != nil {
			return
		}
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The request carries ctx, so Visit returns promptly.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctx.Err() != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
