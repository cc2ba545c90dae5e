// Package headless renders pages in headless Chrome so script-built content is captured.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

const autoScrollScript = `window.scrollTo(0, document.body ? document.body.scrollHeight : 0);`

// Config controls the behavior of the headless renderer.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	AutoScroll        bool
	ScrollPasses      int
	ScrollPause       time.Duration
}

// Renderer implements crawler.Renderer using chromedp. Each Render opens a
// fresh tab on a shared browser, and calls are expected one at a time.
type Renderer struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless renderer backed by chromedp.
func NewChromedp(cfg Config) (*Renderer, error) {
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.AutoScroll && cfg.ScrollPasses <= 0 {
		cfg.ScrollPasses = 3
	}
	if cfg.ScrollPause <= 0 {
		cfg.ScrollPause = 500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates to url, waits for the DOM to settle, and extracts its content.
func (r *Renderer) Render(ctx context.Context, url string) (crawler.RenderedPage, error) {
	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	html, finalURL, err := r.runHeadless(taskCtx, url)
	if err != nil {
		return crawler.RenderedPage{}, fmt.Errorf("%w: render %s: %w", crawler.ErrFetch, url, err)
	}
	if status := meta.statusOr(http.StatusOK); status >= http.StatusBadRequest {
		return crawler.RenderedPage{}, fmt.Errorf("%w: render %s: status %d", crawler.ErrFetch, url, status)
	}
	if finalURL == "" {
		finalURL = url
	}
	page, err := crawler.ExtractHTML(finalURL, []byte(html))
	if err != nil {
		return crawler.RenderedPage{}, fmt.Errorf("%w: extract %s: %w", crawler.ErrFetch, url, err)
	}
	return page, nil
}

func (r *Renderer) runHeadless(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.SettleDelay))
	}
	actions = append(actions, r.scrollActions()...)
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

// scrollActions nudges lazy-loaded sections into the DOM.
func (r *Renderer) scrollActions() []chromedp.Action {
	if !r.cfg.AutoScroll {
		return nil
	}
	actions := make([]chromedp.Action, 0, r.cfg.ScrollPasses*2)
	for i := 0; i < r.cfg.ScrollPasses; i++ {
		actions = append(actions,
			chromedp.Evaluate(autoScrollScript, nil),
			chromedp.Sleep(r.cfg.ScrollPause),
		)
	}
	return actions
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// responseMeta records the status of the top-level document response.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) statusOr(fallback int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == 0 {
		return fallback
	}
	return m.status
}
