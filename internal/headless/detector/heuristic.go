// Package detector decides when a statically fetched page must be re-rendered
// in headless Chrome, and provides a Renderer that applies that decision.
package detector

import (
	"bytes"
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

const (
	defaultMinContentWords = 40
	scriptCoveragePercent  = 25
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	// MinContentWords is the extracted word count below which a page is
	// considered script-built.
	MinContentWords int
}

// NewHeuristic creates a new detector. A zero threshold selects the default.
func NewHeuristic(minContentWords int) *Heuristic {
	if minContentWords <= 0 {
		minContentWords = defaultMinContentWords
	}
	return &Heuristic{MinContentWords: minContentWords}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote reports whether the static markup is unlikely to carry the
// page's real content.
func (h *Heuristic) ShouldPromote(body []byte, page crawler.RenderedPage) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	words := 0
	for _, block := range page.ContentBlocks {
		words += len(strings.Fields(block))
	}
	if words >= h.MinContentWords {
		return false
	}
	if scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return words == 0
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			// Unclosed script runs to the end of the document.
			covered += total - start
			break
		}
		next := start + end + len(closeTag)
		covered += next - start
		pos = next
	}
	return covered*100/total >= scriptCoveragePercent
}

// StaticRenderer fetches without executing scripts and returns the raw body.
type StaticRenderer interface {
	RenderRaw(ctx context.Context, url string) (crawler.RenderedPage, []byte, error)
}

// Renderer tries the static renderer first and re-renders in the headless
// browser when the Heuristic says the static markup is not enough. A failed
// promotion falls back to the static result.
type Renderer struct {
	static    StaticRenderer
	headless  crawler.Renderer
	heuristic *Heuristic
	logger    *zap.Logger
}

// NewRenderer wires the two renderers. A nil heuristic uses the defaults.
func NewRenderer(static StaticRenderer, headless crawler.Renderer, heuristic *Heuristic, logger *zap.Logger) *Renderer {
	if heuristic == nil {
		heuristic = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		static:    static,
		headless:  headless,
		heuristic: heuristic,
		logger:    logger.Named("detector"),
	}
}

// Render implements crawler.Renderer.
func (r *Renderer) Render(ctx context.Context, url string) (crawler.RenderedPage, error) {
	page, body, err := r.static.RenderRaw(ctx, url)
	if err != nil {
		return crawler.RenderedPage{}, err
	}
	if r.headless == nil || !r.heuristic.ShouldPromote(body, page) {
		return page, nil
	}
	promoted, err := r.headless.Render(ctx, url)
	if err != nil {
		r.logger.Warn("headless promotion failed", zap.String("url", url), zap.Error(err))
		return page, nil
	}
	r.logger.Debug("headless promotion applied", zap.String("url", url))
	return promoted, nil
}
