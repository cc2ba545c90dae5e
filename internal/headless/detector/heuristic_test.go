package detector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

func wordyPage(n int) crawler.RenderedPage {
	return crawler.RenderedPage{ContentBlocks: []string{strings.Repeat("word ", n)}}
}

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	require.True(t, h.ShouldPromote([]byte("  "), crawler.RenderedPage{}))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	require.True(t, h.ShouldPromote([]byte(`<div id="__next"></div><p>loading</p>`), wordyPage(1)))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	body := []byte(`<html><script>var a=1;</script><p>t</p></html>`)
	require.True(t, h.ShouldPromote(body, wordyPage(1)))
}

func TestHeuristic_ShouldPromote_EnoughContent(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	body := []byte(`<html><div id="app"><script>boot()</script></div></html>`)
	require.False(t, h.ShouldPromote(body, wordyPage(20)))
}

func TestHeuristic_DefaultThreshold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultMinContentWords, NewHeuristic(0).MinContentWords)
}

type fakeStatic struct {
	page crawler.RenderedPage
	body []byte
	err  error
}

func (f fakeStatic) RenderRaw(context.Context, string) (crawler.RenderedPage, []byte, error) {
	return f.page, f.body, f.err
}

type fakeHeadless struct {
	page  crawler.RenderedPage
	err   error
	calls int
}

func (f *fakeHeadless) Render(context.Context, string) (crawler.RenderedPage, error) {
	f.calls++
	return f.page, f.err
}

func TestRendererKeepsStaticPage(t *testing.T) {
	t.Parallel()

	static := fakeStatic{page: wordyPage(100), body: []byte("<p>plenty</p>")}
	headless := &fakeHeadless{}
	r := NewRenderer(static, headless, nil, nil)

	page, err := r.Render(context.Background(), "https://nitjsr.ac.in/")
	require.NoError(t, err)
	assert.Equal(t, static.page, page)
	assert.Zero(t, headless.calls)
}

func TestRendererPromotesScriptBuiltPage(t *testing.T) {
	t.Parallel()

	static := fakeStatic{body: []byte(`<div id="root"></div>`)}
	headless := &fakeHeadless{page: crawler.RenderedPage{Title: "Rendered"}}
	r := NewRenderer(static, headless, NewHeuristic(5), nil)

	page, err := r.Render(context.Background(), "https://nitjsr.ac.in/notices")
	require.NoError(t, err)
	assert.Equal(t, "Rendered", page.Title)
	assert.Equal(t, 1, headless.calls)
}

func TestRendererFallsBackWhenPromotionFails(t *testing.T) {
	t.Parallel()

	static := fakeStatic{page: crawler.RenderedPage{Title: "Static"}, body: []byte(`<div id="root"></div>`)}
	headless := &fakeHeadless{err: errors.New("chrome crashed")}
	r := NewRenderer(static, headless, nil, nil)

	page, err := r.Render(context.Background(), "https://nitjsr.ac.in/")
	require.NoError(t, err)
	assert.Equal(t, "Static", page.Title)
}

func TestRendererPropagatesStaticFailure(t *testing.T) {
	t.Parallel()

	r := NewRenderer(fakeStatic{err: crawler.ErrFetch}, &fakeHeadless{}, nil, nil)
	_, err := r.Render(context.Background(), "https://nitjsr.ac.in/")
	require.ErrorIs(t, err, crawler.ErrFetch)
}
