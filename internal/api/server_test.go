package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/rag"
)

func TestServer_Chat_ReturnsAnswer(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{answer: rag.Answer{Question: "fees?", Answer: "See the fee notice.", Confidence: 0.9}}
	server := newTestServer(answerer, &fakeStats{})

	rec := do(server, http.MethodPost, "/v1/chat", `{"question":"  fees?  "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fees?", answerer.lastQuestion)
	var got rag.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "See the fee notice.", got.Answer)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestServer_Chat_BadRequests(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{}, &fakeStats{})

	rec := do(server, http.MethodPost, "/v1/chat", "{invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(server, http.MethodPost, "/v1/chat", `{"question":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")

	long := fmt.Sprintf(`{"question":%q}`, strings.Repeat("a", maxQuestionRunes+1))
	rec = do(server, http.MethodPost, "/v1/chat", long)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Chat_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{}
	server := newTestServer(answerer, &fakeStats{})
	body := `{"question":"` + strings.Repeat("a", maxChatBodyBytes+1) + `"}`
	rec := do(server, http.MethodPost, "/v1/chat", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most")
	assert.Empty(t, answerer.lastQuestion)
}

func TestServer_Chat_UpstreamFailure(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{err: fmt.Errorf("generate answer: %w", crawler.ErrGeneration)}, &fakeStats{})
	rec := do(server, http.MethodPost, "/v1/chat", `{"question":"who is the director?"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "try again")
}

func TestServer_Search(t *testing.T) {
	t.Parallel()

	answerer := &fakeAnswerer{docs: []rag.Document{{ID: "page-0-chunk-0", Text: "Admissions open", Score: 0.7}}}
	server := newTestServer(answerer, &fakeStats{})

	rec := do(server, http.MethodGet, "/v1/search?q=admissions&top_k=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, answerer.lastTopK)
	assert.Contains(t, rec.Body.String(), "page-0-chunk-0")

	rec = do(server, http.MethodGet, "/v1/search?q=admissions&top_k=500", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(server, http.MethodGet, "/v1/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_IndexStats(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{}, &fakeStats{stats: crawler.StoreStats{TotalVectors: 42, Dimension: 768}})
	rec := do(server, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got crawler.StoreStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 42, got.TotalVectors)

	failing := newTestServer(&fakeAnswerer{}, &fakeStats{err: errors.New("connection refused")})
	rec = do(failing, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{}, &fakeStats{})
	require.Equal(t, http.StatusOK, do(server, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, do(server, http.MethodGet, "/readyz", "").Code)

	down := newTestServer(&fakeAnswerer{}, &fakeStats{err: errors.New("down")})
	require.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/readyz", "").Code)
	require.Equal(t, http.StatusOK, do(down, http.MethodGet, "/healthz", "").Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{}, &fakeStats{})
	do(server, http.MethodGet, "/healthz", "")

	rec := do(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_CrawlState(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeAnswerer{}, &fakeStats{}, fakeState(pipeline.StateDrainingPDFs), config.ServerConfig{}, zap.NewNop())
	rec := do(server, http.MethodGet, "/v1/crawl/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "draining_pdfs")

	rec = do(newTestServer(&fakeAnswerer{}, nil), http.MethodGet, "/v1/crawl/state", "")
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeAnswerer{}, &fakeStats{}, nil, config.ServerConfig{APIKey: "secret"}, zap.NewNop())

	rec := do(server, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/index/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodGet, "/v1/index/stats?api_key=secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, do(server, http.MethodGet, "/healthz", "").Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnswerer{}, &fakeStats{})
	rec := do(server, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

// --- helpers/fakes ---

type fakeAnswerer struct {
	answer       rag.Answer
	docs         []rag.Document
	err          error
	lastQuestion string
	lastTopK     int
}

func (f *fakeAnswerer) Chat(_ context.Context, question string) (rag.Answer, error) {
	f.lastQuestion = question
	if f.err != nil {
		return rag.Answer{}, f.err
	}
	return f.answer, nil
}

func (f *fakeAnswerer) QueryDocuments(_ context.Context, question string, topK int) ([]rag.Document, error) {
	f.lastQuestion = question
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeStats struct {
	stats crawler.StoreStats
	err   error
}

func (f *fakeStats) DescribeStats(context.Context) (crawler.StoreStats, error) {
	return f.stats, f.err
}

type fakeState pipeline.State

func (s fakeState) State() pipeline.State { return pipeline.State(s) }

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(answerer Answerer, stats *fakeStats) *Server {
	var src StatsSource
	if stats != nil {
		src = stats
	}
	return NewServer(answerer, src, nil, config.ServerConfig{}, zap.NewNop())
}

func do(server *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}
