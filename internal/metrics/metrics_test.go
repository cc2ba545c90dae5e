package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://nitjsr.ac.in/path", "nitjsr.ac.in"},
		{"standard https", "https://NITJSR.ac.in/path", "nitjsr.ac.in"},
		{"no scheme", "nitjsr.ac.in/path", "nitjsr.ac.in"},
		{"host with port", "nitjsr.ac.in:8080", "nitjsr.ac.in"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if crawlerPagesTotal == nil || indexBatchesTotal == nil || chatRequestsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservePageCountsBySiteAndStatus(t *testing.T) {
	before := testutil.ToFloat64(crawlerPagesTotalFor("metrics-page.test", "failed"))
	ObservePage("https://metrics-page.test/x", "failed")
	ObservePage("https://metrics-page.test/y", "failed")
	if got := testutil.ToFloat64(crawlerPagesTotalFor("metrics-page.test", "failed")); got != before+2 {
		t.Errorf("expected 2 failed pages, got %f", got-before)
	}
}

func TestObserveBatchAddsStoredChunks(t *testing.T) {
	Init()
	before := testutil.ToFloat64(indexChunksStoredTotal)
	ObserveBatch("ok", 5)
	ObserveBatch("failed", 0)
	if got := testutil.ToFloat64(indexChunksStoredTotal); got != before+5 {
		t.Errorf("expected 5 stored chunks, got %f", got-before)
	}
}

func TestObserveRateLimitDelay(t *testing.T) {
	ObserveRateLimitDelay("nitjsr.ac.in", 250*time.Millisecond)
	if n := testutil.CollectAndCount(crawlerRateLimitDelaysSeconds); n == 0 {
		t.Error("expected rate limit histogram to have samples")
	}
}

func crawlerPagesTotalFor(site, status string) prometheus.Counter {
	Init()
	return crawlerPagesTotal.WithLabelValues(site, status)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://nitjsr.ac.in", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
