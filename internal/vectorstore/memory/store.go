// Package memory provides an in-process vector store using cosine similarity.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// Store keeps vectors in a map keyed by id.
type Store struct {
	mu        sync.RWMutex
	records   map[string]crawler.VectorRecord
	dimension int
}

// New returns an empty Store. A dimension of 0 accepts the width of the
// first upserted vector.
func New(dimension int) *Store {
	return &Store{records: make(map[string]crawler.VectorRecord), dimension: dimension}
}

// Upsert inserts or replaces records.
func (s *Store) Upsert(_ context.Context, records []crawler.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if s.dimension == 0 {
			s.dimension = len(r.Values)
		}
		if len(r.Values) != s.dimension {
			return fmt.Errorf("record %s has %d dimensions, want %d", r.ID, len(r.Values), s.dimension)
		}
	}
	for _, r := range records {
		r.Values = append([]float32(nil), r.Values...)
		s.records[r.ID] = r
	}
	return nil
}

// Query ranks records by cosine similarity to vector, highest first, ties
// broken by id.
func (s *Store) Query(_ context.Context, vector []float32, topK int) ([]crawler.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(vector), s.dimension)
	}
	matches := make([]crawler.VectorMatch, 0, len(s.records))
	for id, r := range s.records {
		matches = append(matches, crawler.VectorMatch{ID: id, Score: cosine(vector, r.Values), Metadata: r.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteAll removes every record.
func (s *Store) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]crawler.VectorRecord)
	return nil
}

// DescribeStats reports the record count and dimension.
func (s *Store) DescribeStats(context.Context) (crawler.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return crawler.StoreStats{TotalVectors: len(s.records), Dimension: s.dimension}, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
