// Package weaviate stores embeddings in a Weaviate class with externally
// supplied vectors.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/id/uuid"
)

const defaultClass = "NitjsrChunk"

// Config selects the Weaviate endpoint and class.
type Config struct {
	Host      string
	APIKey    string
	Class     string
	Dimension int
}

// Store implements crawler.VectorStore.
type Store struct {
	client    *weaviate.Client
	class     string
	dimension int
}

var classProperties = []*models.Property{
	{Name: "chunkId", DataType: []string{"text"}},
	{Name: "sourceType", DataType: []string{"text"}},
	{Name: "url", DataType: []string{"text"}},
	{Name: "title", DataType: []string{"text"}},
	{Name: "category", DataType: []string{"text"}},
	{Name: "chunkIndex", DataType: []string{"int"}},
	{Name: "totalChunks", DataType: []string{"int"}},
	{Name: "hasTables", DataType: []string{"boolean"}},
	{Name: "hasLists", DataType: []string{"boolean"}},
	{Name: "hasLinks", DataType: []string{"boolean"}},
	{Name: "pageCount", DataType: []string{"int"}},
	{Name: "sourceUrl", DataType: []string{"text"}},
	{Name: "text", DataType: []string{"text"}},
}

// New connects to Weaviate and creates the class when it is missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("vectorstore.weaviate.host is required")
	}
	scheme := "http"
	host := cfg.Host
	if strings.HasPrefix(host, "https://") {
		scheme = "https"
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")

	wcfg := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	class := cfg.Class
	if class == "" {
		class = defaultClass
	}
	s := &Store{client: client, class: class, dimension: cfg.Dimension}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) classDefinition() *models.Class {
	return &models.Class{
		Class:           s.class,
		Description:     "Crawled NIT Jamshedpur content chunks",
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		Properties:      classProperties,
	}
}

func (s *Store) ensureClass(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("get weaviate schema: %w", err)
	}
	for _, c := range schema.Classes {
		if c.Class == s.class {
			return nil
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", s.class, err)
	}
	return nil
}

// Upsert writes records through the batch API. Object ids are derived from
// chunk ids so repeated indexing replaces rather than duplicates.
func (s *Store) Upsert(ctx context.Context, records []crawler.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	batcher := s.client.Batch().ObjectsBatcher()
	for _, r := range records {
		batcher = batcher.WithObjects(&models.Object{
			Class:      s.class,
			ID:         strfmt.UUID(uuid.FromKey(r.ID)),
			Properties: properties(r.ID, r.Metadata),
			Vector:     r.Values,
		})
	}
	results, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}
	for _, res := range results {
		if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert object %s: %s", res.ID, res.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Query runs a nearVector search. Score is 1 - cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]crawler.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	fields := make([]graphql.Field, 0, len(classProperties)+1)
	for _, p := range classProperties {
		fields = append(fields, graphql.Field{Name: p.Name})
	}
	fields = append(fields, graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}, {Name: "id"}}})

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near vector query: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("near vector query: %s", resp.Errors[0].Message)
	}
	get, _ := resp.Data["Get"].(map[string]interface{})
	items, _ := get[s.class].([]interface{})
	out := make([]crawler.VectorMatch, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, matchFromObject(obj))
	}
	return out, nil
}

// DeleteAll drops and recreates the class.
func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx); err != nil {
		return fmt.Errorf("delete class %s: %w", s.class, err)
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("recreate class %s: %w", s.class, err)
	}
	return nil
}

// DescribeStats counts objects in the class.
func (s *Store) DescribeStats(ctx context.Context) (crawler.StoreStats, error) {
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return crawler.StoreStats{}, fmt.Errorf("aggregate %s: %w", s.class, err)
	}
	if len(resp.Errors) > 0 {
		return crawler.StoreStats{}, fmt.Errorf("aggregate %s: %s", s.class, resp.Errors[0].Message)
	}
	return crawler.StoreStats{TotalVectors: countFromAggregate(resp.Data, s.class), Dimension: s.dimension}, nil
}

func properties(id string, m crawler.ChunkMetadata) map[string]interface{} {
	return map[string]interface{}{
		"chunkId":     id,
		"sourceType":  string(m.SourceKind),
		"url":         m.URL,
		"title":       m.Title,
		"category":    string(m.Category),
		"chunkIndex":  m.ChunkIndex,
		"totalChunks": m.TotalChunks,
		"hasTables":   m.HasTables,
		"hasLists":    m.HasLists,
		"hasLinks":    m.HasLinks,
		"pageCount":   m.PageCount,
		"sourceUrl":   m.SourceURL,
		"text":        m.Text,
	}
}

func matchFromObject(obj map[string]interface{}) crawler.VectorMatch {
	m := crawler.VectorMatch{
		ID: str(obj["chunkId"]),
		Metadata: crawler.ChunkMetadata{
			SourceKind:  crawler.SourceKind(str(obj["sourceType"])),
			URL:         str(obj["url"]),
			Title:       str(obj["title"]),
			Category:    crawler.Category(str(obj["category"])),
			ChunkIndex:  num(obj["chunkIndex"]),
			TotalChunks: num(obj["totalChunks"]),
			HasTables:   boolean(obj["hasTables"]),
			HasLists:    boolean(obj["hasLists"]),
			HasLinks:    boolean(obj["hasLinks"]),
			PageCount:   num(obj["pageCount"]),
			SourceURL:   str(obj["sourceUrl"]),
			Text:        str(obj["text"]),
		},
	}
	if additional, ok := obj["_additional"].(map[string]interface{}); ok {
		if d, ok := additional["distance"].(float64); ok {
			m.Score = 1 - d
		}
		if m.ID == "" {
			m.ID = str(additional["id"])
		}
	}
	return m
}

func countFromAggregate(data map[string]models.JSONObject, class string) int {
	agg, _ := data["Aggregate"].(map[string]interface{})
	rows, _ := agg[class].([]interface{})
	if len(rows) == 0 {
		return 0
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	return num(meta["count"])
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func boolean(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
