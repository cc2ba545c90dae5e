// Package pgvector stores embeddings in Postgres using the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

const defaultTable = "document_chunks"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and target table.
type Config struct {
	DSN             string
	Table           string
	Dimension       int
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements crawler.VectorStore on a Postgres table.
type Store struct {
	pool      pool
	table     string
	dimension int
}

// New connects to Postgres and ensures the table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("vectorstore.pgvector.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.Table, cfg.Dimension)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, dimension int) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be > 0")
	}
	return &Store{pool: p, table: table, dimension: dimension}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the extension and table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	metadata JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table, s.dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Upsert writes all records in one statement.
func (s *Store) Upsert(ctx context.Context, records []crawler.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	var (
		values []string
		args   = make([]any, 0, len(records)*3)
	)
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if len(r.Values) != s.dimension {
			return fmt.Errorf("record %s has %d dimensions, want %d", r.ID, len(r.Values), s.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", r.ID, err)
		}
		n := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d::vector, $%d)", n+1, n+2, n+3))
		args = append(args, r.ID, vectorLiteral(r.Values), meta)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, embedding, metadata) VALUES %s
ON CONFLICT (id) DO UPDATE SET
	embedding = EXCLUDED.embedding,
	metadata = EXCLUDED.metadata,
	updated_at = now()`, s.table, strings.Join(values, ", "))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// Query returns the topK rows closest to vector by cosine distance. Score is
// 1 - distance.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]crawler.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT id, 1 - (embedding <=> $1::vector) AS score, metadata
FROM %s
ORDER BY embedding <=> $1::vector, id
LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, vectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var out []crawler.VectorMatch
	for rows.Next() {
		var (
			m    crawler.VectorMatch
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector rows: %w", err)
	}
	return out, nil
}

// DeleteAll empties the table.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", s.table, err)
	}
	return nil
}

// DescribeStats counts rows.
func (s *Store) DescribeStats(ctx context.Context) (crawler.StoreStats, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&total); err != nil {
		return crawler.StoreStats{}, fmt.Errorf("count vectors: %w", err)
	}
	return crawler.StoreStats{TotalVectors: int(total), Dimension: s.dimension}, nil
}

func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
