package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock, "", 3)
	require.NoError(t, err)
	return store, mock
}

func TestUpsertWritesAllRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	records := []crawler.VectorRecord{
		{ID: "page-0-chunk-0", Values: []float32{1, 0.5, 0}, Metadata: crawler.ChunkMetadata{SourceKind: crawler.SourcePage, Title: "Home"}},
		{ID: "pdf-0-chunk-0", Values: []float32{0, 0, 1}, Metadata: crawler.ChunkMetadata{SourceKind: crawler.SourcePDF, PageCount: 3}},
	}
	meta0, err := json.Marshal(records[0].Metadata)
	require.NoError(t, err)
	meta1, err := json.Marshal(records[1].Metadata)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_chunks (id, embedding, metadata) VALUES ($1, $2::vector, $3), ($4, $5::vector, $6)")).
		WithArgs("page-0-chunk-0", "[1,0.5,0]", meta0, "pdf-0-chunk-0", "[0,0,1]", meta1).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, store.Upsert(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	err := store.Upsert(context.Background(), []crawler.VectorRecord{{ID: "a", Values: []float32{1}}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertWrapsExecError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("a", "[1,2,3]", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.Upsert(context.Background(), []crawler.VectorRecord{{ID: "a", Values: []float32{1, 2, 3}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert vectors")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryDecodesMatches(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rows := mock.NewRows([]string{"id", "score", "metadata"}).
		AddRow("page-0-chunk-0", 0.93, []byte(`{"type":"page","title":"Home","url":"https://nitjsr.ac.in/","chunkIndex":0,"totalChunks":1,"text":"Welcome"}`)).
		AddRow("pdf-1-chunk-2", 0.71, []byte(`{"type":"pdf","pageCount":9,"chunkIndex":2,"totalChunks":4,"text":"Fees"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, 1 - (embedding <=> $1::vector) AS score, metadata")).
		WithArgs("[1,0,0]", 2).
		WillReturnRows(rows)

	got, err := store.Query(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "page-0-chunk-0", got[0].ID)
	assert.InDelta(t, 0.93, got[0].Score, 1e-9)
	assert.Equal(t, "Home", got[0].Metadata.Title)
	assert.Equal(t, crawler.SourcePDF, got[1].Metadata.SourceKind)
	assert.Equal(t, 9, got[1].Metadata.PageCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllAndStats(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("TRUNCATE TABLE document_chunks").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM document_chunks")).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(42)))

	require.NoError(t, store.DeleteAll(context.Background()))
	stats, err := store.DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crawler.StoreStats{TotalVectors: 42, Dimension: 3}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("embedding vector(3) NOT NULL")).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, "", 3)
	require.Error(t, err)
	_, err = NewWithPool(mock, "chunks; DROP TABLE x", 3)
	require.Error(t, err)
	_, err = NewWithPool(mock, "chunks", 0)
	require.Error(t, err)
}

func TestVectorLiteral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[0.25,-1,3.5]", vectorLiteral([]float32{0.25, -1, 3.5}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}
