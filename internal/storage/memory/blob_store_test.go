package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/snap.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://path/snap.json", uri)

	payload[0] = 'C'
	got, err := store.GetObject(context.Background(), "path/snap.json")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.GetObject(context.Background(), "path/snap.json")
	require.NoError(t, err)
	assert.Equal(t, "content", string(again))
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing")
	assert.ErrorIs(t, err, crawler.ErrObjectNotFound)
}

func TestBlobStoreListObjects(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	for _, p := range []string{"snapshots/b", "snapshots/a", "x/c"} {
		_, err := store.PutObject(ctx, p, "", bytes.NewReader(nil))
		require.NoError(t, err)
	}
	got, err := store.ListObjects(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/a", "snapshots/b"}, got)

	_, err = store.PutObject(ctx, "", "", bytes.NewReader(nil))
	assert.Error(t, err)
}
