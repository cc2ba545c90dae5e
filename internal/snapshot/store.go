// Package snapshot persists crawl snapshots as JSON through a blob store.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

const (
	// DefaultPrefix is the blob path prefix snapshots are written under.
	DefaultPrefix = "snapshots/"
	// NamePrefix starts every snapshot name.
	NamePrefix = "nitjsr-scrape-"

	nameLayout  = "2006-01-02T15-04-05Z"
	contentType = "application/json"
	extension   = ".json"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Store reads and writes snapshots.
type Store struct {
	blobs  crawler.BlobStore
	prefix string
}

// New builds a Store over blobs. An empty prefix selects DefaultPrefix.
func New(blobs crawler.BlobStore, prefix string) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{blobs: blobs, prefix: prefix}, nil
}

// Name derives the snapshot name for a save time.
func Name(savedAt time.Time) string {
	return NamePrefix + savedAt.UTC().Format(nameLayout)
}

// Save writes snap under a name derived from its SavedAt and returns the name
// and the URI the blob store reported.
func (s *Store) Save(ctx context.Context, snap crawler.Snapshot) (string, string, error) {
	if snap.Metadata.SavedAt.IsZero() {
		return "", "", fmt.Errorf("snapshot saved-at time is required")
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal snapshot: %w", err)
	}
	name := Name(snap.Metadata.SavedAt)
	uri, err := s.blobs.PutObject(ctx, s.objectPath(name), contentType, bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("put snapshot %s: %w", name, err)
	}
	return name, uri, nil
}

// Load reads the named snapshot.
func (s *Store) Load(ctx context.Context, name string) (crawler.Snapshot, error) {
	name = strings.TrimSuffix(path.Base(name), extension)
	data, err := s.blobs.GetObject(ctx, s.objectPath(name))
	if err != nil {
		if errors.Is(err, crawler.ErrObjectNotFound) {
			return crawler.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return crawler.Snapshot{}, fmt.Errorf("get snapshot %s: %w", name, err)
	}
	var snap crawler.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return crawler.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return snap, nil
}

// List returns snapshot names, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	objects, err := s.blobs.ListObjects(ctx, s.prefix+NamePrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj, extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(path.Base(obj), extension))
	}
	return names, nil
}

// Latest returns the name of the newest snapshot. Names sort chronologically.
func (s *Store) Latest(ctx context.Context) (string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	latest := names[0]
	for _, n := range names[1:] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

// LoadLatest loads the newest snapshot and returns it with its name.
func (s *Store) LoadLatest(ctx context.Context) (crawler.Snapshot, string, error) {
	name, err := s.Latest(ctx)
	if err != nil {
		return crawler.Snapshot{}, "", err
	}
	snap, err := s.Load(ctx, name)
	if err != nil {
		return crawler.Snapshot{}, "", err
	}
	return snap, name, nil
}

func (s *Store) objectPath(name string) string {
	return s.prefix + name + extension
}
