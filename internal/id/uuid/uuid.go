// Package uuid issues run IDs and vector object IDs.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk-derived object IDs to this index so they never
// collide with URL-namespaced UUIDs issued elsewhere.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://nitjsr.ac.in/#chunks"))

// Generator creates run and job IDs.
type Generator struct {
	prefix string
}

// New creates a Generator. A non-empty prefix is prepended to every ID,
// e.g. "crawl-0190...".
func New(prefix ...string) *Generator {
	g := &Generator{}
	if len(prefix) > 0 {
		g.prefix = strings.TrimSuffix(strings.TrimSpace(prefix[0]), "-")
	}
	return g
}

// NewID returns a time-ordered UUIDv7 string so run listings sort by start.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "-" + id.String(), nil
}

// FromKey maps a chunk ID such as "page-0-chunk-0" onto a name-based UUIDv5.
// Stores that require UUID object IDs use it so re-indexing overwrites.
func FromKey(key string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}
