package retrieval

import (
	"context"

	"github.com/sweetpotato0/studygen/content"
)

// Lookup is one primitive query against the document store. Patterns match
// case-insensitively as substrings; empty patterns are ignored.
type Lookup struct {
	FilenameLike string
	ContentLike  string
	Descending   bool // order by id descending, to sample the end of a document
	Limit        int
}

// Record is a stored chunk.
type Record struct {
	ID         int64
	Content    string
	Filename   string
	Category   content.Category
	ChunkIndex int
}

// Store answers lookups over chunked source documents. Implementations must
// be safe for concurrent use.
type Store interface {
	Lookup(ctx context.Context, q Lookup) ([]Record, error)
}
