package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/retrieval"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS library_documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	content     TEXT NOT NULL,
	filename    TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_library_documents_filename ON library_documents(filename);
`

// Store is a file-backed document store for offline use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; the driver serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds a chunk and returns its id.
func (s *Store) Insert(ctx context.Context, rec retrieval.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO library_documents (content, filename, category, chunk_index) VALUES (?, ?, ?, ?)`,
		rec.Content, rec.Filename, string(rec.Category), rec.ChunkIndex)
	if err != nil {
		return 0, fmt.Errorf("insert chunk: %w", err)
	}
	return res.LastInsertId()
}

// Lookup implements retrieval.Store. LIKE only folds ASCII case, so both
// sides are lowered first.
func (s *Store) Lookup(ctx context.Context, q retrieval.Lookup) ([]retrieval.Record, error) {
	var where []string
	var args []any
	if q.FilenameLike != "" {
		where = append(where, "lower(filename) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.FilenameLike)+"%")
	}
	if q.ContentLike != "" {
		where = append(where, "lower(content) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.ContentLike)+"%")
	}
	query := "SELECT id, content, filename, category, chunk_index FROM library_documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Descending {
		query += " ORDER BY id DESC"
	} else {
		query += " ORDER BY id ASC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []retrieval.Record
	for rows.Next() {
		var rec retrieval.Record
		var category string
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Filename, &category, &rec.ChunkIndex); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		rec.Category = content.Category(strings.ToUpper(category))
		out = append(out, rec)
	}
	return out, rows.Err()
}
