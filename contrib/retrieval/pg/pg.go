package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/retrieval"
)

var reIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store reads chunks from a PostgreSQL table shaped as
// (id bigserial, content text, metadata jsonb{filename, category, chunk_index}).
type Store struct {
	db    *sql.DB
	table string
}

// Config holds PostgreSQL document store configuration
type Config struct {
	DSN   string
	Table string
}

// New opens the database and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "library_documents"
	}
	if !reIdent.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return &Store{db: db, table: cfg.Table}, nil
}

// EnsureSchema creates the documents table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// Insert stores a chunk and returns its id.
func (s *Store) Insert(ctx context.Context, rec retrieval.Record) (int64, error) {
	meta, err := json.Marshal(map[string]any{
		"filename":    rec.Filename,
		"category":    string(rec.Category),
		"chunk_index": rec.ChunkIndex,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	var id int64
	query := fmt.Sprintf(`INSERT INTO %s (content, metadata) VALUES ($1, $2) RETURNING id`, s.table)
	if err := s.db.QueryRowContext(ctx, query, rec.Content, meta).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert chunk: %w", err)
	}
	return id, nil
}

// Lookup implements retrieval.Store with ILIKE filters.
func (s *Store) Lookup(ctx context.Context, q retrieval.Lookup) ([]retrieval.Record, error) {
	query, args := buildLookup(s.table, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []retrieval.Record
	for rows.Next() {
		var rec retrieval.Record
		var category string
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Filename, &category, &rec.ChunkIndex); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		rec.Category = content.Category(strings.ToUpper(category))
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildLookup(table string, q retrieval.Lookup) (string, []any) {
	var where []string
	var args []any
	if q.FilenameLike != "" {
		args = append(args, "%"+q.FilenameLike+"%")
		where = append(where, fmt.Sprintf("metadata->>'filename' ILIKE $%d", len(args)))
	}
	if q.ContentLike != "" {
		args = append(args, "%"+q.ContentLike+"%")
		where = append(where, fmt.Sprintf("content ILIKE $%d", len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT id, content, COALESCE(metadata->>'filename', ''), COALESCE(metadata->>'category', ''), COALESCE((metadata->>'chunk_index')::int, 0) FROM %s`, table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if q.Descending {
		b.WriteString(" ORDER BY id DESC")
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
