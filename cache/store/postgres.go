package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore implements cache.Store using PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	DSN   string
	Table string
}

// NewPostgresStore connects, verifies the connection and creates the table.
func NewPostgresStore(ctx context.Context, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil || config.DSN == "" {
		return nil, fmt.Errorf("postgres cache: dsn is required: %w", serrors.ErrInvalidInput)
	}
	table := config.Table
	if table == "" {
		table = "generated_content"
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("postgres cache: invalid table name %q: %w", table, serrors.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db, table: table}
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		user_id VARCHAR(255) NOT NULL,
		topic_id VARCHAR(255) NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, topic_id)
	)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get implements cache.Store.
func (s *PostgresStore) Get(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE user_id = $1 AND topic_id = $2`, s.table)
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, userID, topicID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.NotFound(userID, topicID)
		}
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return cache.Decode(payload)
}

// Put implements cache.Store. Concurrent writers race; the last one wins.
func (s *PostgresStore) Put(ctx context.Context, userID, topicID string, doc *content.GeneratedTopicContent) error {
	data, err := cache.Encode(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (user_id, topic_id, payload, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, topic_id) DO UPDATE SET
		payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.db.ExecContext(ctx, query, userID, topicID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
