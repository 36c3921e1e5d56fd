package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const DefaultDocumentKey = "launchpad"

func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PostgresStore keeps the document as one JSONB row keyed by document key.
type PostgresStore struct {
	db     *sql.DB
	key    string
	author string
}

func NewPostgresStore(db *sql.DB, key, author string) *PostgresStore {
	if key == "" {
		key = DefaultDocumentKey
	}
	return &PostgresStore{db: db, key: key, author: author}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Load(ctx context.Context) (AppDocument, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM launchpad_documents WHERE id=$1`, s.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return AppDocument{}, unavailable("document %q not stored yet", s.key)
	}
	if err != nil {
		return AppDocument{}, readFailed("load document %q: %v", s.key, err)
	}
	return Decode(body)
}

func (s *PostgresStore) Save(ctx context.Context, doc AppDocument) error {
	payload, err := Encode(doc)
	if err != nil {
		return writeFailed("%v", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO launchpad_documents (id, body, updated_by)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET body=EXCLUDED.body, updated_by=EXCLUDED.updated_by, updated_at=NOW()
	`, s.key, string(payload), s.author)
	if err != nil {
		return writeFailed("save document %q: %v", s.key, err)
	}
	return nil
}
