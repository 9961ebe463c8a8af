package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the library tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS library_items (
    id         TEXT PRIMARY KEY,
    book_id    BIGINT NOT NULL UNIQUE,
    title      TEXT NOT NULL,
    authors    TEXT NOT NULL DEFAULT '',
    file_path  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_library_items_created ON library_items(created_at DESC);

CREATE TABLE IF NOT EXISTS reader_progress (
    book_id        BIGINT PRIMARY KEY,
    chapter_index  INTEGER NOT NULL DEFAULT 0,
    chapter_offset INTEGER NOT NULL DEFAULT 0,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store using db. Call [PostgresStore.Migrate]
// before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes [Schema]. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("library: migrate: %w", err)
	}
	return nil
}

const itemColumns = `id, book_id, title, authors, file_path, created_at`

// AddItem implements [Store.AddItem].
func (s *PostgresStore) AddItem(ctx context.Context, item Item) (Item, error) {
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO library_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		item.ID, item.BookID, item.Title, item.Authors, item.FilePath, item.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Item{}, fmt.Errorf("%w: book %d", ErrDuplicate, item.BookID)
		}
		return Item{}, fmt.Errorf("library: add item: %w", err)
	}
	return item, nil
}

// GetItem implements [Store.GetItem].
func (s *PostgresStore) GetItem(ctx context.Context, id string) (Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM library_items WHERE id = $1`
	item, err := scanItem(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return Item{}, wrapNotFound("get item", err)
	}
	return item, nil
}

// GetItemByBookID implements [Store.GetItemByBookID].
func (s *PostgresStore) GetItemByBookID(ctx context.Context, bookID int64) (Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM library_items WHERE book_id = $1`
	item, err := scanItem(s.db.QueryRow(ctx, query, bookID))
	if err != nil {
		return Item{}, wrapNotFound("get item by book", err)
	}
	return item, nil
}

// ListItems implements [Store.ListItems].
func (s *PostgresStore) ListItems(ctx context.Context) ([]Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM library_items ORDER BY created_at DESC, id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("library: list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("library: list items scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("library: list items: %w", err)
	}
	return items, nil
}

// DeleteItem implements [Store.DeleteItem].
func (s *PostgresStore) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM library_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("library: delete item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveProgress implements [Store.SaveProgress].
func (s *PostgresStore) SaveProgress(ctx context.Context, p Progress) (Progress, error) {
	if err := p.Validate(); err != nil {
		return Progress{}, err
	}

	const query = `
		INSERT INTO reader_progress (book_id, chapter_index, chapter_offset)
		VALUES ($1, $2, $3)
		ON CONFLICT (book_id) DO UPDATE SET
			chapter_index  = EXCLUDED.chapter_index,
			chapter_offset = EXCLUDED.chapter_offset,
			updated_at     = now()
		RETURNING updated_at`

	if err := s.db.QueryRow(ctx, query, p.BookID, p.ChapterIndex, p.ChapterOffset).Scan(&p.UpdatedAt); err != nil {
		return Progress{}, fmt.Errorf("library: save progress: %w", err)
	}
	return p, nil
}

// GetProgress implements [Store.GetProgress].
func (s *PostgresStore) GetProgress(ctx context.Context, bookID int64) (Progress, error) {
	const query = `
		SELECT book_id, chapter_index, chapter_offset, updated_at
		FROM reader_progress WHERE book_id = $1`

	var p Progress
	err := s.db.QueryRow(ctx, query, bookID).Scan(&p.BookID, &p.ChapterIndex, &p.ChapterOffset, &p.UpdatedAt)
	if err != nil {
		return Progress{}, wrapNotFound("get progress", err)
	}
	return p, nil
}

// DeleteProgress implements [Store.DeleteProgress].
func (s *PostgresStore) DeleteProgress(ctx context.Context, bookID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM reader_progress WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("library: delete progress %d: %w", bookID, err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.BookID, &item.Title, &item.Authors, &item.FilePath, &item.CreatedAt)
	return item, err
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("library: %s: %w", op, err)
}

// isDuplicateKeyError reports a unique violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
