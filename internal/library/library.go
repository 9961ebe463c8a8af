// Package library records the books a user has downloaded and how far they
// have read in each.
//
// A [Store] is a single handle opened at start-up and passed explicitly to
// its consumers. Two implementations exist: [MemStore] for tests and
// single-process use, and [PostgresStore] for persistence.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an item or progress record does not exist.
	ErrNotFound = errors.New("library: not found")

	// ErrDuplicate is returned when an item with the same ID or book ID
	// already exists.
	ErrDuplicate = errors.New("library: duplicate")
)

// Item is a downloaded book.
type Item struct {
	ID        string    `json:"id"`
	BookID    int64     `json:"book_id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields a client must supply.
func (i Item) Validate() error {
	var errs []error
	if i.BookID <= 0 {
		errs = append(errs, fmt.Errorf("book_id must be positive, got %d", i.BookID))
	}
	if strings.TrimSpace(i.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if strings.TrimSpace(i.FilePath) == "" {
		errs = append(errs, errors.New("file_path is required"))
	}
	return errors.Join(errs...)
}

// Progress is the reading position within a book.
type Progress struct {
	BookID        int64     `json:"book_id"`
	ChapterIndex  int       `json:"chapter_index"`
	ChapterOffset int       `json:"chapter_offset"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks that the position is well formed.
func (p Progress) Validate() error {
	var errs []error
	if p.BookID <= 0 {
		errs = append(errs, fmt.Errorf("book_id must be positive, got %d", p.BookID))
	}
	if p.ChapterIndex < 0 {
		errs = append(errs, fmt.Errorf("chapter_index must not be negative, got %d", p.ChapterIndex))
	}
	if p.ChapterOffset < 0 {
		errs = append(errs, fmt.Errorf("chapter_offset must not be negative, got %d", p.ChapterOffset))
	}
	return errors.Join(errs...)
}

// Store persists library items and reading progress. Implementations must be
// safe for concurrent use.
type Store interface {
	// AddItem inserts item. An empty ID is replaced by a generated one and a
	// zero CreatedAt by the current time. Returns [ErrDuplicate] if the ID
	// or book ID is taken.
	AddItem(ctx context.Context, item Item) (Item, error)

	// GetItem returns the item with the given ID or [ErrNotFound].
	GetItem(ctx context.Context, id string) (Item, error)

	// GetItemByBookID returns the item for a catalogue book or [ErrNotFound].
	GetItemByBookID(ctx context.Context, bookID int64) (Item, error)

	// ListItems returns every item, newest first.
	ListItems(ctx context.Context) ([]Item, error)

	// DeleteItem removes the item or returns [ErrNotFound].
	DeleteItem(ctx context.Context, id string) error

	// SaveProgress inserts or replaces the progress for p.BookID and returns
	// it with UpdatedAt set.
	SaveProgress(ctx context.Context, p Progress) (Progress, error)

	// GetProgress returns the progress for bookID or [ErrNotFound].
	GetProgress(ctx context.Context, bookID int64) (Progress, error)

	// DeleteProgress removes the progress for bookID. Deleting a missing
	// record is not an error.
	DeleteProgress(ctx context.Context, bookID int64) error
}
