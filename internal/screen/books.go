package screen

import (
	"context"
	"strings"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// BooksState is the state of the book list screen.
type BooksState = State[books.Book]

// BookSource is the part of [books.Client] the book list needs.
type BookSource interface {
	ListBooks(ctx context.Context, page int64, lang books.Language) (*books.BookSet, error)
	Search(ctx context.Context, query string) (*books.BookSet, error)
}

// BookListConfig configures a [BookList].
type BookListConfig struct {
	Source   BookSource
	Language books.Language
	Dispatch Dispatcher
	OnChange func(BooksState)
	Metrics  *observe.Metrics
}

// BookList lists the downloadable (EPUB) books of the catalogue, optionally
// restricted to one language.
type BookList struct {
	*list[books.Book]
	source BookSource
	lang   books.Language
}

// NewBookList returns a book list bound to ctx. It does not load anything
// until [BookList.LoadMore] is called.
func NewBookList(ctx context.Context, cfg BookListConfig) *BookList {
	b := &BookList{source: cfg.Source, lang: cfg.Language}
	b.list = newList(ctx, listConfig[books.Book]{
		name:     "books",
		bind:     b.bindFetch,
		keep:     books.FilterEpub,
		dispatch: cfg.Dispatch,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
	})
	return b
}

// Language returns the current catalogue language.
func (b *BookList) Language() books.Language {
	return b.lang
}

// SetLanguage switches the catalogue language and reloads the list.
func (b *BookList) SetLanguage(lang books.Language) {
	b.lang = lang
	b.Reload()
}

// Search queries the whole catalogue and returns the matching EPUB books.
// It leaves the list untouched and may be called from any goroutine.
func (b *BookList) Search(ctx context.Context, query string) ([]books.Book, error) {
	if strings.TrimSpace(query) == "" {
		return []books.Book{}, nil
	}
	set, err := b.source.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return books.FilterEpub(set.Books), nil
}

func (b *BookList) bindFetch() paginate.FetchFunc[int64, books.Book] {
	lang := b.lang
	return func(ctx context.Context, page int64) ([]books.Book, error) {
		set, err := b.source.ListBooks(ctx, page, lang)
		if err != nil {
			return nil, err
		}
		return set.Books, nil
	}
}
