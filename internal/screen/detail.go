package screen

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/fluentforge/internal/httpapi"
	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// mimeCover is the format key of a book's cover image.
const mimeCover = "image/jpeg"

// BookLookup is the part of [books.Client] the detail screen needs.
type BookLookup interface {
	GetByID(ctx context.Context, id int64) (*books.Book, error)
}

// BookDetailView is the JSON shape of one catalogue book as shown on the
// detail screen.
type BookDetailView struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Authors       string   `json:"authors"`
	Languages     []string `json:"languages"`
	Subjects      []string `json:"subjects"`
	EpubURL       string   `json:"epub_url,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	DownloadCount int64    `json:"download_count"`
}

func newBookDetailView(b *books.Book) BookDetailView {
	v := BookDetailView{
		ID:            b.ID,
		Title:         b.Title,
		Authors:       b.AuthorNames(),
		Languages:     b.Languages,
		Subjects:      b.Subjects,
		EpubURL:       b.EpubURL(),
		CoverURL:      b.Formats[mimeCover],
		DownloadCount: b.DownloadCount,
	}
	if v.Languages == nil {
		v.Languages = []string{}
	}
	if v.Subjects == nil {
		v.Subjects = []string{}
	}
	return v
}

// BookDetail serves the detail view of a single catalogue book.
type BookDetail struct {
	source BookLookup
	log    *slog.Logger
}

// NewBookDetail returns a detail handler backed by source.
func NewBookDetail(source BookLookup, log *slog.Logger) *BookDetail {
	if log == nil {
		log = slog.Default()
	}
	return &BookDetail{source: source, log: log}
}

// RegisterRoutes registers the detail route on mux.
func (d *BookDetail) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/books/{id}", d.Get)
}

// Get returns one catalogue book.
// GET /v1/books/{id}
func (d *BookDetail) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BOOK_ID", "book ID must be a positive integer")
		return
	}

	book, err := d.source.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, books.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such book in the catalogue")
	case err != nil && paginate.Classify(err) == paginate.KindNetwork:
		d.log.WarnContext(r.Context(), "screen: book lookup failed", "book_id", id, "err", err)
		httpapi.WriteError(w, http.StatusServiceUnavailable, "CATALOGUE_UNAVAILABLE", "book catalogue is unreachable")
	case err != nil:
		d.log.ErrorContext(r.Context(), "screen: book lookup failed", "book_id", id, "err", err)
		httpapi.WriteError(w, http.StatusBadGateway, "CATALOGUE_ERROR", "book catalogue returned an unexpected response")
	default:
		httpapi.WriteJSON(w, http.StatusOK, newBookDetailView(book))
	}
}
