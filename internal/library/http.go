package library

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/fluentforge/internal/httpapi"
)

// Handlers serves the library REST API.
type Handlers struct {
	store Store
	log   *slog.Logger
}

// NewHandlers returns handlers backed by store.
func NewHandlers(store Store, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{store: store, log: log}
}

// RegisterRoutes registers the library routes on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/library", h.List)
	mux.HandleFunc("POST /v1/library", h.Add)
	mux.HandleFunc("GET /v1/library/{id}", h.Get)
	mux.HandleFunc("DELETE /v1/library/{id}", h.Delete)
	mux.HandleFunc("GET /v1/library/{bookID}/progress", h.GetProgress)
	mux.HandleFunc("PUT /v1/library/{bookID}/progress", h.SaveProgress)
}

// addRequest is the body of POST /v1/library.
type addRequest struct {
	BookID   int64  `json:"book_id"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	FilePath string `json:"file_path"`
}

// progressRequest is the body of PUT /v1/library/{bookID}/progress.
// ChapterCount is optional; when the reader reports the last chapter of a
// book with a known chapter count, the stored progress is cleared instead.
type progressRequest struct {
	ChapterIndex  int `json:"chapter_index"`
	ChapterOffset int `json:"chapter_offset"`
	ChapterCount  int `json:"chapter_count,omitempty"`
}

// List returns every downloaded book.
// GET /v1/library
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context())
	if err != nil {
		h.internalError(w, r, "list items", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Add records a downloaded book.
// POST /v1/library
func (h *Handlers) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	item := Item{BookID: req.BookID, Title: req.Title, Authors: req.Authors, FilePath: req.FilePath}
	if err := item.Validate(); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error())
		return
	}

	item, err := h.store.AddItem(r.Context(), item)
	switch {
	case errors.Is(err, ErrDuplicate):
		httpapi.WriteError(w, http.StatusConflict, "DUPLICATE", "book is already in the library")
	case err != nil:
		h.internalError(w, r, "add item", err)
	default:
		httpapi.WriteJSON(w, http.StatusCreated, item)
	}
}

// Get returns one item.
// GET /v1/library/{id}
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetItem(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such library item")
	case err != nil:
		h.internalError(w, r, "get item", err)
	default:
		httpapi.WriteJSON(w, http.StatusOK, item)
	}
}

// Delete removes an item together with its reading progress.
// DELETE /v1/library/{id}
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	item, err := h.store.GetItem(ctx, id)
	if errors.Is(err, ErrNotFound) {
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such library item")
		return
	}
	if err != nil {
		h.internalError(w, r, "get item", err)
		return
	}
	if err := h.store.DeleteItem(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		h.internalError(w, r, "delete item", err)
		return
	}
	if err := h.store.DeleteProgress(ctx, item.BookID); err != nil {
		h.log.WarnContext(ctx, "library: progress left behind", "book_id", item.BookID, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProgress returns the reading position for a book.
// GET /v1/library/{bookID}/progress
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseBookID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProgress(r.Context(), bookID)
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no progress recorded")
	case err != nil:
		h.internalError(w, r, "get progress", err)
	default:
		httpapi.WriteJSON(w, http.StatusOK, p)
	}
}

// SaveProgress stores the reading position for a book. Reaching the last
// chapter clears it and answers 204.
// PUT /v1/library/{bookID}/progress
func (h *Handlers) SaveProgress(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseBookID(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if req.ChapterCount > 0 && req.ChapterIndex >= req.ChapterCount-1 {
		if err := h.store.DeleteProgress(r.Context(), bookID); err != nil {
			h.internalError(w, r, "delete progress", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	p := Progress{BookID: bookID, ChapterIndex: req.ChapterIndex, ChapterOffset: req.ChapterOffset}
	if err := p.Validate(); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROGRESS", err.Error())
		return
	}
	p, err := h.store.SaveProgress(r.Context(), p)
	if err != nil {
		h.internalError(w, r, "save progress", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func parseBookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("bookID"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BOOK_ID", "book ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.ErrorContext(r.Context(), "library: "+op, "err", err)
	httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL", "library is unavailable")
}
