// Package books is a client for a Gutendex-compatible public-domain book
// catalogue.
//
// Pages are 1-based. Requesting a page past the end of a listing yields an
// empty [BookSet] rather than an error, whether the server answers 404
// ("Invalid page.") or a null result list.
package books

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/fluentforge/pkg/catalog"
)

const (
	// DefaultBaseURL is the public catalogue mirror.
	DefaultBaseURL = "https://myne.pooloftears.xyz/books"

	defaultTimeout = 100 * time.Second
)

// Option is a functional option for [Client].
type Option func(*Client)

// WithBaseURL overrides the catalogue endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the HTTP client. The client's own Timeout is
// used as-is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBreaker runs every request through b.
func WithBreaker(b catalog.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client queries the book catalogue. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker catalog.Breaker
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		breaker: catalog.NoBreaker(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// ListBooks returns the given page of the catalogue, optionally filtered by
// language.
func (c *Client) ListBooks(ctx context.Context, page int64, lang Language) (*BookSet, error) {
	if page < 1 {
		return nil, fmt.Errorf("books: list: invalid page %d", page)
	}
	q := url.Values{}
	q.Set("page", strconv.FormatInt(page, 10))
	if code := lang.ISOCode(); code != "" {
		q.Set("languages", code)
	}
	set, err := c.get(ctx, q)
	var se *catalog.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return &BookSet{Books: []Book{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("books: list page %d: %w", page, err)
	}
	return set, nil
}

// Search returns books whose title or author matches query.
func (c *Client) Search(ctx context.Context, query string) (*BookSet, error) {
	q := url.Values{}
	q.Set("search", query)
	set, err := c.get(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("books: search %q: %w", query, err)
	}
	return set, nil
}

// GetByID returns the book with the given catalogue ID.
// It returns [ErrNotFound] when the catalogue has no such book.
func (c *Client) GetByID(ctx context.Context, id int64) (*Book, error) {
	q := url.Values{}
	q.Set("ids", strconv.FormatInt(id, 10))
	set, err := c.get(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("books: get %d: %w", id, err)
	}
	for i := range set.Books {
		if set.Books[i].ID == id {
			return &set.Books[i], nil
		}
	}
	return nil, fmt.Errorf("books: get %d: %w", id, ErrNotFound)
}

func (c *Client) get(ctx context.Context, q url.Values) (*BookSet, error) {
	var set BookSet
	if err := catalog.GetJSON(ctx, c.http, c.breaker, c.baseURL+"?"+q.Encode(), &set); err != nil {
		return nil, err
	}
	if set.Books == nil {
		set.Books = []Book{}
	}
	return &set, nil
}
