package books

import "strings"

// MIMEEpub is the format key under which a book's EPUB download is listed.
const MIMEEpub = "application/epub+zip"

// BookSet is one page of catalogue results.
type BookSet struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`

	// Books is empty (never nil) after a successful request, including for a
	// page past the end of a listing.
	Books []Book `json:"results"`
}

// Book is a single catalogue entry.
type Book struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Authors       []Author          `json:"authors"`
	Subjects      []string          `json:"subjects"`
	Bookshelves   []string          `json:"bookshelves"`
	Languages     []string          `json:"languages"`
	Copyright     *bool             `json:"copyright"`
	MediaType     string            `json:"media_type"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int64             `json:"download_count"`
}

// Author is a book author.
type Author struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}

// EpubURL returns the EPUB download link, or "" when the book has none.
func (b Book) EpubURL() string {
	return b.Formats[MIMEEpub]
}

// HasEpub reports whether the book can be downloaded as EPUB.
func (b Book) HasEpub() bool {
	return b.EpubURL() != ""
}

// AuthorNames joins the author names with ", ". Unknown authors render as
// "N/A".
func (b Book) AuthorNames() string {
	if len(b.Authors) == 0 {
		return "N/A"
	}
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
		if names[i] == "" {
			names[i] = "N/A"
		}
	}
	return strings.Join(names, ", ")
}

// FilterEpub returns the books that offer an EPUB download, preserving
// order.
func FilterEpub(in []Book) []Book {
	out := make([]Book, 0, len(in))
	for _, b := range in {
		if b.HasEpub() {
			out = append(out, b)
		}
	}
	return out
}
